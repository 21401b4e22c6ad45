// Package registry maps action types to handler factories and dispatches
// action specs through them. The registry is the only boundary where
// handler side effects happen; failures are captured here, never
// propagated to the phase executor.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/bloomcare/careflow/pkg/models"
	"github.com/bloomcare/careflow/pkg/protocol"
)

// Registry holds the handler-map. It is constructed at startup with the
// factories it will ever know; there is no global mutable registration.
type Registry struct {
	logger    *slog.Logger
	factories map[models.ActionType]protocol.HandlerFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[models.ActionType]protocol.HandlerFactory),
	}
}

// Register adds a handler factory. Last registration for a type wins.
func (r *Registry) Register(factory protocol.HandlerFactory) {
	r.factories[factory.Type()] = factory
}

// Known reports whether a handler exists for the action type.
func (r *Registry) Known(actionType models.ActionType) bool {
	_, ok := r.factories[actionType]

	return ok
}

// Types returns the registered action types.
func (r *Registry) Types() []models.ActionType {
	types := make([]models.ActionType, 0, len(r.factories))
	for actionType := range r.factories {
		types = append(types, actionType)
	}

	return types
}

// ValidateSpec checks an action spec's parameter bag against the factory's
// JSON schema. Specs for unknown action types pass: they dispatch to a
// skipped record at runtime rather than failing the catalog.
func (r *Registry) ValidateSpec(spec models.ActionSpec) error {
	factory, ok := r.factories[spec.Type]
	if !ok {
		return nil
	}

	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	params := spec.Params
	if params == nil {
		params = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(params),
	)
	if err != nil {
		return fmt.Errorf("failed to validate %s params: %w", spec.Type, err)
	}

	if !result.Valid() {
		return fmt.Errorf("invalid %s params: %s", spec.Type, result.Errors())
	}

	return nil
}

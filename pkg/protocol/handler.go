// Package protocol defines the interfaces between the workflow engine and
// the action handlers, plus the capability interfaces handlers call.
package protocol

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bloomcare/careflow/pkg/models"
)

// ActionHandler executes one side-effecting unit of work. Errors returned
// here are captured at the registry boundary and recorded as failed audit
// entries; they never abort the enclosing phase.
type ActionHandler interface {
	Execute(ctx context.Context, hctx *HandlerContext, logger *slog.Logger) (any, error)
}

// HandlerFactory builds a handler for one dispatch from an ActionSpec's
// parameter bag. Schema describes the accepted parameters as JSON schema;
// the catalog validates bundles against it at load time.
type HandlerFactory interface {
	Type() models.ActionType
	Create(params map[string]any) (ActionHandler, error)
	Schema() map[string]any
}

// HandlerContext is the read view of the instance handed to a handler,
// plus the narrow write API for phase data. It is shared by every handler
// in a settling bundle, so writes are synchronized.
type HandlerContext struct {
	WorkflowID  string
	PhaseNumber int
	SubjectID   string
	PhaseData   map[string]any
	Metadata    map[string]any

	mu     sync.Mutex
	writes map[string]any
}

// PutPhaseData stages a phase-data write. Writes are merged into the
// instance by the executor after the bundle settles.
func (c *HandlerContext) PutPhaseData(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writes == nil {
		c.writes = make(map[string]any)
	}

	c.writes[key] = value
}

// Writes returns a copy of the staged phase-data writes.
func (c *HandlerContext) Writes() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.writes) == 0 {
		return nil
	}

	out := make(map[string]any, len(c.writes))
	for k, v := range c.writes {
		out[k] = v
	}

	return out
}

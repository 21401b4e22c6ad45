package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bloomcare/careflow/pkg/catalog"
	"github.com/bloomcare/careflow/pkg/models"
	"github.com/bloomcare/careflow/pkg/otelhelper"
	"github.com/bloomcare/careflow/pkg/persistence"
	"github.com/bloomcare/careflow/pkg/protocol"
	"github.com/bloomcare/careflow/pkg/registry"
)

// Executor dispatches a phase's action bundle. All actions in a bundle
// start concurrently and the executor waits for every one of them to
// settle; one action's failure never blocks or cancels another.
type Executor struct {
	logger     *slog.Logger
	catalog    *catalog.Catalog
	store      persistence.Persistence
	dispatcher *registry.Dispatcher
	tracer     trace.Tracer
}

func NewExecutor(logger *slog.Logger, cat *catalog.Catalog, store persistence.Persistence, dispatcher *registry.Dispatcher, tracer trace.Tracer) *Executor {
	return &Executor{
		logger:     logger,
		catalog:    cat,
		store:      store,
		dispatcher: dispatcher,
		tracer:     tracer,
	}
}

// Execute runs the bundle for one phase of an instance and merges staged
// phase-data writes back into the store. The returned error is non-nil
// only for a template/instance mismatch or for audit append failures;
// per-action failures are settled into their own audit records.
func (e *Executor) Execute(ctx context.Context, instance *models.WorkflowInstance, phaseNumber int) ([]models.ActionExecutionRecord, error) {
	template, ok := e.catalog.Template(instance.TemplateID)
	if !ok {
		return nil, fmt.Errorf("instance %s: template %s: %w", instance.ID, instance.TemplateID, ErrTemplateNotFound)
	}

	phase, ok := template.Phase(phaseNumber)
	if !ok {
		return nil, fmt.Errorf("instance %s: phase %d: %w", instance.ID, phaseNumber, ErrPhaseNotFound)
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "phase.execute",
		attribute.String(otelhelper.InstanceIDKey, instance.ID),
		attribute.String(otelhelper.TemplateIDKey, instance.TemplateID),
		attribute.Int(otelhelper.PhaseIDKey, phaseNumber),
	)
	defer span.End()

	logger := e.logger.With(
		"workflow_id", instance.ID,
		"phase", phaseNumber,
		"phase_name", phase.Name,
	)
	logger.Info("Executing phase bundle", "actions", len(phase.Actions))

	hctx := &protocol.HandlerContext{
		WorkflowID:  instance.ID,
		PhaseNumber: phaseNumber,
		SubjectID:   instance.SubjectID,
		PhaseData:   copyMap(instance.PhaseData),
		Metadata:    copyMap(instance.Metadata),
	}

	records := make([]models.ActionExecutionRecord, len(phase.Actions))
	auditErrs := make([]error, len(phase.Actions))

	var wg sync.WaitGroup

	for i, spec := range phase.Actions {
		wg.Add(1)

		go func(i int, spec models.ActionSpec) {
			defer wg.Done()

			records[i], auditErrs[i] = e.dispatcher.Dispatch(ctx, hctx, spec)
		}(i, spec)
	}

	wg.Wait()

	// Audit-write failures are the one category that must stay visible.
	if err := errors.Join(auditErrs...); err != nil {
		otelhelper.SetError(span, err)

		return records, err
	}

	if writes := hctx.Writes(); len(writes) > 0 {
		_, err := e.store.Instances().Update(ctx, instance.ID, models.InstanceUpdate{
			PhaseData:       writes,
			ExpectedVersion: instance.Version,
		})
		if err != nil {
			otelhelper.SetError(span, err)

			return records, fmt.Errorf("failed to merge phase data for instance %s: %w", instance.ID, err)
		}
	}

	logger.Info("Phase bundle settled", "records", len(records))

	return records, nil
}

func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}

	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}

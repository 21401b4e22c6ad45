package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bloomcare/careflow/pkg/audit"
	"github.com/bloomcare/careflow/pkg/models"
	"github.com/bloomcare/careflow/pkg/protocol"
)

// Sleeper waits for a duration or until the context is done. Injected so
// tests can skip real delays.
type Sleeper func(ctx context.Context, d time.Duration) error

func defaultSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatcher runs action specs through the registry and writes exactly one
// audit record per dispatch, after the handler settles.
type Dispatcher struct {
	registry *Registry
	recorder audit.Recorder
	sleep    Sleeper
}

func NewDispatcher(registry *Registry, recorder audit.Recorder) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		recorder: recorder,
		sleep:    defaultSleeper,
	}
}

// WithSleeper replaces the delay wait. For tests.
func (d *Dispatcher) WithSleeper(sleep Sleeper) *Dispatcher {
	d.sleep = sleep

	return d
}

// Dispatch resolves and executes one action spec. The returned record is
// the settled outcome; the returned error is non-nil only when the audit
// append itself failed, the one failure that must stay visible.
func (d *Dispatcher) Dispatch(ctx context.Context, hctx *protocol.HandlerContext, spec models.ActionSpec) (models.ActionExecutionRecord, error) {
	logger := d.registry.logger.With(
		"workflow_id", hctx.WorkflowID,
		"phase", hctx.PhaseNumber,
		"action_type", spec.Type,
	)

	record := d.settle(ctx, hctx, spec, logger)

	if err := d.recorder.Record(ctx, record); err != nil {
		return record, fmt.Errorf("failed to record audit entry for action %s: %w", spec.Type, err)
	}

	return record, nil
}

func (d *Dispatcher) settle(ctx context.Context, hctx *protocol.HandlerContext, spec models.ActionSpec, logger *slog.Logger) models.ActionExecutionRecord {
	workflowID := hctx.WorkflowID
	phase := hctx.PhaseNumber

	factory, ok := d.registry.factories[spec.Type]
	if !ok {
		logger.Info("No handler registered for action type, skipping")

		return audit.Skipped(workflowID, phase, spec.Type, models.SkipReasonUnknownActionType)
	}

	if delay := spec.Delay(); delay > 0 {
		if err := d.sleep(ctx, time.Duration(delay*float64(time.Minute))); err != nil {
			return audit.Failed(workflowID, phase, spec.Type, err.Error())
		}
	}

	handler, err := factory.Create(spec.Params)
	if err != nil {
		logger.Error("Failed to create handler", "error", err)

		return audit.Failed(workflowID, phase, spec.Type, err.Error())
	}

	result, err := runHandler(ctx, handler, hctx, logger)
	if err != nil {
		logger.Error("Action failed", "error", err)

		return audit.Failed(workflowID, phase, spec.Type, err.Error())
	}

	logger.Info("Action completed")

	return audit.Completed(workflowID, phase, spec.Type, result)
}

// runHandler converts handler panics into ordinary errors so a misbehaving
// handler cannot take the phase down with it.
func runHandler(ctx context.Context, handler protocol.ActionHandler, hctx *protocol.HandlerContext, logger *slog.Logger) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return handler.Execute(ctx, hctx, logger)
}

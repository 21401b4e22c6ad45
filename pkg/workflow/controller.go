package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bloomcare/careflow/pkg/audit"
	"github.com/bloomcare/careflow/pkg/catalog"
	"github.com/bloomcare/careflow/pkg/eventbus"
	"github.com/bloomcare/careflow/pkg/events"
	"github.com/bloomcare/careflow/pkg/locks"
	"github.com/bloomcare/careflow/pkg/models"
	"github.com/bloomcare/careflow/pkg/otelhelper"
	"github.com/bloomcare/careflow/pkg/persistence"
)

// Controller is the state-machine surface of the engine. Every
// state-changing operation on one instance runs under that instance's
// lock, so concurrent advance attempts serialize and exactly one wins.
type Controller struct {
	logger    *slog.Logger
	catalog   *catalog.Catalog
	store     persistence.Persistence
	locks     locks.Manager
	recorder  audit.Recorder
	publisher eventbus.EventPublisher
	executor  *Executor
	tracer    trace.Tracer
	gates     GateTable
	now       func() time.Time
}

func NewController(
	logger *slog.Logger,
	cat *catalog.Catalog,
	store persistence.Persistence,
	lockManager locks.Manager,
	recorder audit.Recorder,
	publisher eventbus.EventPublisher,
	executor *Executor,
	tracer trace.Tracer,
) *Controller {
	return &Controller{
		logger:    logger,
		catalog:   cat,
		store:     store,
		locks:     lockManager,
		recorder:  recorder,
		publisher: publisher,
		executor:  executor,
		tracer:    tracer,
		gates:     GateTable{},
		now:       time.Now,
	}
}

// WithGates installs the caller-domain gate predicates. Tokens without an
// entry fall back to DefaultGate.
func (c *Controller) WithGates(gates GateTable) *Controller {
	c.gates = gates

	return c
}

// WithClock injects the clock. For tests.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now

	return c
}

// Initialize creates a new instance at phase 1 and executes that phase.
func (c *Controller) Initialize(ctx context.Context, subjectID, templateID string, metadata map[string]any) (*models.WorkflowInstance, error) {
	if _, ok := c.catalog.Template(templateID); !ok {
		return nil, fmt.Errorf("template %s: %w", templateID, ErrTemplateNotFound)
	}

	if metadata == nil {
		metadata = map[string]any{}
	}

	instance := &models.WorkflowInstance{
		ID:           uuid.New().String(),
		SubjectID:    subjectID,
		TemplateID:   templateID,
		CurrentPhase: 1,
		Status:       models.InstanceStatusActive,
		PhaseData:    map[string]any{},
		Metadata:     metadata,
		StartedAt:    c.now().UTC(),
	}

	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "workflow.initialize",
		attribute.String(otelhelper.InstanceIDKey, instance.ID),
		attribute.String(otelhelper.SubjectIDKey, subjectID),
		attribute.String(otelhelper.TemplateIDKey, templateID),
	)
	defer span.End()

	if err := c.store.Instances().Create(ctx, instance); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	c.logger.Info("Workflow initialized", "workflow_id", instance.ID, "subject_id", subjectID, "template_id", templateID)

	event := events.WorkflowInitialized{BaseEvent: events.NewBaseEvent(events.WorkflowInitializedEvent, instance), Phase: 1}
	c.publish(ctx, instance.ID, event)

	release, err := c.locks.Acquire(ctx, instance.ID)
	if err != nil {
		return instance, err
	}
	defer release()

	if err := c.runPhaseLocked(ctx, instance.ID); err != nil {
		otelhelper.SetError(span, err)

		return instance, err
	}

	return c.store.Instances().GetByID(ctx, instance.ID)
}

// AutoAdvance moves an active instance past a phase whose bundle settled
// with auto-advance set. Calls on completed or cancelled instances are
// no-ops; calls on gated or non-advancing phases are rejected.
func (c *Controller) AutoAdvance(ctx context.Context, instanceID string) error {
	release, err := c.locks.Acquire(ctx, instanceID)
	if err != nil {
		return err
	}
	defer release()

	instance, err := c.store.Instances().GetByID(ctx, instanceID)
	if err != nil {
		return err
	}

	if instance.Status.Terminal() {
		return nil
	}

	if instance.Status != models.InstanceStatusActive {
		return fmt.Errorf("instance %s: %w", instanceID, ErrInstanceNotActive)
	}

	phase, err := c.currentPhase(instance)
	if err != nil {
		return err
	}

	if phase.Gated() || !phase.AutoAdvance {
		return fmt.Errorf("instance %s phase %d: %w", instanceID, phase.ID, ErrAdvanceNotAllowed)
	}

	advanced, err := c.advanceLocked(ctx, instance, phase, false, "")
	if err != nil || !advanced {
		return err
	}

	return c.runPhaseLocked(ctx, instanceID)
}

// ManualAdvance confirms a gated phase with the supplied action data and,
// if the gate is satisfied, advances the instance. The instance is
// unchanged when the gate rejects.
func (c *Controller) ManualAdvance(ctx context.Context, instanceID string, actionData map[string]any) error {
	release, err := c.locks.Acquire(ctx, instanceID)
	if err != nil {
		return err
	}
	defer release()

	instance, err := c.store.Instances().GetByID(ctx, instanceID)
	if err != nil {
		return err
	}

	if instance.Status != models.InstanceStatusActive {
		return fmt.Errorf("instance %s: %w", instanceID, ErrInstanceNotActive)
	}

	phase, err := c.currentPhase(instance)
	if err != nil {
		return err
	}

	if !phase.Gated() {
		return fmt.Errorf("instance %s phase %d: %w", instanceID, phase.ID, ErrPhaseNotGated)
	}

	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "workflow.manual_advance",
		attribute.String(otelhelper.InstanceIDKey, instanceID),
		attribute.Int(otelhelper.PhaseIDKey, phase.ID),
		attribute.String(otelhelper.GateKey, phase.RequiresAction),
	)
	defer span.End()

	if !c.gatePredicate(phase.RequiresAction)(actionData) {
		err := fmt.Errorf("instance %s gate %s: %w", instanceID, phase.RequiresAction, ErrGateNotSatisfied)
		otelhelper.SetError(span, err)

		return err
	}

	// Keep the confirmation payload with the instance before advancing.
	instance, err = c.store.Instances().Update(ctx, instanceID, models.InstanceUpdate{
		PhaseData:       map[string]any{"gate:" + phase.RequiresAction: actionData},
		ExpectedVersion: instance.Version,
	})
	if err != nil {
		return err
	}

	advanced, err := c.advanceLocked(ctx, instance, phase, true, phase.RequiresAction)
	if err != nil || !advanced {
		return err
	}

	return c.runPhaseLocked(ctx, instanceID)
}

// TimeoutFire handles an elapsed phase timeout. It only acts when the
// instance is still active in that phase: it appends an escalation audit
// record and raises an event, leaving the instance where it is. Stale
// timers are disarmed without any side effect.
func (c *Controller) TimeoutFire(ctx context.Context, instanceID string, phaseNumber int) error {
	release, err := c.locks.Acquire(ctx, instanceID)
	if err != nil {
		return err
	}
	defer release()

	instance, err := c.store.Instances().GetByID(ctx, instanceID)
	if err != nil {
		return err
	}

	if instance.CurrentPhase != phaseNumber || instance.Status != models.InstanceStatusActive {
		return c.store.Escalations().Disarm(ctx, instanceID, phaseNumber)
	}

	phase, err := c.currentPhase(instance)
	if err != nil {
		return err
	}

	c.logger.Warn("Phase timeout elapsed without advance",
		"workflow_id", instanceID,
		"phase", phaseNumber,
		"phase_name", phase.Name,
	)

	record := audit.Completed(instanceID, phaseNumber, models.ActionEscalation, map[string]any{
		"reason":        "phase_timeout",
		"phase_name":    phase.Name,
		"timeout_hours": phase.TimeoutHours,
	})
	if err := c.recorder.Record(ctx, record); err != nil {
		return fmt.Errorf("failed to record escalation for instance %s: %w", instanceID, err)
	}

	event := events.EscalationRaised{
		BaseEvent:    events.NewBaseEvent(events.EscalationRaisedEvent, instance),
		Phase:        phaseNumber,
		TimeoutHours: phase.TimeoutHours,
	}
	c.publish(ctx, instanceID, event)

	// Escalate once per armed timeout.
	return c.store.Escalations().Disarm(ctx, instanceID, phaseNumber)
}

// Pause suspends an active instance. Administrative; no trigger conditions
// are defined by the engine itself.
func (c *Controller) Pause(ctx context.Context, instanceID string) error {
	return c.setStatus(ctx, instanceID, models.InstanceStatusActive, models.InstanceStatusPaused)
}

// Resume reactivates a paused instance. The current phase is not re-run;
// its bundle already settled.
func (c *Controller) Resume(ctx context.Context, instanceID string) error {
	return c.setStatus(ctx, instanceID, models.InstanceStatusPaused, models.InstanceStatusActive)
}

// Cancel terminates an instance and clears its armed timeouts. In-flight
// action dispatches are not forcibly aborted; cancellation only prevents
// future phase execution and timeout effects.
func (c *Controller) Cancel(ctx context.Context, instanceID string) error {
	release, err := c.locks.Acquire(ctx, instanceID)
	if err != nil {
		return err
	}
	defer release()

	instance, err := c.store.Instances().GetByID(ctx, instanceID)
	if err != nil {
		return err
	}

	if instance.Status.Terminal() {
		return fmt.Errorf("instance %s is %s: %w", instanceID, instance.Status, ErrInvalidStatusChange)
	}

	cancelled := models.InstanceStatusCancelled

	instance, err = c.store.Instances().Update(ctx, instanceID, models.InstanceUpdate{
		Status:          &cancelled,
		ExpectedVersion: instance.Version,
	})
	if err != nil {
		return err
	}

	if err := c.store.Escalations().DisarmAll(ctx, instanceID); err != nil {
		return err
	}

	c.logger.Info("Workflow cancelled", "workflow_id", instanceID, "phase", instance.CurrentPhase)

	event := events.WorkflowCancelled{BaseEvent: events.NewBaseEvent(events.WorkflowCancelledEvent, instance), Phase: instance.CurrentPhase}
	c.publish(ctx, instanceID, event)

	return nil
}

// Progress reports where an instance stands, for UI and reporting.
func (c *Controller) Progress(ctx context.Context, instanceID string) (*models.ProgressReport, error) {
	instance, err := c.store.Instances().GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	template, ok := c.catalog.Template(instance.TemplateID)
	if !ok {
		return nil, fmt.Errorf("instance %s: template %s: %w", instanceID, instance.TemplateID, ErrTemplateNotFound)
	}

	phase, err := c.currentPhase(instance)
	if err != nil {
		return nil, err
	}

	return &models.ProgressReport{
		InstanceID:       instance.ID,
		CurrentPhase:     instance.CurrentPhase,
		CurrentPhaseName: phase.Name,
		TotalPhases:      template.TotalPhases(),
		PercentComplete:  float64(instance.CurrentPhase-1) / float64(template.TotalPhases()) * 100,
		Status:           instance.Status,
		StartedAt:        instance.StartedAt,
		CompletedAt:      instance.CompletedAt,
	}, nil
}

// runPhaseLocked executes the current phase and applies its transition
// policy, looping while phases auto-advance. Phase N+1 never starts
// before phase N's bundle has fully settled. Caller holds the lock.
func (c *Controller) runPhaseLocked(ctx context.Context, instanceID string) error {
	for {
		instance, err := c.store.Instances().GetByID(ctx, instanceID)
		if err != nil {
			return err
		}

		if instance.Status != models.InstanceStatusActive {
			return nil
		}

		phase, err := c.currentPhase(instance)
		if err != nil {
			return err
		}

		if _, err := c.executor.Execute(ctx, instance, instance.CurrentPhase); err != nil {
			return err
		}

		// Phase data may have changed while the bundle settled.
		instance, err = c.store.Instances().GetByID(ctx, instanceID)
		if err != nil {
			return err
		}

		if phase.TimeoutHours > 0 {
			if err := c.armTimeout(ctx, instance, phase); err != nil {
				return err
			}
		}

		if phase.FinalPhase {
			return c.completeLocked(ctx, instance, phase)
		}

		if phase.Gated() || !phase.AutoAdvance {
			return nil
		}

		advanced, err := c.advanceLocked(ctx, instance, phase, false, "")
		if err != nil || !advanced {
			return err
		}
	}
}

// advanceLocked moves the instance to the next phase, or completes the
// workflow when no next phase exists. Caller holds the lock.
func (c *Controller) advanceLocked(ctx context.Context, instance *models.WorkflowInstance, from models.PhaseTemplate, manual bool, gate string) (bool, error) {
	template, ok := c.catalog.Template(instance.TemplateID)
	if !ok {
		return false, fmt.Errorf("template %s: %w", instance.TemplateID, ErrTemplateNotFound)
	}

	next := instance.CurrentPhase + 1

	if _, ok := template.Phase(next); !ok {
		return false, c.completeLocked(ctx, instance, from)
	}

	instance, err := c.store.Instances().Update(ctx, instance.ID, models.InstanceUpdate{
		CurrentPhase:    &next,
		ExpectedVersion: instance.Version,
	})
	if err != nil {
		return false, err
	}

	if err := c.store.Escalations().Disarm(ctx, instance.ID, from.ID); err != nil {
		return false, err
	}

	c.logger.Info("Phase advanced", "workflow_id", instance.ID, "from", from.ID, "to", next, "manual", manual)

	event := events.PhaseAdvanced{
		BaseEvent: events.NewBaseEvent(events.PhaseAdvancedEvent, instance),
		FromPhase: from.ID,
		ToPhase:   next,
		Manual:    manual,
		Gate:      gate,
	}
	c.publish(ctx, instance.ID, event)

	return true, nil
}

// completeLocked marks the one and only completion of an instance.
func (c *Controller) completeLocked(ctx context.Context, instance *models.WorkflowInstance, final models.PhaseTemplate) error {
	completed := models.InstanceStatusCompleted
	completedAt := c.now().UTC()

	instance, err := c.store.Instances().Update(ctx, instance.ID, models.InstanceUpdate{
		Status:          &completed,
		CompletedAt:     &completedAt,
		ExpectedVersion: instance.Version,
	})
	if err != nil {
		return err
	}

	if err := c.store.Escalations().DisarmAll(ctx, instance.ID); err != nil {
		return err
	}

	c.logger.Info("Workflow completed", "workflow_id", instance.ID, "final_phase", final.ID)

	event := events.WorkflowCompleted{
		BaseEvent:   events.NewBaseEvent(events.WorkflowCompletedEvent, instance),
		FinalPhase:  final.ID,
		CompletedAt: completedAt,
	}
	c.publish(ctx, instance.ID, event)

	return nil
}

func (c *Controller) armTimeout(ctx context.Context, instance *models.WorkflowInstance, phase models.PhaseTemplate) error {
	now := c.now().UTC()

	return c.store.Escalations().Arm(ctx, models.EscalationWakeup{
		InstanceID: instance.ID,
		PhaseID:    phase.ID,
		DueAt:      now.Add(time.Duration(phase.TimeoutHours * float64(time.Hour))),
		CreatedAt:  now,
	})
}

func (c *Controller) setStatus(ctx context.Context, instanceID string, from, to models.InstanceStatus) error {
	release, err := c.locks.Acquire(ctx, instanceID)
	if err != nil {
		return err
	}
	defer release()

	instance, err := c.store.Instances().GetByID(ctx, instanceID)
	if err != nil {
		return err
	}

	if instance.Status != from {
		return fmt.Errorf("instance %s is %s, not %s: %w", instanceID, instance.Status, from, ErrInvalidStatusChange)
	}

	_, err = c.store.Instances().Update(ctx, instanceID, models.InstanceUpdate{
		Status:          &to,
		ExpectedVersion: instance.Version,
	})
	if err != nil {
		return err
	}

	c.logger.Info("Workflow status changed", "workflow_id", instanceID, "from", from, "to", to)

	return nil
}

func (c *Controller) currentPhase(instance *models.WorkflowInstance) (models.PhaseTemplate, error) {
	template, ok := c.catalog.Template(instance.TemplateID)
	if !ok {
		return models.PhaseTemplate{}, fmt.Errorf("template %s: %w", instance.TemplateID, ErrTemplateNotFound)
	}

	phase, ok := template.Phase(instance.CurrentPhase)
	if !ok {
		return models.PhaseTemplate{}, fmt.Errorf("instance %s: phase %d: %w", instance.ID, instance.CurrentPhase, ErrPhaseNotFound)
	}

	return phase, nil
}

func (c *Controller) gatePredicate(token string) GatePredicate {
	if predicate, ok := c.gates[token]; ok {
		return predicate
	}

	return DefaultGate(token)
}

func (c *Controller) publish(ctx context.Context, key string, event eventbus.Event) {
	if c.publisher == nil {
		return
	}

	if err := c.publisher.Publish(ctx, key, event); err != nil {
		// The audit trail is the source of truth; bus delivery is
		// best effort.
		c.logger.Error("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloomcare/careflow/pkg/audit"
	"github.com/bloomcare/careflow/pkg/catalog"
	"github.com/bloomcare/careflow/pkg/locks"
	"github.com/bloomcare/careflow/pkg/models"
	"github.com/bloomcare/careflow/pkg/otelhelper"
	"github.com/bloomcare/careflow/pkg/persistence/file"
	"github.com/bloomcare/careflow/pkg/protocol"
	"github.com/bloomcare/careflow/pkg/registry"
)

type stubHandler struct {
	execute func(ctx context.Context, hctx *protocol.HandlerContext) (any, error)
}

func (h *stubHandler) Execute(ctx context.Context, hctx *protocol.HandlerContext, _ *slog.Logger) (any, error) {
	return h.execute(ctx, hctx)
}

type stubFactory struct {
	actionType models.ActionType
	execute    func(ctx context.Context, hctx *protocol.HandlerContext) (any, error)
}

func (f *stubFactory) Type() models.ActionType { return f.actionType }

func (f *stubFactory) Create(map[string]any) (protocol.ActionHandler, error) {
	return &stubHandler{execute: f.execute}, nil
}

func (f *stubFactory) Schema() map[string]any { return nil }

// engine bundles a controller wired against the file store and in-memory
// collaborators, the way tests exercise the full phase loop.
type engine struct {
	store      *file.Persistence
	recorder   *audit.MemoryRecorder
	controller *Controller
}

func newEngine(t *testing.T, factories []*stubFactory, templates ...*models.WorkflowTemplate) *engine {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	reg := registry.NewRegistry(logger)

	for _, factory := range factories {
		reg.Register(factory)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	cat, err := catalog.New(validate, reg, templates...)
	require.NoError(t, err)

	store := file.NewPersistence(t.TempDir())
	recorder := audit.NewMemoryRecorder()
	tracer := otelhelper.NewNoopTracer()
	dispatcher := registry.NewDispatcher(reg, recorder)
	executor := NewExecutor(logger, cat, store, dispatcher, tracer)
	controller := NewController(logger, cat, store, locks.NewMemoryManager(), recorder, nil, executor, tracer)

	return &engine{store: store, recorder: recorder, controller: controller}
}

func noopFactory(actionType models.ActionType) *stubFactory {
	return &stubFactory{
		actionType: actionType,
		execute: func(context.Context, *protocol.HandlerContext) (any, error) {
			return "ok", nil
		},
	}
}

func linearTemplate() *models.WorkflowTemplate {
	return &models.WorkflowTemplate{
		ID:   "linear",
		Name: "Linear Lifecycle",
		Phases: []models.PhaseTemplate{
			{ID: 1, Name: "Intake", AutoAdvance: true, Actions: []models.ActionSpec{
				{Type: models.ActionSendMessage},
				{Type: models.ActionEstimateLead},
			}},
			{ID: 2, Name: "Outreach", AutoAdvance: true, Actions: []models.ActionSpec{
				{Type: models.ActionCreateTask},
			}},
			{ID: 3, Name: "Onboarded", FinalPhase: true, Actions: []models.ActionSpec{
				{Type: models.ActionUpdateRecord},
			}},
		},
	}
}

func gatedTemplate() *models.WorkflowTemplate {
	return &models.WorkflowTemplate{
		ID:   "gated",
		Name: "Gated Lifecycle",
		Phases: []models.PhaseTemplate{
			{ID: 1, Name: "Intake", AutoAdvance: true, Actions: []models.ActionSpec{
				{Type: models.ActionSendMessage},
			}},
			{ID: 2, Name: "Consultation", RequiresAction: "consultation_completed", TimeoutHours: 48, Actions: []models.ActionSpec{
				{Type: models.ActionCreateTask},
			}},
			{ID: 3, Name: "Onboarded", FinalPhase: true},
		},
	}
}

func allFactories() []*stubFactory {
	return []*stubFactory{
		noopFactory(models.ActionSendMessage),
		noopFactory(models.ActionCreateTask),
		noopFactory(models.ActionUpdateRecord),
		noopFactory(models.ActionEstimateLead),
		noopFactory(models.ActionScheduleVisit),
	}
}

func TestInitializeRunsAutoAdvancingPhasesToCompletion(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, allFactories(), linearTemplate())

	instance, err := eng.controller.Initialize(ctx, "client-1", "linear", map[string]any{"source": "web"})
	require.NoError(t, err)

	assert.Equal(t, models.InstanceStatusCompleted, instance.Status)
	assert.Equal(t, 3, instance.CurrentPhase)
	require.NotNil(t, instance.CompletedAt)

	// Every phase's bundle settled before the next phase started.
	entries := eng.recorder.Entries()
	require.Len(t, entries, 4)

	lastPhase := 0
	for _, entry := range entries {
		assert.GreaterOrEqual(t, entry.PhaseNumber, lastPhase)
		assert.Equal(t, models.ExecutionCompleted, entry.Status)
		lastPhase = entry.PhaseNumber
	}
}

func TestInitializeUnknownTemplate(t *testing.T) {
	eng := newEngine(t, allFactories(), linearTemplate())

	_, err := eng.controller.Initialize(context.Background(), "client-1", "missing", nil)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestInitializeStopsAtGatedPhase(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, allFactories(), gatedTemplate())

	instance, err := eng.controller.Initialize(ctx, "client-1", "gated", nil)
	require.NoError(t, err)

	assert.Equal(t, models.InstanceStatusActive, instance.Status)
	assert.Equal(t, 2, instance.CurrentPhase)

	// The gated phase's bundle ran and its timeout is armed.
	assert.Len(t, eng.recorder.ByPhase(instance.ID, 2), 1)

	due, err := eng.store.Escalations().Due(ctx, time.Now().UTC().Add(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 2, due[0].PhaseID)
}

func TestManualAdvanceSatisfiedGateCompletesWorkflow(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, allFactories(), gatedTemplate())

	instance, err := eng.controller.Initialize(ctx, "client-1", "gated", nil)
	require.NoError(t, err)

	err = eng.controller.ManualAdvance(ctx, instance.ID, map[string]any{"consultation_completed": true})
	require.NoError(t, err)

	instance, err = eng.store.Instances().GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCompleted, instance.Status)
	assert.Equal(t, 3, instance.CurrentPhase)

	// Gate confirmation data is kept with the instance.
	assert.NotNil(t, instance.PhaseData["gate:consultation_completed"])

	// Advancing cleared the armed timeout.
	due, err := eng.store.Escalations().Due(ctx, time.Now().UTC().Add(72*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestManualAdvanceUnsatisfiedGateLeavesInstanceUnchanged(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, allFactories(), gatedTemplate())

	instance, err := eng.controller.Initialize(ctx, "client-1", "gated", nil)
	require.NoError(t, err)

	err = eng.controller.ManualAdvance(ctx, instance.ID, map[string]any{"something_else": true})
	assert.ErrorIs(t, err, ErrGateNotSatisfied)

	err = eng.controller.ManualAdvance(ctx, instance.ID, map[string]any{"consultation_completed": false})
	assert.ErrorIs(t, err, ErrGateNotSatisfied)

	after, err := eng.store.Instances().GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.CurrentPhase)
	assert.Equal(t, models.InstanceStatusActive, after.Status)
}

func TestManualAdvanceOnUngatedPhase(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, allFactories(), &models.WorkflowTemplate{
		ID:   "manual-only",
		Name: "Manual Only",
		Phases: []models.PhaseTemplate{
			{ID: 1, Name: "Hold"},
			{ID: 2, Name: "Done", FinalPhase: true},
		},
	})

	instance, err := eng.controller.Initialize(ctx, "client-1", "manual-only", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, instance.CurrentPhase)

	err = eng.controller.ManualAdvance(ctx, instance.ID, map[string]any{"anything": true})
	assert.ErrorIs(t, err, ErrPhaseNotGated)
}

func TestConcurrentGateConfirmationsOneWins(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, allFactories(), gatedTemplate())

	instance, err := eng.controller.Initialize(ctx, "client-1", "gated", nil)
	require.NoError(t, err)

	const attempts = 4

	results := make([]error, attempts)

	var wg sync.WaitGroup

	for i := range attempts {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			results[i] = eng.controller.ManualAdvance(ctx, instance.ID, map[string]any{"consultation_completed": true})
		}(i)
	}

	wg.Wait()

	wins := 0

	for _, err := range results {
		if err == nil {
			wins++

			continue
		}

		// Losers observe the post-advance state: the workflow completed.
		assert.True(t, errors.Is(err, ErrInstanceNotActive) || errors.Is(err, ErrPhaseNotGated) || errors.Is(err, ErrGateNotSatisfied))
	}

	assert.Equal(t, 1, wins)

	after, err := eng.store.Instances().GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCompleted, after.Status)
}

func TestAutoAdvanceRejectedOnGatedPhase(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, allFactories(), gatedTemplate())

	instance, err := eng.controller.Initialize(ctx, "client-1", "gated", nil)
	require.NoError(t, err)

	err = eng.controller.AutoAdvance(ctx, instance.ID)
	assert.ErrorIs(t, err, ErrAdvanceNotAllowed)
}

func TestAutoAdvanceOnTerminalInstanceIsNoOp(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, allFactories(), linearTemplate())

	instance, err := eng.controller.Initialize(ctx, "client-1", "linear", nil)
	require.NoError(t, err)
	require.Equal(t, models.InstanceStatusCompleted, instance.Status)

	recordsBefore := len(eng.recorder.Entries())

	err = eng.controller.AutoAdvance(ctx, instance.ID)
	assert.NoError(t, err)

	after, err := eng.store.Instances().GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCompleted, after.Status)
	assert.Equal(t, instance.CompletedAt.UTC(), after.CompletedAt.UTC())
	assert.Len(t, eng.recorder.Entries(), recordsBefore)
}

func TestTimeoutFireEscalatesWithoutAdvancing(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, allFactories(), gatedTemplate())

	instance, err := eng.controller.Initialize(ctx, "client-1", "gated", nil)
	require.NoError(t, err)

	err = eng.controller.TimeoutFire(ctx, instance.ID, 2)
	require.NoError(t, err)

	after, err := eng.store.Instances().GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.CurrentPhase)
	assert.Equal(t, models.InstanceStatusActive, after.Status)

	var escalations []models.ActionExecutionRecord

	for _, entry := range eng.recorder.Entries() {
		if entry.ActionType == models.ActionEscalation {
			escalations = append(escalations, entry)
		}
	}

	require.Len(t, escalations, 1)
	assert.Equal(t, models.ExecutionCompleted, escalations[0].Status)
	assert.Equal(t, 2, escalations[0].PhaseNumber)

	// The wake-up is consumed: the timer fires once.
	due, err := eng.store.Escalations().Due(ctx, time.Now().UTC().Add(72*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestTimeoutFireStaleTimerHasNoEffect(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, allFactories(), gatedTemplate())

	instance, err := eng.controller.Initialize(ctx, "client-1", "gated", nil)
	require.NoError(t, err)

	err = eng.controller.ManualAdvance(ctx, instance.ID, map[string]any{"consultation_completed": true})
	require.NoError(t, err)

	recordsBefore := len(eng.recorder.Entries())

	// Timer for the phase the instance already left.
	err = eng.controller.TimeoutFire(ctx, instance.ID, 2)
	require.NoError(t, err)

	assert.Len(t, eng.recorder.Entries(), recordsBefore)
}

func TestPauseBlocksAdvance(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, allFactories(), gatedTemplate())

	instance, err := eng.controller.Initialize(ctx, "client-1", "gated", nil)
	require.NoError(t, err)

	require.NoError(t, eng.controller.Pause(ctx, instance.ID))

	err = eng.controller.ManualAdvance(ctx, instance.ID, map[string]any{"consultation_completed": true})
	assert.ErrorIs(t, err, ErrInstanceNotActive)

	require.NoError(t, eng.controller.Resume(ctx, instance.ID))

	err = eng.controller.ManualAdvance(ctx, instance.ID, map[string]any{"consultation_completed": true})
	require.NoError(t, err)
}

func TestPauseRequiresActiveInstance(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, allFactories(), linearTemplate())

	instance, err := eng.controller.Initialize(ctx, "client-1", "linear", nil)
	require.NoError(t, err)

	err = eng.controller.Pause(ctx, instance.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusChange)
}

func TestCancelClearsTimersAndBlocksTimeout(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, allFactories(), gatedTemplate())

	instance, err := eng.controller.Initialize(ctx, "client-1", "gated", nil)
	require.NoError(t, err)

	require.NoError(t, eng.controller.Cancel(ctx, instance.ID))

	after, err := eng.store.Instances().GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCancelled, after.Status)

	due, err := eng.store.Escalations().Due(ctx, time.Now().UTC().Add(72*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)

	// A straggler timer on a cancelled instance does nothing.
	recordsBefore := len(eng.recorder.Entries())
	require.NoError(t, eng.controller.TimeoutFire(ctx, instance.ID, 2))
	assert.Len(t, eng.recorder.Entries(), recordsBefore)

	err = eng.controller.Cancel(ctx, instance.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusChange)
}

func TestProgress(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, allFactories(), gatedTemplate())

	instance, err := eng.controller.Initialize(ctx, "client-1", "gated", nil)
	require.NoError(t, err)

	report, err := eng.controller.Progress(ctx, instance.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, report.CurrentPhase)
	assert.Equal(t, "Consultation", report.CurrentPhaseName)
	assert.Equal(t, 3, report.TotalPhases)
	assert.InDelta(t, 100.0/3.0, report.PercentComplete, 0.001)
	assert.Equal(t, models.InstanceStatusActive, report.Status)
	assert.Nil(t, report.CompletedAt)

	require.NoError(t, eng.controller.ManualAdvance(ctx, instance.ID, map[string]any{"consultation_completed": true}))

	report, err = eng.controller.Progress(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCompleted, report.Status)
	assert.NotNil(t, report.CompletedAt)
}

func TestCustomGatePredicate(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, allFactories(), gatedTemplate())
	eng.controller.WithGates(GateTable{
		"consultation_completed": func(actionData map[string]any) bool {
			return actionData["signed_by"] == "coordinator"
		},
	})

	instance, err := eng.controller.Initialize(ctx, "client-1", "gated", nil)
	require.NoError(t, err)

	err = eng.controller.ManualAdvance(ctx, instance.ID, map[string]any{"consultation_completed": true})
	assert.ErrorIs(t, err, ErrGateNotSatisfied)

	err = eng.controller.ManualAdvance(ctx, instance.ID, map[string]any{"signed_by": "coordinator"})
	require.NoError(t, err)
}

func TestFailedActionDoesNotBlockAdvance(t *testing.T) {
	ctx := context.Background()

	factories := []*stubFactory{
		noopFactory(models.ActionSendMessage),
		{
			actionType: models.ActionCreateTask,
			execute: func(context.Context, *protocol.HandlerContext) (any, error) {
				return nil, errors.New("crm unavailable")
			},
		},
		noopFactory(models.ActionUpdateRecord),
	}

	template := &models.WorkflowTemplate{
		ID:   "mixed",
		Name: "Mixed Bundle",
		Phases: []models.PhaseTemplate{
			{ID: 1, Name: "Bundle", AutoAdvance: true, Actions: []models.ActionSpec{
				{Type: models.ActionSendMessage},
				{Type: models.ActionCreateTask},
				{Type: "unknown_integration"},
			}},
			{ID: 2, Name: "Done", FinalPhase: true, Actions: []models.ActionSpec{
				{Type: models.ActionUpdateRecord},
			}},
		},
	}

	eng := newEngine(t, factories, template)

	instance, err := eng.controller.Initialize(ctx, "client-1", "mixed", nil)
	require.NoError(t, err)

	assert.Equal(t, models.InstanceStatusCompleted, instance.Status)

	statuses := map[models.ExecutionStatus]int{}
	for _, entry := range eng.recorder.ByPhase(instance.ID, 1) {
		statuses[entry.Status]++
	}

	assert.Equal(t, 1, statuses[models.ExecutionCompleted])
	assert.Equal(t, 1, statuses[models.ExecutionFailed])
	assert.Equal(t, 1, statuses[models.ExecutionSkipped])
}

func TestGateDataVisibleToLaterPhases(t *testing.T) {
	ctx := context.Background()

	var seen map[string]any

	factories := []*stubFactory{
		noopFactory(models.ActionSendMessage),
		noopFactory(models.ActionCreateTask),
		{
			actionType: models.ActionUpdateRecord,
			execute: func(_ context.Context, hctx *protocol.HandlerContext) (any, error) {
				seen = hctx.PhaseData

				return "ok", nil
			},
		},
	}

	template := gatedTemplate()
	template.Phases[2].Actions = []models.ActionSpec{{Type: models.ActionUpdateRecord}}

	eng := newEngine(t, factories, template)

	instance, err := eng.controller.Initialize(ctx, "client-1", "gated", nil)
	require.NoError(t, err)

	require.NoError(t, eng.controller.ManualAdvance(ctx, instance.ID, map[string]any{"consultation_completed": true}))

	require.NotNil(t, seen)
	assert.Contains(t, seen, "gate:consultation_completed")
}

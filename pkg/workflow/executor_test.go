package workflow

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloomcare/careflow/pkg/audit"
	"github.com/bloomcare/careflow/pkg/catalog"
	"github.com/bloomcare/careflow/pkg/models"
	"github.com/bloomcare/careflow/pkg/otelhelper"
	"github.com/bloomcare/careflow/pkg/persistence/file"
	"github.com/bloomcare/careflow/pkg/protocol"
	"github.com/bloomcare/careflow/pkg/registry"
)

// failingRecorder rejects every append, simulating an unavailable audit
// store.
type failingRecorder struct{}

func (failingRecorder) Record(context.Context, models.ActionExecutionRecord) error {
	return errors.New("audit store unavailable")
}

func newExecutorFixture(t *testing.T, recorder audit.Recorder, factories []*stubFactory, template *models.WorkflowTemplate) (*Executor, *file.Persistence) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	reg := registry.NewRegistry(logger)

	for _, factory := range factories {
		reg.Register(factory)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	cat, err := catalog.New(validate, reg, template)
	require.NoError(t, err)

	store := file.NewPersistence(t.TempDir())
	dispatcher := registry.NewDispatcher(reg, recorder)

	return NewExecutor(logger, cat, store, dispatcher, otelhelper.NewNoopTracer()), store
}

func seedInstance(t *testing.T, store *file.Persistence, templateID string) *models.WorkflowInstance {
	t.Helper()

	instance := &models.WorkflowInstance{
		ID:           "wf-exec",
		SubjectID:    "client-1",
		TemplateID:   templateID,
		CurrentPhase: 1,
		Status:       models.InstanceStatusActive,
		PhaseData:    map[string]any{},
		Metadata:     map[string]any{},
		StartedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.Instances().Create(context.Background(), instance))

	return instance
}

func TestExecuteSettlesEveryActionInBundle(t *testing.T) {
	ctx := context.Background()
	recorder := audit.NewMemoryRecorder()

	factories := []*stubFactory{
		noopFactory(models.ActionSendMessage),
		{
			actionType: models.ActionCreateTask,
			execute: func(context.Context, *protocol.HandlerContext) (any, error) {
				return nil, errors.New("downstream timeout")
			},
		},
	}

	template := &models.WorkflowTemplate{
		ID:   "bundle",
		Name: "Bundle Test",
		Phases: []models.PhaseTemplate{
			{ID: 1, Name: "Work", AutoAdvance: true, Actions: []models.ActionSpec{
				{Type: models.ActionSendMessage},
				{Type: models.ActionCreateTask},
				{Type: models.ActionSendMessage},
			}},
			{ID: 2, Name: "Done", FinalPhase: true},
		},
	}

	executor, store := newExecutorFixture(t, recorder, factories, template)
	instance := seedInstance(t, store, "bundle")

	records, err := executor.Execute(ctx, instance, 1)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Records keep the bundle's declaration order.
	assert.Equal(t, models.ExecutionCompleted, records[0].Status)
	assert.Equal(t, models.ExecutionFailed, records[1].Status)
	assert.Contains(t, records[1].Error, "downstream timeout")
	assert.Equal(t, models.ExecutionCompleted, records[2].Status)

	assert.Len(t, recorder.Entries(), 3)
}

func TestExecuteMergesPhaseDataWrites(t *testing.T) {
	ctx := context.Background()
	recorder := audit.NewMemoryRecorder()

	factories := []*stubFactory{
		{
			actionType: models.ActionEstimateLead,
			execute: func(_ context.Context, hctx *protocol.HandlerContext) (any, error) {
				hctx.PutPhaseData("estimated_value", 2500.0)

				return 2500.0, nil
			},
		},
	}

	template := &models.WorkflowTemplate{
		ID:   "writes",
		Name: "Writes Test",
		Phases: []models.PhaseTemplate{
			{ID: 1, Name: "Estimate", AutoAdvance: true, Actions: []models.ActionSpec{
				{Type: models.ActionEstimateLead},
			}},
			{ID: 2, Name: "Done", FinalPhase: true},
		},
	}

	executor, store := newExecutorFixture(t, recorder, factories, template)
	instance := seedInstance(t, store, "writes")

	_, err := executor.Execute(ctx, instance, 1)
	require.NoError(t, err)

	after, err := store.Instances().GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2500.0, after.PhaseData["estimated_value"], 0.001)
	assert.Greater(t, after.Version, instance.Version)
}

func TestExecuteAuditFailurePropagates(t *testing.T) {
	ctx := context.Background()

	template := &models.WorkflowTemplate{
		ID:   "audit-fail",
		Name: "Audit Failure",
		Phases: []models.PhaseTemplate{
			{ID: 1, Name: "Work", AutoAdvance: true, Actions: []models.ActionSpec{
				{Type: models.ActionSendMessage},
			}},
			{ID: 2, Name: "Done", FinalPhase: true},
		},
	}

	executor, store := newExecutorFixture(t, failingRecorder{}, []*stubFactory{noopFactory(models.ActionSendMessage)}, template)
	instance := seedInstance(t, store, "audit-fail")

	_, err := executor.Execute(ctx, instance, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit store unavailable")
}

func TestExecuteUnknownPhase(t *testing.T) {
	ctx := context.Background()

	template := &models.WorkflowTemplate{
		ID:   "short",
		Name: "Short Test",
		Phases: []models.PhaseTemplate{
			{ID: 1, Name: "Only", FinalPhase: true},
		},
	}

	executor, store := newExecutorFixture(t, audit.NewMemoryRecorder(), nil, template)
	instance := seedInstance(t, store, "short")

	_, err := executor.Execute(ctx, instance, 9)
	assert.ErrorIs(t, err, ErrPhaseNotFound)
}

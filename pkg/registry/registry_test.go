package registry

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloomcare/careflow/pkg/audit"
	"github.com/bloomcare/careflow/pkg/models"
	"github.com/bloomcare/careflow/pkg/protocol"
)

type stubHandler struct {
	execute func(ctx context.Context, hctx *protocol.HandlerContext) (any, error)
}

func (h *stubHandler) Execute(ctx context.Context, hctx *protocol.HandlerContext, _ *slog.Logger) (any, error) {
	return h.execute(ctx, hctx)
}

type stubFactory struct {
	actionType models.ActionType
	schema     map[string]any
	createErr  error
	handler    *stubHandler
}

func (f *stubFactory) Type() models.ActionType { return f.actionType }

func (f *stubFactory) Create(map[string]any) (protocol.ActionHandler, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}

	return f.handler, nil
}

func (f *stubFactory) Schema() map[string]any { return f.schema }

func okFactory(actionType models.ActionType, result any) *stubFactory {
	return &stubFactory{
		actionType: actionType,
		handler: &stubHandler{execute: func(context.Context, *protocol.HandlerContext) (any, error) {
			return result, nil
		}},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRegistryKnown(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(okFactory(models.ActionSendMessage, "sent"))

	assert.True(t, reg.Known(models.ActionSendMessage))
	assert.False(t, reg.Known(models.ActionCreateTask))
	assert.Len(t, reg.Types(), 1)
}

func TestRegistryValidateSpec(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubFactory{
		actionType: models.ActionSendMessage,
		schema: map[string]any{
			"type":     "object",
			"required": []string{"template"},
			"properties": map[string]any{
				"template": map[string]any{"type": "string"},
			},
		},
		handler: &stubHandler{execute: func(context.Context, *protocol.HandlerContext) (any, error) {
			return nil, nil
		}},
	})

	err := reg.ValidateSpec(models.ActionSpec{
		Type:   models.ActionSendMessage,
		Params: map[string]any{"template": "welcome"},
	})
	assert.NoError(t, err)

	err = reg.ValidateSpec(models.ActionSpec{Type: models.ActionSendMessage})
	assert.Error(t, err)

	// Unknown types pass: they settle to skipped records at runtime.
	err = reg.ValidateSpec(models.ActionSpec{Type: "future_type"})
	assert.NoError(t, err)
}

func hctxForTest() *protocol.HandlerContext {
	return &protocol.HandlerContext{
		WorkflowID:  "wf-1",
		PhaseNumber: 2,
		SubjectID:   "subject-1",
		PhaseData:   map[string]any{},
		Metadata:    map[string]any{},
	}
}

func TestDispatchCompleted(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(okFactory(models.ActionSendMessage, map[string]any{"message_id": "m-1"}))

	recorder := audit.NewMemoryRecorder()
	dispatcher := NewDispatcher(reg, recorder)

	record, err := dispatcher.Dispatch(context.Background(), hctxForTest(), models.ActionSpec{Type: models.ActionSendMessage})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionCompleted, record.Status)
	assert.Equal(t, "wf-1", record.WorkflowID)
	assert.Equal(t, 2, record.PhaseNumber)
	assert.Equal(t, models.ActionSendMessage, record.ActionType)
	assert.NotEmpty(t, record.ID)

	entries := recorder.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, record.ID, entries[0].ID)
}

func TestDispatchUnknownTypeSkips(t *testing.T) {
	reg := NewRegistry(testLogger())
	recorder := audit.NewMemoryRecorder()
	dispatcher := NewDispatcher(reg, recorder)

	record, err := dispatcher.Dispatch(context.Background(), hctxForTest(), models.ActionSpec{Type: "mystery"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionSkipped, record.Status)
	assert.Equal(t, map[string]any{"reason": models.SkipReasonUnknownActionType}, record.Result)
	assert.Empty(t, record.Error)
	require.Len(t, recorder.Entries(), 1)
}

func TestDispatchHandlerErrorFails(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubFactory{
		actionType: models.ActionCreateTask,
		handler: &stubHandler{execute: func(context.Context, *protocol.HandlerContext) (any, error) {
			return nil, errors.New("crm unavailable")
		}},
	})

	recorder := audit.NewMemoryRecorder()
	dispatcher := NewDispatcher(reg, recorder)

	record, err := dispatcher.Dispatch(context.Background(), hctxForTest(), models.ActionSpec{Type: models.ActionCreateTask})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionFailed, record.Status)
	assert.Contains(t, record.Error, "crm unavailable")
}

func TestDispatchFactoryErrorFails(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubFactory{
		actionType: models.ActionCreateTask,
		createErr:  errors.New("assignee is required"),
	})

	recorder := audit.NewMemoryRecorder()
	dispatcher := NewDispatcher(reg, recorder)

	record, err := dispatcher.Dispatch(context.Background(), hctxForTest(), models.ActionSpec{Type: models.ActionCreateTask})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionFailed, record.Status)
	assert.Contains(t, record.Error, "assignee is required")
}

func TestDispatchPanicBecomesFailed(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubFactory{
		actionType: models.ActionUpdateRecord,
		handler: &stubHandler{execute: func(context.Context, *protocol.HandlerContext) (any, error) {
			panic("boom")
		}},
	})

	recorder := audit.NewMemoryRecorder()
	dispatcher := NewDispatcher(reg, recorder)

	record, err := dispatcher.Dispatch(context.Background(), hctxForTest(), models.ActionSpec{Type: models.ActionUpdateRecord})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionFailed, record.Status)
	assert.Contains(t, record.Error, "boom")
}

func TestDispatchDelayWaitsBeforeHandler(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(okFactory(models.ActionSendMessage, "sent"))

	recorder := audit.NewMemoryRecorder()

	var slept time.Duration

	dispatcher := NewDispatcher(reg, recorder).WithSleeper(func(_ context.Context, d time.Duration) error {
		slept = d

		return nil
	})

	record, err := dispatcher.Dispatch(context.Background(), hctxForTest(), models.ActionSpec{
		Type:   models.ActionSendMessage,
		Params: map[string]any{models.ParamDelay: 60.0},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionCompleted, record.Status)
	assert.Equal(t, 60*time.Minute, slept)
}

func TestDispatchCancelledDelayFails(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(okFactory(models.ActionSendMessage, "sent"))

	recorder := audit.NewMemoryRecorder()
	dispatcher := NewDispatcher(reg, recorder).WithSleeper(func(context.Context, time.Duration) error {
		return context.Canceled
	})

	record, err := dispatcher.Dispatch(context.Background(), hctxForTest(), models.ActionSpec{
		Type:   models.ActionSendMessage,
		Params: map[string]any{models.ParamDelay: 5.0},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionFailed, record.Status)
}

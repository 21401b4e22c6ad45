// Package audit appends immutable action execution records to the
// compliance trail. Losing an audit record is a compliance violation, so
// append failures propagate instead of being swallowed.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bloomcare/careflow/pkg/models"
)

// Recorder is the client boundary of the append-only audit store. No
// retries here; retry and backoff policy belong to the store's client.
type Recorder interface {
	Record(ctx context.Context, entry models.ActionExecutionRecord) error
}

// Completed builds a completed-action record.
func Completed(workflowID string, phase int, actionType models.ActionType, result any) models.ActionExecutionRecord {
	return newRecord(workflowID, phase, actionType, models.ExecutionCompleted, result, "")
}

// Failed builds a failed-action record carrying the handler error message.
func Failed(workflowID string, phase int, actionType models.ActionType, errMsg string) models.ActionExecutionRecord {
	return newRecord(workflowID, phase, actionType, models.ExecutionFailed, nil, errMsg)
}

// Skipped builds a skipped-action record with a reason payload.
func Skipped(workflowID string, phase int, actionType models.ActionType, reason string) models.ActionExecutionRecord {
	return newRecord(workflowID, phase, actionType, models.ExecutionSkipped, map[string]any{"reason": reason}, "")
}

func newRecord(workflowID string, phase int, actionType models.ActionType, status models.ExecutionStatus, result any, errMsg string) models.ActionExecutionRecord {
	return models.ActionExecutionRecord{
		ID:          uuid.New().String(),
		WorkflowID:  workflowID,
		PhaseNumber: phase,
		ActionType:  actionType,
		Status:      status,
		Result:      result,
		Error:       errMsg,
		Timestamp:   time.Now().UTC(),
	}
}

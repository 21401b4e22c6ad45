package models

import "time"

// ExecutionStatus is the terminal status of one action dispatch.
type ExecutionStatus string

const (
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionSkipped   ExecutionStatus = "skipped"
)

// SkipReasonUnknownActionType marks records for action types with no
// registered handler.
const SkipReasonUnknownActionType = "unknown_action_type"

// ActionExecutionRecord is one immutable audit trail entry: one record per
// dispatched action per attempt.
type ActionExecutionRecord struct {
	ID          string          `json:"id"`
	WorkflowID  string          `json:"workflow_id"`
	PhaseNumber int             `json:"phase_number"`
	ActionType  ActionType      `json:"action_type"`
	Status      ExecutionStatus `json:"status"`
	Result      any             `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

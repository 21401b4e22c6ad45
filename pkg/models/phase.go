// Package models defines the core domain models for the client lifecycle
// workflow engine: phase templates, workflow instances and audit records.
package models

// ActionType identifies the handler an ActionSpec is dispatched to.
type ActionType string

const (
	ActionSendMessage   ActionType = "send_message"
	ActionCreateTask    ActionType = "create_task"
	ActionUpdateRecord  ActionType = "update_record"
	ActionEstimateLead  ActionType = "estimate_lead"
	ActionScheduleVisit ActionType = "schedule_visit"

	// ActionEscalation is not dispatchable; it marks audit records written
	// when a phase timeout fires.
	ActionEscalation ActionType = "escalation"
)

// Well-known ActionSpec parameter keys. The required subset depends on the
// action type and is enforced by each handler factory's schema.
const (
	ParamTemplate    = "template"
	ParamDelay       = "delay" // minutes
	ParamPriority    = "priority"
	ParamAssignee    = "assignee"
	ParamRecipients  = "recipients"
	ParamWithin      = "within"
	ParamHoursBefore = "hours_before"
)

// ActionSpec describes one side-effecting unit of work inside a phase bundle.
type ActionSpec struct {
	Type   ActionType     `json:"type"             validate:"required"`
	Params map[string]any `json:"params,omitempty"`
}

// Delay returns the action's deferral in minutes, zero when unset.
func (s ActionSpec) Delay() float64 {
	switch v := s.Params[ParamDelay].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

// PhaseTemplate is one ordered step of a workflow template. Phase ids are
// contiguous starting at 1 and define the total order of the lifecycle.
type PhaseTemplate struct {
	ID             int          `json:"id"                        validate:"required,gt=0"`
	Name           string       `json:"name"                      validate:"required"`
	Description    string       `json:"description"`
	Actions        []ActionSpec `json:"actions"`
	AutoAdvance    bool         `json:"auto_advance"`
	RequiresAction string       `json:"requires_action,omitempty"`
	TimeoutHours   float64      `json:"timeout_hours,omitempty"   validate:"omitempty,gt=0"`
	FinalPhase     bool         `json:"final_phase"`
}

// Gated reports whether the phase needs an external confirmation before it
// can advance. A gated phase never auto-advances.
func (p PhaseTemplate) Gated() bool {
	return p.RequiresAction != ""
}

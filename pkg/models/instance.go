package models

import "time"

// InstanceStatus represents the lifecycle state of a workflow instance.
type InstanceStatus string

const (
	InstanceStatusActive    InstanceStatus = "active"
	InstanceStatusPaused    InstanceStatus = "paused"
	InstanceStatusCompleted InstanceStatus = "completed"
	InstanceStatusCancelled InstanceStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s InstanceStatus) Terminal() bool {
	return s == InstanceStatusCompleted || s == InstanceStatusCancelled
}

// Valid reports whether s is a known instance status.
func (s InstanceStatus) Valid() bool {
	switch s {
	case InstanceStatusActive, InstanceStatusPaused, InstanceStatusCompleted, InstanceStatusCancelled:
		return true
	default:
		return false
	}
}

// WorkflowInstance is one subject's traversal of a template. CurrentPhase,
// Status, CompletedAt and PhaseData are the only mutable fields; Version
// backs the optimistic concurrency check on updates.
type WorkflowInstance struct {
	ID           string         `json:"id"`
	SubjectID    string         `json:"subject_id"   validate:"required"`
	TemplateID   string         `json:"template_id"  validate:"required"`
	CurrentPhase int            `json:"current_phase"`
	Status       InstanceStatus `json:"status"`
	PhaseData    map[string]any `json:"phase_data,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Version      int            `json:"version"`
}

// InstanceUpdate carries the mutable fields of an instance update. Nil
// fields are left untouched. ExpectedVersion is the version the caller read;
// the store rejects the update when it no longer matches.
type InstanceUpdate struct {
	CurrentPhase    *int
	Status          *InstanceStatus
	CompletedAt     *time.Time
	PhaseData       map[string]any
	ExpectedVersion int
}

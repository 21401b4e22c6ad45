package models

import "time"

// ProgressReport is the query surface consumed by UI and reporting.
type ProgressReport struct {
	InstanceID       string         `json:"instance_id"`
	CurrentPhase     int            `json:"current_phase"`
	CurrentPhaseName string         `json:"current_phase_name"`
	TotalPhases      int            `json:"total_phases"`
	PercentComplete  float64        `json:"percent_complete"`
	Status           InstanceStatus `json:"status"`
	StartedAt        time.Time      `json:"started_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}

// EscalationWakeup is a persisted "next wake-up" record for a phase timeout.
// Wakeups survive process restarts; the escalator sweeps for due ones.
type EscalationWakeup struct {
	InstanceID string    `json:"instance_id"`
	PhaseID    int       `json:"phase_id"`
	DueAt      time.Time `json:"due_at"`
	CreatedAt  time.Time `json:"created_at"`
}

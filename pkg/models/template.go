package models

import (
	"errors"
	"fmt"
)

// Template configuration errors. These are fatal at catalog load time and
// are never surfaced per instance.
var (
	ErrNoPhases             = errors.New("template has no phases")
	ErrNonContiguousPhases  = errors.New("phase ids must be contiguous starting at 1")
	ErrMissingFinalPhase    = errors.New("template must mark exactly one final phase")
	ErrFinalPhaseNotLast    = errors.New("final phase must have the maximum phase id")
	ErrGateWithAutoAdvance  = errors.New("a gated phase cannot auto-advance")
	ErrDuplicateActionBlank = errors.New("phase action type cannot be blank")
)

// WorkflowTemplate is a static, ordered catalog entry describing the phases
// a subject progresses through. Read-only at runtime.
type WorkflowTemplate struct {
	ID          string          `json:"id"          validate:"required"`
	Name        string          `json:"name"        validate:"required,min=3"`
	Description string          `json:"description"`
	Phases      []PhaseTemplate `json:"phases"      validate:"required,dive"`
}

// Validate checks the structural invariants of the template: contiguous
// phase ids, exactly one final phase carrying the maximum id, and no phase
// that is both gated and auto-advancing.
func (t *WorkflowTemplate) Validate() error {
	if len(t.Phases) == 0 {
		return fmt.Errorf("template %s: %w", t.ID, ErrNoPhases)
	}

	finals := 0

	for i, phase := range t.Phases {
		if phase.ID != i+1 {
			return fmt.Errorf("template %s phase %d: %w", t.ID, phase.ID, ErrNonContiguousPhases)
		}

		if phase.Gated() && phase.AutoAdvance {
			return fmt.Errorf("template %s phase %d: %w", t.ID, phase.ID, ErrGateWithAutoAdvance)
		}

		for _, action := range phase.Actions {
			if action.Type == "" {
				return fmt.Errorf("template %s phase %d: %w", t.ID, phase.ID, ErrDuplicateActionBlank)
			}
		}

		if phase.FinalPhase {
			finals++

			if phase.ID != len(t.Phases) {
				return fmt.Errorf("template %s phase %d: %w", t.ID, phase.ID, ErrFinalPhaseNotLast)
			}
		}
	}

	if finals != 1 {
		return fmt.Errorf("template %s: %w", t.ID, ErrMissingFinalPhase)
	}

	return nil
}

// Phase returns the phase with the given id, or false when the template has
// no such phase.
func (t *WorkflowTemplate) Phase(id int) (PhaseTemplate, bool) {
	if id < 1 || id > len(t.Phases) {
		return PhaseTemplate{}, false
	}

	return t.Phases[id-1], true
}

// TotalPhases returns the number of phases in the template.
func (t *WorkflowTemplate) TotalPhases() int {
	return len(t.Phases)
}

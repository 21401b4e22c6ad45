// Package workflow implements the lifecycle engine core: the phase
// executor, the transition controller and the escalation sweeper.
package workflow

import "errors"

var (
	// ErrTemplateNotFound indicates the instance references a template the
	// catalog does not know. A programmer or deployment defect.
	ErrTemplateNotFound = errors.New("workflow template not found")

	// ErrPhaseNotFound indicates a template/instance mismatch; never a
	// runtime condition to retry.
	ErrPhaseNotFound = errors.New("phase not found in template")

	// ErrGateNotSatisfied is expected and recoverable: the caller retries
	// manual advance once the real-world condition is met.
	ErrGateNotSatisfied = errors.New("gate condition not satisfied")

	// ErrPhaseNotGated rejects a manual advance on a phase with no gate.
	ErrPhaseNotGated = errors.New("current phase does not require manual action")

	// ErrAdvanceNotAllowed rejects an auto advance on a gated or
	// non-advancing phase.
	ErrAdvanceNotAllowed = errors.New("phase cannot auto-advance")

	// ErrInstanceNotActive rejects transitions on paused instances.
	ErrInstanceNotActive = errors.New("workflow instance is not active")

	// ErrInvalidStatusChange rejects pause/resume/cancel calls that do not
	// apply to the instance's current status.
	ErrInvalidStatusChange = errors.New("invalid status change")
)

// Package persistence provides standardized error types for storage
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrInstanceNotFound indicates no workflow instance exists for the id.
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrInstanceAlreadyExists indicates an instance with the same id was
	// already created.
	ErrInstanceAlreadyExists = errors.New("workflow instance already exists")

	// ErrVersionConflict indicates a concurrent update won the race; the
	// caller must re-read the instance before retrying.
	ErrVersionConflict = errors.New("instance version conflict")

	// ErrWakeupNotFound indicates no armed wake-up exists for the key.
	ErrWakeupNotFound = errors.New("escalation wakeup not found")
)

// InstanceError wraps instance-related errors with operation context.
type InstanceError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Update")
	InstanceID string
	Err        error
}

func (e *InstanceError) Error() string {
	return fmt.Sprintf("%s operation failed for instance %s: %v", e.Op, e.InstanceID, e.Err)
}

func (e *InstanceError) Unwrap() error {
	return e.Err
}

func (e *InstanceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewInstanceError creates a new instance error with context.
func NewInstanceError(op, instanceID string, err error) *InstanceError {
	return &InstanceError{
		Op:         op,
		InstanceID: instanceID,
		Err:        err,
	}
}

// IsInstanceNotFound checks if an error indicates a missing instance.
func IsInstanceNotFound(err error) bool {
	return errors.Is(err, ErrInstanceNotFound)
}

// IsVersionConflict checks if an error indicates a lost optimistic update.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

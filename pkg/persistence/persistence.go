// Package persistence provides the storage abstraction for workflow
// instances and escalation wake-ups.
package persistence

import (
	"context"
	"time"

	"github.com/bloomcare/careflow/pkg/models"
)

// InstanceRepository owns the durable record of workflow instances, the
// only mutable state in the engine. Update applies an optimistic version
// check: it fails with ErrVersionConflict when the instance has moved on
// since the caller read it.
type InstanceRepository interface {
	Create(ctx context.Context, instance *models.WorkflowInstance) error
	GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error)
	Update(ctx context.Context, id string, update models.InstanceUpdate) (*models.WorkflowInstance, error)
	ListByStatus(ctx context.Context, status models.InstanceStatus) ([]*models.WorkflowInstance, error)
}

// EscalationRepository persists phase timeout wake-ups so escalation
// survives process restarts. Arm is idempotent per (instance, phase).
type EscalationRepository interface {
	Arm(ctx context.Context, wakeup models.EscalationWakeup) error
	Disarm(ctx context.Context, instanceID string, phaseID int) error
	DisarmAll(ctx context.Context, instanceID string) error
	Due(ctx context.Context, at time.Time) ([]models.EscalationWakeup, error)
}

type Persistence interface {
	Instances() InstanceRepository
	Escalations() EscalationRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

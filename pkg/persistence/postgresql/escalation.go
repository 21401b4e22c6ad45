package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/bloomcare/careflow/pkg/models"
)

// EscalationRepository handles persisted timeout wake-ups.
type EscalationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewEscalationRepository creates a new escalation repository.
func NewEscalationRepository(db *sql.DB, logger *slog.Logger) *EscalationRepository {
	return &EscalationRepository{db: db, logger: logger}
}

func (r *EscalationRepository) Arm(ctx context.Context, wakeup models.EscalationWakeup) error {
	query := `
		INSERT INTO escalation_wakeups (instance_id, phase_id, due_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (instance_id, phase_id) DO UPDATE SET due_at = EXCLUDED.due_at
	`

	_, err := r.db.ExecContext(ctx, query, wakeup.InstanceID, wakeup.PhaseID, wakeup.DueAt, wakeup.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to arm wakeup for instance %s phase %d: %w", wakeup.InstanceID, wakeup.PhaseID, err)
	}

	return nil
}

func (r *EscalationRepository) Disarm(ctx context.Context, instanceID string, phaseID int) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM escalation_wakeups WHERE instance_id = $1 AND phase_id = $2`,
		instanceID, phaseID)
	if err != nil {
		return fmt.Errorf("failed to disarm wakeup for instance %s phase %d: %w", instanceID, phaseID, err)
	}

	return nil
}

func (r *EscalationRepository) DisarmAll(ctx context.Context, instanceID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM escalation_wakeups WHERE instance_id = $1`,
		instanceID)
	if err != nil {
		return fmt.Errorf("failed to disarm wakeups for instance %s: %w", instanceID, err)
	}

	return nil
}

func (r *EscalationRepository) Due(ctx context.Context, at time.Time) ([]models.EscalationWakeup, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT instance_id, phase_id, due_at, created_at
		FROM escalation_wakeups
		WHERE due_at <= $1
		ORDER BY due_at
	`, at)
	if err != nil {
		return nil, fmt.Errorf("failed to query due wakeups: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	wakeups := make([]models.EscalationWakeup, 0)

	for rows.Next() {
		var wakeup models.EscalationWakeup

		err := rows.Scan(&wakeup.InstanceID, &wakeup.PhaseID, &wakeup.DueAt, &wakeup.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wakeup: %w", err)
		}

		wakeups = append(wakeups, wakeup)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating wakeups: %w", err)
	}

	return wakeups, nil
}

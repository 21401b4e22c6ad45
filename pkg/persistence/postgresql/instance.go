package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/bloomcare/careflow/pkg/models"
	"github.com/bloomcare/careflow/pkg/persistence"
)

// InstanceRepository handles workflow instance database operations. Updates
// carry an optimistic version check; a lost race surfaces as
// ErrVersionConflict.
type InstanceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewInstanceRepository creates a new instance repository.
func NewInstanceRepository(db *sql.DB, logger *slog.Logger) *InstanceRepository {
	return &InstanceRepository{db: db, logger: logger}
}

const instanceColumns = `
	id
  , subject_id
  , template_id
  , current_phase
  , status
  , phase_data
  , metadata
  , started_at
  , completed_at
  , version
`

func (r *InstanceRepository) Create(ctx context.Context, instance *models.WorkflowInstance) error {
	phaseData, metadata, err := marshalInstanceMaps(instance)
	if err != nil {
		return persistence.NewInstanceError("Create", instance.ID, err)
	}

	query := `
		INSERT INTO workflow_instances (` + instanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		instance.ID,
		instance.SubjectID,
		instance.TemplateID,
		instance.CurrentPhase,
		instance.Status,
		phaseData,
		metadata,
		instance.StartedAt,
		instance.CompletedAt,
		instance.Version,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return persistence.NewInstanceError("Create", instance.ID, persistence.ErrInstanceAlreadyExists)
		}

		return persistence.NewInstanceError("Create", instance.ID, fmt.Errorf("failed to insert instance: %w", err))
	}

	return nil
}

func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE id = $1`

	instance, err := r.scanInstance(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewInstanceError("GetByID", id, persistence.ErrInstanceNotFound)
	} else if err != nil {
		return nil, persistence.NewInstanceError("GetByID", id, err)
	}

	return instance, nil
}

func (r *InstanceRepository) Update(ctx context.Context, id string, update models.InstanceUpdate) (*models.WorkflowInstance, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, persistence.NewInstanceError("Update", id, fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE id = $1 FOR UPDATE`

	instance, err := r.scanInstance(tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewInstanceError("Update", id, persistence.ErrInstanceNotFound)
	} else if err != nil {
		return nil, persistence.NewInstanceError("Update", id, err)
	}

	if instance.Version != update.ExpectedVersion {
		return nil, persistence.NewInstanceError("Update", id, persistence.ErrVersionConflict)
	}

	applyUpdate(instance, update)
	instance.Version++

	phaseData, metadata, err := marshalInstanceMaps(instance)
	if err != nil {
		return nil, persistence.NewInstanceError("Update", id, err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE workflow_instances
		SET current_phase = $2, status = $3, phase_data = $4, metadata = $5, completed_at = $6, version = $7
		WHERE id = $1 AND version = $8
	`, id, instance.CurrentPhase, instance.Status, phaseData, metadata, instance.CompletedAt, instance.Version, update.ExpectedVersion)
	if err != nil {
		return nil, persistence.NewInstanceError("Update", id, fmt.Errorf("failed to update instance: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, persistence.NewInstanceError("Update", id, fmt.Errorf("failed to read affected rows: %w", err))
	}

	if affected == 0 {
		return nil, persistence.NewInstanceError("Update", id, persistence.ErrVersionConflict)
	}

	if err := tx.Commit(); err != nil {
		return nil, persistence.NewInstanceError("Update", id, fmt.Errorf("failed to commit update: %w", err))
	}

	return instance, nil
}

func (r *InstanceRepository) ListByStatus(ctx context.Context, status models.InstanceStatus) ([]*models.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE status = $1 ORDER BY started_at`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	instances := make([]*models.WorkflowInstance, 0)

	for rows.Next() {
		instance, err := r.scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}

		instances = append(instances, instance)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating instances: %w", err)
	}

	return instances, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *InstanceRepository) scanInstance(row rowScanner) (*models.WorkflowInstance, error) {
	var (
		instance      models.WorkflowInstance
		phaseDataJSON []byte
		metadataJSON  []byte
	)

	err := row.Scan(
		&instance.ID,
		&instance.SubjectID,
		&instance.TemplateID,
		&instance.CurrentPhase,
		&instance.Status,
		&phaseDataJSON,
		&metadataJSON,
		&instance.StartedAt,
		&instance.CompletedAt,
		&instance.Version,
	)
	if err != nil {
		return nil, err
	}

	if len(phaseDataJSON) > 0 {
		if err := json.Unmarshal(phaseDataJSON, &instance.PhaseData); err != nil {
			return nil, fmt.Errorf("failed to decode phase data: %w", err)
		}
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &instance.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}

	return &instance, nil
}

func marshalInstanceMaps(instance *models.WorkflowInstance) ([]byte, []byte, error) {
	phaseData, err := json.Marshal(instance.PhaseData)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode phase data: %w", err)
	}

	metadata, err := json.Marshal(instance.Metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	return phaseData, metadata, nil
}

// applyUpdate merges the mutable fields of an update into an instance.
func applyUpdate(instance *models.WorkflowInstance, update models.InstanceUpdate) {
	if update.CurrentPhase != nil {
		instance.CurrentPhase = *update.CurrentPhase
	}

	if update.Status != nil {
		instance.Status = *update.Status
	}

	if update.CompletedAt != nil {
		instance.CompletedAt = update.CompletedAt
	}

	if len(update.PhaseData) > 0 {
		if instance.PhaseData == nil {
			instance.PhaseData = make(map[string]any, len(update.PhaseData))
		}

		for k, v := range update.PhaseData {
			instance.PhaseData[k] = v
		}
	}
}

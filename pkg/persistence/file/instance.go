package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/bloomcare/careflow/pkg/models"
	"github.com/bloomcare/careflow/pkg/persistence"
)

const dirPerm = 0o755

// InstanceRepository stores one JSON file per workflow instance. A single
// mutex serializes all mutations; together with the version check this
// satisfies the per-instance serialization requirement.
type InstanceRepository struct {
	root string
	mu   sync.Mutex
}

// NewInstanceRepository creates a new instance repository.
func NewInstanceRepository(root string) *InstanceRepository {
	return &InstanceRepository{root: root}
}

func (ir *InstanceRepository) path(id string) string {
	return filepath.Join(ir.root, "instances", id+".json")
}

func (ir *InstanceRepository) Create(ctx context.Context, instance *models.WorkflowInstance) error {
	ir.mu.Lock()
	defer ir.mu.Unlock()

	if err := os.MkdirAll(filepath.Join(ir.root, "instances"), dirPerm); err != nil {
		return fmt.Errorf("failed to create instances directory: %w", err)
	}

	if _, err := os.Stat(ir.path(instance.ID)); err == nil {
		return persistence.NewInstanceError("Create", instance.ID, persistence.ErrInstanceAlreadyExists)
	}

	return ir.write(instance)
}

func (ir *InstanceRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	ir.mu.Lock()
	defer ir.mu.Unlock()

	return ir.read(id)
}

func (ir *InstanceRepository) Update(ctx context.Context, id string, update models.InstanceUpdate) (*models.WorkflowInstance, error) {
	ir.mu.Lock()
	defer ir.mu.Unlock()

	instance, err := ir.read(id)
	if err != nil {
		return nil, err
	}

	if instance.Version != update.ExpectedVersion {
		return nil, persistence.NewInstanceError("Update", id, persistence.ErrVersionConflict)
	}

	applyUpdate(instance, update)
	instance.Version++

	if err := ir.write(instance); err != nil {
		return nil, err
	}

	return instance, nil
}

func (ir *InstanceRepository) ListByStatus(ctx context.Context, status models.InstanceStatus) ([]*models.WorkflowInstance, error) {
	ir.mu.Lock()
	defer ir.mu.Unlock()

	root := os.DirFS(filepath.Join(ir.root, "instances"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list instance files: %w", err)
	}

	instances := make([]*models.WorkflowInstance, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		instance, err := ir.read(file[:len(file)-5])
		if err != nil {
			return nil, err
		}

		if instance.Status == status {
			instances = append(instances, instance)
		}
	}

	return instances, nil
}

func (ir *InstanceRepository) read(id string) (*models.WorkflowInstance, error) {
	data, err := os.ReadFile(ir.path(id))
	if os.IsNotExist(err) {
		return nil, persistence.NewInstanceError("GetByID", id, persistence.ErrInstanceNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read instance %s: %w", id, err)
	}

	var instance models.WorkflowInstance
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("failed to decode instance %s: %w", id, err)
	}

	return &instance, nil
}

func (ir *InstanceRepository) write(instance *models.WorkflowInstance) error {
	data, err := json.MarshalIndent(instance, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode instance %s: %w", instance.ID, err)
	}

	if err := os.WriteFile(ir.path(instance.ID), data, 0o600); err != nil {
		return fmt.Errorf("failed to write instance %s: %w", instance.ID, err)
	}

	return nil
}

// applyUpdate merges the mutable fields of an update into an instance.
// Shared by the file and postgres repositories' semantics: phase data is a
// key-wise merge, everything else is a replace.
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

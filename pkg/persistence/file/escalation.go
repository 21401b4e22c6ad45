package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/bloomcare/careflow/pkg/models"
)

// EscalationRepository stores one JSON file per armed wake-up, keyed by
// instance id and phase id.
type EscalationRepository struct {
	root string
	mu   sync.Mutex
}

// NewEscalationRepository creates a new escalation repository.
func NewEscalationRepository(root string) *EscalationRepository {
	return &EscalationRepository{root: root}
}

func (er *EscalationRepository) path(instanceID string, phaseID int) string {
	return filepath.Join(er.root, "escalations", instanceID+"__"+strconv.Itoa(phaseID)+".json")
}

func (er *EscalationRepository) Arm(ctx context.Context, wakeup models.EscalationWakeup) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	if err := os.MkdirAll(filepath.Join(er.root, "escalations"), dirPerm); err != nil {
		return fmt.Errorf("failed to create escalations directory: %w", err)
	}

	data, err := json.Marshal(wakeup)
	if err != nil {
		return fmt.Errorf("failed to encode wakeup: %w", err)
	}

	// Re-arming the same (instance, phase) overwrites: Arm is idempotent.
	if err := os.WriteFile(er.path(wakeup.InstanceID, wakeup.PhaseID), data, 0o600); err != nil {
		return fmt.Errorf("failed to write wakeup: %w", err)
	}

	return nil
}

func (er *EscalationRepository) Disarm(ctx context.Context, instanceID string, phaseID int) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	err := os.Remove(er.path(instanceID, phaseID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove wakeup: %w", err)
	}

	return nil
}

func (er *EscalationRepository) DisarmAll(ctx context.Context, instanceID string) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	root := os.DirFS(filepath.Join(er.root, "escalations"))

	files, err := fs.Glob(root, instanceID+"__*.json")
	if err != nil {
		return fmt.Errorf("failed to list wakeups: %w", err)
	}

	for _, file := range files {
		err := os.Remove(filepath.Join(er.root, "escalations", file))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove wakeup %s: %w", file, err)
		}
	}

	return nil
}

func (er *EscalationRepository) Due(ctx context.Context, at time.Time) ([]models.EscalationWakeup, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	root := os.DirFS(filepath.Join(er.root, "escalations"))

	files, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list wakeups: %w", err)
	}

	due := make([]models.EscalationWakeup, 0, len(files))

	for _, file := range files {
		data, err := os.ReadFile(filepath.Join(er.root, "escalations", file))
		if os.IsNotExist(err) {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("failed to read wakeup %s: %w", file, err)
		}

		var wakeup models.EscalationWakeup
		if err := json.Unmarshal(data, &wakeup); err != nil {
			return nil, fmt.Errorf("failed to decode wakeup %s: %w", file, err)
		}

		if !wakeup.DueAt.After(at) {
			due = append(due, wakeup)
		}
	}

	return due, nil
}

package audit

import (
	"context"
	"sync"

	"github.com/bloomcare/careflow/pkg/models"
)

// MemoryRecorder keeps records in memory. Used in tests and local runs.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []models.ActionExecutionRecord
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (r *MemoryRecorder) Record(_ context.Context, entry models.ActionExecutionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry)

	return nil
}

// Entries returns a copy of everything recorded so far.
func (r *MemoryRecorder) Entries() []models.ActionExecutionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.ActionExecutionRecord, len(r.entries))
	copy(out, r.entries)

	return out
}

// ByPhase returns recorded entries for one workflow phase.
func (r *MemoryRecorder) ByPhase(workflowID string, phase int) []models.ActionExecutionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.ActionExecutionRecord

	for _, entry := range r.entries {
		if entry.WorkflowID == workflowID && entry.PhaseNumber == phase {
			out = append(out, entry)
		}
	}

	return out
}

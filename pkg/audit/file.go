package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bloomcare/careflow/pkg/models"
)

// FileRecorder appends records as JSON lines to a single trail file.
type FileRecorder struct {
	path string
	mu   sync.Mutex
}

// NewFileRecorder creates a file-backed recorder writing to path.
func NewFileRecorder(path string) (*FileRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	return &FileRecorder{path: path}, nil
}

func (r *FileRecorder) Record(_ context.Context, entry models.ActionExecutionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode audit record: %w", err)
	}

	file, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit trail: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}

	return nil
}

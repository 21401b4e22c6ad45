// Package file provides file-based persistence for workflow instances and
// escalation wake-ups. Intended for development and tests; every record is
// one JSON document under the root directory.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/bloomcare/careflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root           string
	instanceRepo   *InstanceRepository
	escalationRepo *EscalationRepository
}

// NewPersistence creates file-backed persistence rooted at the given
// directory. Accepts a file:// URL or a plain path.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:           cleanRoot,
		instanceRepo:   NewInstanceRepository(cleanRoot),
		escalationRepo: NewEscalationRepository(cleanRoot),
	}
}

func (fp *Persistence) Instances() persistence.InstanceRepository {
	return fp.instanceRepo
}

func (fp *Persistence) Escalations() persistence.EscalationRepository {
	return fp.escalationRepo
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. Nothing to clean up for files.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

package cmd

import (
	"fmt"

	"github.com/bloomcare/careflow/pkg/locks"
)

// NewLockManager returns a Redis-backed lock manager when a Redis URL is
// configured, and an in-process manager otherwise. Multi-replica deployments
// must configure Redis so instance serialization holds across processes.
func NewLockManager(redisURL string) (locks.Manager, error) {
	if redisURL == "" {
		return locks.NewMemoryManager(), nil
	}

	manager, err := locks.NewRedisManagerFromURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis lock manager: %w", err)
	}

	return manager, nil
}

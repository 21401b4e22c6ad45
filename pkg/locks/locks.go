// Package locks serializes state-changing operations per workflow
// instance. Two concurrent advance attempts on one instance must not both
// win; the lock manager guarantees only one mutation runs at a time.
package locks

import "context"

// Manager hands out per-instance mutual exclusion. Acquire blocks until
// the lock is held or the context is done; the returned release function
// must be called exactly once.
type Manager interface {
	Acquire(ctx context.Context, instanceID string) (release func(), err error)
}

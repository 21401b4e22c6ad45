package locks

import (
	"context"
	"sync"
)

// MemoryManager keys a mutex per instance id. Suitable for a single
// process; multi-process deployments use the Redis manager.
type MemoryManager struct {
	mu    sync.Mutex
	locks map[string]*instanceLock
}

type instanceLock struct {
	mu   sync.Mutex
	refs int
}

func NewMemoryManager() *MemoryManager {
	return &MemoryManager{
		locks: make(map[string]*instanceLock),
	}
}

func (m *MemoryManager) Acquire(ctx context.Context, instanceID string) (func(), error) {
	m.mu.Lock()

	lock, ok := m.locks[instanceID]
	if !ok {
		lock = &instanceLock{}
		m.locks[instanceID] = lock
	}

	lock.refs++
	m.mu.Unlock()

	acquired := make(chan struct{})

	go func() {
		lock.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-ctx.Done():
		// The goroutine still holds or will hold the mutex; hand it back
		// as soon as it is taken.
		go func() {
			<-acquired
			m.release(instanceID, lock)
		}()

		return nil, ctx.Err()
	}

	return func() { m.release(instanceID, lock) }, nil
}

func (m *MemoryManager) release(instanceID string, lock *instanceLock) {
	lock.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(m.locks, instanceID)
	}
}

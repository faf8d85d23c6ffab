package listinglock

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps locks in process. It suits tests and single-process
// tooling.
type MemoryStore struct {
	mu      sync.Mutex
	active  map[string]Lock
	history []Lock
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{active: make(map[string]Lock)}
}

func (m *MemoryStore) TryInsert(_ context.Context, lock Lock) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.active[lock.SKU]; held {
		return false, nil
	}
	lock.IsActive = true
	m.active[lock.SKU] = lock
	return true, nil
}

func (m *MemoryStore) Active(_ context.Context, sku string) (Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.active[sku]
	if !ok {
		return Lock{}, ErrNoActiveLock
	}
	return lock, nil
}

func (m *MemoryStore) Deactivate(_ context.Context, sku, lockID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.active[sku]
	if !ok || (lockID != "" && lock.ID != lockID) {
		return false, nil
	}
	delete(m.active, sku)
	lock.IsActive = false
	unlocked := at
	lock.UnlockedAt = &unlocked
	m.history = append(m.history, lock)
	return true, nil
}

func (m *MemoryStore) ListActiveBefore(_ context.Context, cutoff time.Time) ([]Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Lock
	for _, lock := range m.active {
		if lock.LockedAt.Before(cutoff) {
			out = append(out, lock)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LockedAt.Before(out[j].LockedAt) })
	return out, nil
}

// History returns released locks for sku, oldest first. Tests use it to
// check what a sweep or release recorded.
func (m *MemoryStore) History(sku string) []Lock {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Lock
	for _, lock := range m.history {
		if lock.SKU == sku {
			out = append(out, lock)
		}
	}
	return out
}

package store

import (
	"context"
	"sync"

	"github.com/skycast/skycast/internal/location"
)

// MemoryStore is an in-memory implementation of Store. It backs tests and
// ephemeral runs where no database path is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	locs []location.Location
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locs: []location.Location{}}
}

// Add appends a location, de-duplicated by coordinate pair.
func (m *MemoryStore) Add(_ context.Context, loc location.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locs = appendUnique(m.locs, loc)
	return nil
}

// Remove deletes the location with the same coordinate pair.
func (m *MemoryStore) Remove(_ context.Context, loc location.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	locs, removed := removeByKey(m.locs, loc)
	if !removed {
		return ErrNotFound
	}
	m.locs = locs
	return nil
}

// List returns a copy of the saved locations in insertion order.
func (m *MemoryStore) List(_ context.Context) ([]location.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]location.Location, len(m.locs))
	copy(out, m.locs)
	return out, nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

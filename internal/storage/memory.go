package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend is an in-process session record store. Suitable for a single
// instance; records don't survive a restart, which only forces a re-login.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]Record
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		records: make(map[string]Record),
	}
}

// Put stores or overwrites a record
func (m *MemoryBackend) Put(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[rec.ID] = rec
	return nil
}

// Get returns the record, treating expired records as absent
func (m *MemoryBackend) Get(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok || rec.Expired(time.Now()) {
		return Record{}, ErrRecordNotFound
	}
	return rec, nil
}

// Delete removes the record; deleting a missing record is not an error
func (m *MemoryBackend) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, id)
	return nil
}

// DeleteExpired sweeps records past their expiry
func (m *MemoryBackend) DeleteExpired(_ context.Context) (int, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for id, rec := range m.records {
		if rec.Expired(now) {
			delete(m.records, id)
			count++
		}
	}
	return count, nil
}

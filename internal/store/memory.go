package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory face record store used by tests and local runs
// without a database. It mirrors the Postgres repository's semantics.
type Memory struct {
	mu      sync.RWMutex
	records []FaceRecord
	nextID  int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

// InsertFaces appends records, assigning ids and creation timestamps.
func (m *Memory) InsertFaces(_ context.Context, records []FaceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		rec.ID = m.nextID
		m.nextID++
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		m.records = append(m.records, rec)
	}
	return nil
}

// FindBySlots returns records whose slot id is in slots, restricted to the
// given event.
func (m *Memory) FindBySlots(_ context.Context, eventID string, slots []int64) ([]FaceRecord, error) {
	wanted := make(map[int64]bool, len(slots))
	for _, s := range slots {
		wanted[s] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []FaceRecord
	for _, rec := range m.records {
		if rec.EventID == eventID && wanted[rec.SlotID] {
			out = append(out, rec)
		}
	}
	return out, nil
}

// CountFaces returns the total number of stored records.
func (m *Memory) CountFaces(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.records)), nil
}

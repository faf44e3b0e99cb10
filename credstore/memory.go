package credstore

import (
	"context"
	"sync"
)

// Memory keeps records in process memory. Several Memory values created with
// [NewMemoryShared] over the same map see each other's writes, which lets tests simulate
// two processes sharing a medium.
type Memory struct {
	mu      *sync.Mutex
	records map[string]Record
	profile string
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		mu:      &sync.Mutex{},
		records: make(map[string]Record),
		profile: DefaultProfile,
	}
}

// NewMemoryShared returns a backend for profile that shares storage with m.
func (m *Memory) NewMemoryShared(profile string) *Memory {
	return &Memory{
		mu:      m.mu,
		records: m.records,
		profile: profileOrDefault(profile),
	}
}

func (m *Memory) Load(context.Context) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[m.profile]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.IsZero() {
		delete(m.records, m.profile)
		return nil
	}
	m.records[m.profile] = rec
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, m.profile)
	return nil
}

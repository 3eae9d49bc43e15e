package cache

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. It is used when no remote store is
// configured and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]Row
	now  func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[string]Row),
		now:  time.Now,
	}
}

// SetClock replaces the clock used to stamp created_at.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Put writes a raw row as-is, bypassing created_at assignment.
// Useful for seeding rows with specific or malformed timestamps.
func (s *MemoryStore) Put(row Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[row.Key] = row
}

// Len returns the number of rows.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func (s *MemoryStore) SelectByKey(_ context.Context, key string) (*Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[key]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (s *MemoryStore) Upsert(_ context.Context, key string, value json.RawMessage, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows[key] = Row{
		Key:        key,
		Value:      append(json.RawMessage(nil), value...),
		CreatedAt:  s.now().UTC().Format(time.RFC3339Nano),
		TTLSeconds: ttlSeconds(ttl),
	}
	return nil
}

func (s *MemoryStore) DeleteByKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, key)
	return nil
}

func (s *MemoryStore) SelectAll(_ context.Context) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]Row, 0, len(s.rows))
	for _, row := range s.rows {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

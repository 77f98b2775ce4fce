package codes

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local AttemptStore used in tests and single-node
// deployments without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*memoryEntry

	now func() time.Time
}

type memoryEntry struct {
	count   int64
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Incr(_ context.Context, fileID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[fileID]
	if !ok || s.now().After(e.expires) {
		e = &memoryEntry{expires: s.now().Add(s.ttl)}
		s.entries[fileID] = e
	}
	e.count++
	return e.count, nil
}

func (s *MemoryStore) Reset(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, fileID)
	return nil
}

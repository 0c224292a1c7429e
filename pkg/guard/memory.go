package guard

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process MarkerStore with TTL expiry, used in tests
// and single-node deployments without Valkey.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]time.Time)}
}

func (s *MemoryStore) SetIfAbsent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exp, ok := s.entries[key]; ok && time.Now().Before(exp) {
		return false, nil
	}
	s.entries[key] = time.Now().Add(ttl)
	return true, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if time.Now().After(exp) {
		delete(s.entries, key)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

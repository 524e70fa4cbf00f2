package envcache

import (
	"context"
	"sync"
	"time"

	"github.com/wellora/wellcheck/internal/domain/environment"
)

type entry struct {
	summary   environment.Summary
	expiresAt time.Time
}

// MemoryStore is an in-process environment.Cache used for tests/dev and as
// the fallback when no Valkey instance is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryStore constructs a cache backed by process memory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get implements environment.Cache.
func (s *MemoryStore) Get(_ context.Context, key string) (environment.Summary, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return environment.Summary{}, false, nil
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return environment.Summary{}, false, nil
	}
	return e.summary, true, nil
}

// Set implements environment.Cache.
func (s *MemoryStore) Set(_ context.Context, key string, summary environment.Summary, ttl time.Duration) error {
	e := entry{summary: summary}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

package historyrepo

import (
	"context"
	"sync"

	"github.com/wellora/wellcheck/internal/domain/analysis"
)

// MemoryRepository is an in-memory Recorder used for tests/dev and as the
// fallback when no database is configured.
type MemoryRepository struct {
	mu      sync.RWMutex
	records []analysis.Record
}

// NewMemoryRepository constructs a recorder backed by process memory.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Save implements analysis.Recorder.
func (r *MemoryRepository) Save(_ context.Context, rec analysis.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

// All returns a copy of every saved record.
func (r *MemoryRepository) All() []analysis.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]analysis.Record, len(r.records))
	copy(out, r.records)
	return out
}

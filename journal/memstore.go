package journal

import (
	"context"
	"maps"
	"sync"
)

// MemStore is a thread-safe in-memory journal store.
type MemStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemStore creates a new in-memory journal store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Append(_ context.Context, entry Entry) error {
	entry.Payload = maps.Clone(entry.Payload)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemStore) List(_ context.Context, afterSeq uint64, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Entry
	for _, e := range s.entries {
		if afterSeq > 0 && e.Seq <= afterSeq {
			continue
		}
		e.Payload = maps.Clone(e.Payload)
		result = append(result, e)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *MemStore) LatestSeq(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var maxSeq uint64
	for _, e := range s.entries {
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	}
	return maxSeq, nil
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

package cache

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryStore keeps entries in process memory, used as the default backend
// and as fallback when no persistent backend is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	stats   struct {
		hits   atomic.Int64
		misses atomic.Int64
		sets   atomic.Int64
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

// Get returns the cached entry for the key.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		s.stats.misses.Add(1)
		return nil, false
	}
	s.stats.hits.Add(1)
	return entry, true
}

// Set stores the entry under the key.
func (s *MemoryStore) Set(_ context.Context, key string, entry *Entry) {
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	s.stats.sets.Add(1)
}

// Purge removes all entries.
func (s *MemoryStore) Purge(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]*Entry)
	s.mu.Unlock()
	return nil
}

// Stats returns usage counters.
func (s *MemoryStore) Stats() Stats {
	s.mu.RLock()
	size := len(s.entries)
	s.mu.RUnlock()

	return Stats{
		Hits:        s.stats.hits.Load(),
		Misses:      s.stats.misses.Load(),
		Sets:        s.stats.sets.Load(),
		CurrentSize: size,
	}
}

// Close is a no-op for the memory backend.
func (s *MemoryStore) Close() error { return nil }

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// DiskStore persists entries in a badger database so conditional requests
// survive across runs.
type DiskStore struct {
	db     *badger.DB
	logger zerolog.Logger
	stats  struct {
		hits   atomic.Int64
		misses atomic.Int64
		sets   atomic.Int64
	}
}

// NewDiskStore opens or creates the badger database at dir.
func NewDiskStore(dir string, logger zerolog.Logger) (*DiskStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache at '%s': %w", dir, err)
	}

	return &DiskStore{db: db, logger: logger}, nil
}

// Get returns the cached entry for the key.
func (s *DiskStore) Get(_ context.Context, key string) (*Entry, bool) {
	var entry Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		if err != badger.ErrKeyNotFound {
			s.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		s.stats.misses.Add(1)
		return nil, false
	}

	s.stats.hits.Add(1)
	return &entry, true
}

// Set stores the entry under the key.
func (s *DiskStore) Set(_ context.Context, key string, entry *Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache marshal failed")
		return
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
		return
	}
	s.stats.sets.Add(1)
}

// Purge drops all cached entries.
func (s *DiskStore) Purge(_ context.Context) error {
	return s.db.DropAll()
}

// Stats returns usage counters. The size scan skips value prefetching.
func (s *DiskStore) Stats() Stats {
	size := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			size++
		}
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("cache size scan failed")
	}

	return Stats{
		Hits:        s.stats.hits.Load(),
		Misses:      s.stats.misses.Load(),
		Sets:        s.stats.sets.Load(),
		CurrentSize: size,
	}
}

// Close closes the underlying database.
func (s *DiskStore) Close() error {
	return s.db.Close()
}

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Entry is a cached API response together with its validator. Responses are
// replayed on 304 Not Modified without counting against the rate limit
// budget.
type Entry struct {
	ETag     string              `json:"etag"`
	Body     []byte              `json:"body"`
	Headers  map[string][]string `json:"headers,omitempty"`
	CachedAt time.Time           `json:"cached_at"`
}

// Store persists conditional request state between runs. Lookups never fail
// hard: backend errors degrade to cache misses.
type Store interface {
	// Get returns the cached entry for a request key, false on miss.
	Get(ctx context.Context, key string) (*Entry, bool)

	// Set stores the entry under the request key.
	Set(ctx context.Context, key string, entry *Entry)

	// Purge removes all cached entries.
	Purge(ctx context.Context) error

	// Stats returns usage counters.
	Stats() Stats

	// Close releases backend resources.
	Close() error
}

// Stats holds cache usage counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	CurrentSize int
}

// Options selects and configures the cache backend.
type Options struct {
	// Backend is one of memory, disk or redis.
	Backend string
	// Dir is the on-disk location for the disk backend.
	Dir string
	// RedisAddr is the host:port for the redis backend.
	RedisAddr string
	// TTL bounds the lifetime of redis entries, zero means no expiry.
	TTL time.Duration
}

// New creates the configured cache backend.
func New(opts Options, logger zerolog.Logger) (Store, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "disk":
		return NewDiskStore(opts.Dir, logger)
	case "redis":
		return NewRedisStore(RedisConfig{Addr: opts.RedisAddr, TTL: opts.TTL}, logger)
	default:
		return nil, fmt.Errorf("unknown cache backend '%s', use 'memory', 'disk' or 'redis'", opts.Backend)
	}
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore is a redis backed store, for deployments where several runners
// share one cache.
type RedisStore struct {
	client *redis.Client
	logger zerolog.Logger
	ttl    time.Duration
	stats  struct {
		hits   atomic.Int64
		misses atomic.Int64
		sets   atomic.Int64
	}
}

// RedisConfig holds redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisStore creates a redis backed store and verifies the connection.
func NewRedisStore(config RedisConfig, logger zerolog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", config.Addr).
		Int("db", config.DB).
		Msg("connected to redis cache")

	return &RedisStore{client: client, logger: logger, ttl: config.TTL}, nil
}

// Get returns the cached entry for the key.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	val, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		s.stats.misses.Add(1)
		return nil, false
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("redis get failed")
		s.stats.misses.Add(1)
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(val, &entry); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache unmarshal failed")
		s.stats.misses.Add(1)
		return nil, false
	}

	s.stats.hits.Add(1)
	return &entry, true
}

// Set stores the entry under the key.
func (s *RedisStore) Set(ctx context.Context, key string, entry *Entry) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	data, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache marshal failed")
		return
	}

	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("redis set failed")
		return
	}
	s.stats.sets.Add(1)
}

// Purge flushes the current redis database.
func (s *RedisStore) Purge(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.FlushDB(ctx).Err()
}

// Stats returns usage counters.
func (s *RedisStore) Stats() Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	size, err := s.client.DBSize(ctx).Result()
	if err != nil {
		s.logger.Warn().Err(err).Msg("redis dbsize failed")
		size = 0
	}

	return Stats{
		Hits:        s.stats.hits.Load(),
		Misses:      s.stats.misses.Load(),
		Sets:        s.stats.sets.Load(),
		CurrentSize: int(size),
	}
}

// Close closes the redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

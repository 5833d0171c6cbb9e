// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sidecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pdiddy/figurescout/internal/logging"
	"github.com/pdiddy/figurescout/pkg/types"
)

// KeyPrefix namespaces every key this package writes.
const KeyPrefix = "figurescout:"

const sessionKey = KeyPrefix + "session"

// connectionTimeout bounds the ping made when connecting.
const connectionTimeout = 5 * time.Second

// ErrEmptyAddress is returned when the redis backend has no address.
var ErrEmptyAddress = errors.New("redis address is required")

// NewRedisClient connects to the server named by cfg and verifies it with
// a ping.
func NewRedisClient(cfg types.CacheConfig) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, ErrEmptyAddress
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// RedisCache keeps the snapshot under a single key with a TTL equal to the
// freshness window. The embedded timestamp is still checked on read so a
// server with a skewed clock or a persisted keyspace cannot serve stale data.
type RedisCache struct {
	client *redis.Client
	maxAge time.Duration
	log    logging.Logger
}

// NewRedisCache wraps an open client.
func NewRedisCache(client *redis.Client, maxAge time.Duration) *RedisCache {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &RedisCache{client: client, maxAge: maxAge, log: logging.NewNop()}
}

func (c *RedisCache) Save(ctx context.Context, entry types.CacheEntry) error {
	data, err := encode(entry)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, sessionKey, data, c.maxAge).Err(); err != nil {
		return fmt.Errorf("writing cache key: %w", err)
	}
	return nil
}

func (c *RedisCache) Load(ctx context.Context) (types.CacheEntry, error) {
	data, err := c.client.Get(ctx, sessionKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.CacheEntry{}, ErrMiss
	}
	if err != nil {
		return types.CacheEntry{}, fmt.Errorf("reading cache key: %w", err)
	}
	entry, err := decode(data, c.maxAge)
	if errors.Is(err, ErrMiss) {
		dropStale(ctx, c.log, c.Clear)
	}
	return entry, err
}

func (c *RedisCache) Clear(ctx context.Context) error {
	if err := c.client.Del(ctx, sessionKey).Err(); err != nil {
		return fmt.Errorf("removing cache key: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

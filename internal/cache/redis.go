package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"fiscora/internal/domain"
	"fiscora/internal/port"
)

var _ port.ResultCache = (*RedisCache)(nil)

const redisKeyPrefix = "fiscora:extract:"

// RedisCache is a ResultCache backed by Redis. Values are stored as JSON and
// expiry is delegated to Redis TTLs. Hit and miss counters are per-process.
type RedisCache struct {
	client *redis.Client
	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisCache wraps an already-connected Redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, fingerprint string) (*domain.CachedExtraction, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+fingerprint).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}

	var value domain.CachedExtraction
	if err := json.Unmarshal(raw, &value); err != nil {
		// A corrupt entry is unusable; drop it and treat the read as a miss.
		c.client.Del(ctx, redisKeyPrefix+fingerprint)
		c.misses.Add(1)
		return nil, false, nil
	}
	c.hits.Add(1)
	return &value, true, nil
}

func (c *RedisCache) Put(ctx context.Context, fingerprint string, value *domain.CachedExtraction, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache.RedisCache: marshaling entry: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+fingerprint, raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, fingerprint string) error {
	if err := c.client.Del(ctx, redisKeyPrefix+fingerprint).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

func (c *RedisCache) Stats(ctx context.Context) (*port.CacheStats, error) {
	entries := 0
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		entries++
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return &port.CacheStats{
		Type:    "redis",
		Entries: entries,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

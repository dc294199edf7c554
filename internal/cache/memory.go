// Package cache provides the in-memory and Redis implementations of the
// extraction result cache.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fiscora/internal/domain"
	"fiscora/internal/port"
)

var _ port.ResultCache = (*MemoryCache)(nil)

type memoryEntry struct {
	value     *domain.CachedExtraction
	expiresAt time.Time
}

// MemoryCache is a process-local ResultCache. Expiry is lazy: entries are
// dropped when a Get finds them stale, not by a background sweeper.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	hits    atomic.Int64
	misses  atomic.Int64
	now     func() time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, fingerprint string) (*domain.CachedExtraction, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[fingerprint]
	c.mu.RUnlock()

	if ok && c.now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a Put may have refreshed the entry.
		if cur, still := c.entries[fingerprint]; still && c.now().After(cur.expiresAt) {
			delete(c.entries, fingerprint)
		}
		c.mu.Unlock()
		ok = false
	}

	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}
	c.hits.Add(1)
	return entry.value, true, nil
}

func (c *MemoryCache) Put(_ context.Context, fingerprint string, value *domain.CachedExtraction, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[fingerprint] = memoryEntry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, fingerprint string) error {
	c.mu.Lock()
	delete(c.entries, fingerprint)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Stats(_ context.Context) (*port.CacheStats, error) {
	c.mu.RLock()
	entries := len(c.entries)
	c.mu.RUnlock()
	return &port.CacheStats{
		Type:    "memory",
		Entries: entries,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscora/internal/domain"
)

func entry(ref string) *domain.CachedExtraction {
	return &domain.CachedExtraction{
		Result: domain.ExtractionResult{DocumentRef: ref},
		Report: domain.ValidationReport{IsValid: true},
	}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("put then get", func(t *testing.T) {
		c := NewMemoryCache()
		require.NoError(t, c.Put(ctx, "fp-1", entry("doc-1"), time.Minute))

		got, hit, err := c.Get(ctx, "fp-1")
		require.NoError(t, err)
		assert.True(t, hit)
		assert.Equal(t, "doc-1", got.Result.DocumentRef)
	})

	t.Run("miss on unknown fingerprint", func(t *testing.T) {
		c := NewMemoryCache()
		_, hit, err := c.Get(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("expired entry reads as a miss", func(t *testing.T) {
		c := NewMemoryCache()
		now := time.Now()
		c.now = func() time.Time { return now }

		require.NoError(t, c.Put(ctx, "fp-1", entry("doc-1"), time.Minute))

		now = now.Add(2 * time.Minute)
		_, hit, err := c.Get(ctx, "fp-1")
		require.NoError(t, err)
		assert.False(t, hit)

		stats, err := c.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Entries)
	})

	t.Run("invalidate removes one entry", func(t *testing.T) {
		c := NewMemoryCache()
		require.NoError(t, c.Put(ctx, "fp-1", entry("doc-1"), time.Minute))
		require.NoError(t, c.Put(ctx, "fp-2", entry("doc-2"), time.Minute))

		require.NoError(t, c.Invalidate(ctx, "fp-1"))

		_, hit, _ := c.Get(ctx, "fp-1")
		assert.False(t, hit)
		_, hit, _ = c.Get(ctx, "fp-2")
		assert.True(t, hit)
	})

	t.Run("clear removes everything", func(t *testing.T) {
		c := NewMemoryCache()
		require.NoError(t, c.Put(ctx, "fp-1", entry("doc-1"), time.Minute))
		require.NoError(t, c.Clear(ctx))

		stats, err := c.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Entries)
	})

	t.Run("stats count hits and misses", func(t *testing.T) {
		c := NewMemoryCache()
		require.NoError(t, c.Put(ctx, "fp-1", entry("doc-1"), time.Minute))

		c.Get(ctx, "fp-1")
		c.Get(ctx, "fp-1")
		c.Get(ctx, "missing")

		stats, err := c.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, "memory", stats.Type)
		assert.Equal(t, int64(2), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)
	})
}

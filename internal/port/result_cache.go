package port

import (
	"context"
	"time"

	"fiscora/internal/domain"
)

// CacheStats is a snapshot of cache health for the stats endpoint.
type CacheStats struct {
	Type    string `json:"type"`
	Entries int    `json:"entries"`
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
}

// ResultCache stores (ExtractionResult, ValidationReport) pairs keyed by
// document fingerprint. Entries expire lazily after their TTL; a read after
// expiry behaves like a miss.
type ResultCache interface {
	Get(ctx context.Context, fingerprint string) (*domain.CachedExtraction, bool, error)
	Put(ctx context.Context, fingerprint string, value *domain.CachedExtraction, ttl time.Duration) error
	Invalidate(ctx context.Context, fingerprint string) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (*CacheStats, error)
}

package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"fiscora/internal/domain"
	"fiscora/internal/port"
	"fiscora/internal/validator"
)

// ExtractionService is the cached front door of the pipeline. Identical
// concurrent requests (same document content, same config) are coalesced so
// the expensive OCR work runs once.
type ExtractionService struct {
	store        port.DocumentStore
	cache        port.ResultCache
	orchestrator *Orchestrator
	validation   *validator.Engine
	defaultTTL   time.Duration
	group        singleflight.Group
}

// NewExtractionService builds the service. defaultTTL applies when a request
// enables caching without its own TTL.
func NewExtractionService(store port.DocumentStore, cache port.ResultCache, orchestrator *Orchestrator, validation *validator.Engine, defaultTTL time.Duration) *ExtractionService {
	return &ExtractionService{
		store:        store,
		cache:        cache,
		orchestrator: orchestrator,
		validation:   validation,
		defaultTTL:   defaultTTL,
	}
}

// Extract runs (or replays) the pipeline for one document reference. Cache
// failures degrade to uncached operation; they never fail the request.
func (s *ExtractionService) Extract(ctx context.Context, ref string, cfg domain.ExtractionConfig) (*domain.CachedExtraction, error) {
	doc, err := s.store.Fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetching document %s: %w", ref, err)
	}
	return s.extract(ctx, doc, cfg)
}

// ExtractBytes runs the pipeline on document bytes supplied directly, e.g. a
// multipart upload, bypassing the document store. Caching works the same way
// since the content hash is derived from the bytes themselves.
func (s *ExtractionService) ExtractBytes(ctx context.Context, name string, data []byte, contentType string, cfg domain.ExtractionConfig) (*domain.CachedExtraction, error) {
	sum := sha256.Sum256(data)
	doc := &port.Document{
		Ref:         name,
		Bytes:       data,
		ContentHash: hex.EncodeToString(sum[:]),
		ContentType: contentType,
	}
	return s.extract(ctx, doc, cfg)
}

func (s *ExtractionService) extract(ctx context.Context, doc *port.Document, cfg domain.ExtractionConfig) (*domain.CachedExtraction, error) {
	fingerprint := cfg.Fingerprint(doc.ContentHash)

	if cfg.Cache.UseCache {
		cached, hit, err := s.cache.Get(ctx, fingerprint)
		if err != nil {
			log.Printf("service.ExtractionService: cache read failed for %s, proceeding uncached: %v", doc.Ref, err)
		} else if hit {
			return cached, nil
		}
	}

	v, err, _ := s.group.Do(fingerprint, func() (interface{}, error) {
		// Every coalesced waiter shares this one run, so it must not die
		// with the first caller's context. The per-call OCR timeout still
		// bounds it.
		runCtx := context.WithoutCancel(ctx)
		if cfg.OCR.TimeoutSecs > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, time.Duration(cfg.OCR.TimeoutSecs)*time.Second)
			defer cancel()
		}
		return s.runPipeline(runCtx, doc, cfg, fingerprint)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.CachedExtraction), nil
}

func (s *ExtractionService) runPipeline(ctx context.Context, doc *port.Document, cfg domain.ExtractionConfig, fingerprint string) (*domain.CachedExtraction, error) {
	result, err := s.orchestrator.Extract(ctx, *doc, cfg)
	if err != nil {
		return nil, err
	}
	report := s.validation.Validate(ctx, result, cfg)
	entry := &domain.CachedExtraction{Result: *result, Report: *report}

	if cfg.Cache.UseCache {
		ttl := s.defaultTTL
		if cfg.Cache.TTLSeconds > 0 {
			ttl = time.Duration(cfg.Cache.TTLSeconds) * time.Second
		}
		if err := s.cache.Put(ctx, fingerprint, entry, ttl); err != nil {
			log.Printf("service.ExtractionService: cache write failed for %s: %v", doc.Ref, err)
		}
	}
	return entry, nil
}

// Invalidate drops the cached entry for one document reference under cfg.
func (s *ExtractionService) Invalidate(ctx context.Context, ref string, cfg domain.ExtractionConfig) error {
	doc, err := s.store.Fetch(ctx, ref)
	if err != nil {
		return fmt.Errorf("fetching document %s: %w", ref, err)
	}
	return s.cache.Invalidate(ctx, cfg.Fingerprint(doc.ContentHash))
}

// ClearCache empties the result cache.
func (s *ExtractionService) ClearCache(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

// CacheStats exposes cache health for the stats endpoint.
func (s *ExtractionService) CacheStats(ctx context.Context) (*port.CacheStats, error) {
	return s.cache.Stats(ctx)
}

package service_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fiscora/internal/cache"
	"fiscora/internal/domain"
	"fiscora/internal/engine"
	"fiscora/internal/port"
	"fiscora/internal/preprocess"
	"fiscora/internal/service"
	"fiscora/internal/validator"
	"fiscora/internal/validator/fiscal"
	"fiscora/mocks"
)

// countingEngine counts Run invocations; used to observe request coalescing.
type countingEngine struct {
	name  string
	delay time.Duration
	runs  atomic.Int32
}

func (e *countingEngine) Run(ctx context.Context, _ []byte, _ domain.OCROptions) (*domain.TokenStream, error) {
	e.runs.Add(1)
	select {
	case <-time.After(e.delay):
	case <-ctx.Done():
		return nil, domain.NewEngineFailure(e.name, "cancelled", ctx.Err())
	}
	return goodStream(), nil
}

func (e *countingEngine) IsAvailable() bool { return true }
func (e *countingEngine) Name() string     { return e.name }
func (e *countingEngine) Version() string  { return "1.0" }

func newValidation() *validator.Engine {
	registry := validator.NewRegistry()
	for _, rule := range fiscal.BuiltinRules() {
		registry.Register(rule)
	}
	e := validator.NewEngine(registry, nil, fiscal.FormatIssues)
	e.RegisterComparator(fiscal.YearComparator{})
	return e
}

func newService(store port.DocumentStore, resultCache port.ResultCache, engines ...port.Engine) *service.ExtractionService {
	registry := engine.NewRegistry()
	for _, e := range engines {
		registry.Register(e)
	}
	selector := engine.ConfigOrderSelector{Order: registry.Names()}
	pre := new(mocks.MockPreprocessor)
	pre.On("Apply", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]byte("img"), nil)
	pipeline := preprocess.NewPipeline(pre)
	orchestrator := service.NewOrchestrator(registry, selector, pipeline)
	return service.NewExtractionService(store, resultCache, orchestrator, newValidation(), time.Hour)
}

func storeWith(ref string) *mocks.MockDocumentStore {
	store := new(mocks.MockDocumentStore)
	store.On("Fetch", mock.Anything, ref).Return(&port.Document{
		Ref: ref, Bytes: []byte("img"), ContentHash: "hash-" + ref, ContentType: "image/png",
	}, nil)
	return store
}

func cachedConfig() domain.ExtractionConfig {
	cfg := orchestratorConfig()
	cfg.Engine = "count"
	cfg.EnginesFallback = nil
	cfg.Cache = domain.CacheOptions{UseCache: true, TTLSeconds: 120}
	return cfg
}

func TestExtractionService(t *testing.T) {
	ctx := context.Background()

	t.Run("repeat request hits the cache", func(t *testing.T) {
		eng := &countingEngine{name: "count"}
		svc := newService(storeWith("doc-1"), cache.NewMemoryCache(), eng)

		first, err := svc.Extract(ctx, "doc-1", cachedConfig())
		require.NoError(t, err)
		second, err := svc.Extract(ctx, "doc-1", cachedConfig())
		require.NoError(t, err)

		assert.Equal(t, int32(1), eng.runs.Load())
		assert.Equal(t, first.Result.ID, second.Result.ID)
	})

	t.Run("config change misses the cache", func(t *testing.T) {
		eng := &countingEngine{name: "count"}
		svc := newService(storeWith("doc-1"), cache.NewMemoryCache(), eng)

		_, err := svc.Extract(ctx, "doc-1", cachedConfig())
		require.NoError(t, err)

		cfg := cachedConfig()
		cfg.Preprocess.Binarize = true
		_, err = svc.Extract(ctx, "doc-1", cfg)
		require.NoError(t, err)

		assert.Equal(t, int32(2), eng.runs.Load())
	})

	t.Run("concurrent identical requests coalesce", func(t *testing.T) {
		eng := &countingEngine{name: "count", delay: 100 * time.Millisecond}
		svc := newService(storeWith("doc-1"), cache.NewMemoryCache(), eng)

		const n = 10
		var wg sync.WaitGroup
		start := make(chan struct{})
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, errs[i] = svc.Extract(ctx, "doc-1", cachedConfig())
			}(i)
		}
		close(start)
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}
		assert.Equal(t, int32(1), eng.runs.Load())
	})

	t.Run("cache read failure degrades to uncached", func(t *testing.T) {
		eng := &countingEngine{name: "count"}
		broken := new(mocks.MockResultCache)
		broken.On("Get", mock.Anything, mock.Anything).Return(nil, false, domain.ErrCacheUnavailable)
		broken.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrCacheUnavailable)

		svc := newService(storeWith("doc-1"), broken, eng)
		entry, err := svc.Extract(ctx, "doc-1", cachedConfig())
		require.NoError(t, err)
		assert.Equal(t, "MD/2412034", entry.Result.ExtractedData.Mandat.Value)
	})

	t.Run("request TTL is honored on write", func(t *testing.T) {
		eng := &countingEngine{name: "count"}
		spy := new(mocks.MockResultCache)
		spy.On("Get", mock.Anything, mock.Anything).Return(nil, false, nil)
		spy.On("Put", mock.Anything, mock.Anything, mock.Anything, 120*time.Second).Return(nil)

		svc := newService(storeWith("doc-1"), spy, eng)
		_, err := svc.Extract(ctx, "doc-1", cachedConfig())
		require.NoError(t, err)
		spy.AssertExpectations(t)
	})

	t.Run("caching disabled bypasses the cache", func(t *testing.T) {
		eng := &countingEngine{name: "count"}
		spy := new(mocks.MockResultCache)

		svc := newService(storeWith("doc-1"), spy, eng)
		cfg := cachedConfig()
		cfg.Cache.UseCache = false
		_, err := svc.Extract(ctx, "doc-1", cfg)
		require.NoError(t, err)
		spy.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
		spy.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("a hung-up caller does not fail the shared run", func(t *testing.T) {
		eng := &countingEngine{name: "count", delay: 20 * time.Millisecond}
		svc := newService(storeWith("doc-1"), cache.NewMemoryCache(), eng)

		gone, hangUp := context.WithCancel(context.Background())
		hangUp()

		entry, err := svc.Extract(gone, "doc-1", cachedConfig())
		require.NoError(t, err)
		assert.Equal(t, "MD/2412034", entry.Result.ExtractedData.Mandat.Value)
	})

	t.Run("uploaded bytes are cached by content, not name", func(t *testing.T) {
		eng := &countingEngine{name: "count"}
		svc := newService(new(mocks.MockDocumentStore), cache.NewMemoryCache(), eng)

		_, err := svc.ExtractBytes(ctx, "upload.png", []byte("img"), "image/png", cachedConfig())
		require.NoError(t, err)
		_, err = svc.ExtractBytes(ctx, "renamed-copy.png", []byte("img"), "image/png", cachedConfig())
		require.NoError(t, err)

		assert.Equal(t, int32(1), eng.runs.Load())
	})

	t.Run("fetch failure surfaces", func(t *testing.T) {
		store := new(mocks.MockDocumentStore)
		store.On("Fetch", mock.Anything, "missing").
			Return(nil, fmt.Errorf("%w: missing", domain.ErrDocumentNotFound))

		svc := newService(store, cache.NewMemoryCache(), &countingEngine{name: "count"})
		_, err := svc.Extract(ctx, "missing", cachedConfig())
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})

	t.Run("validation report rides along", func(t *testing.T) {
		eng := &countingEngine{name: "count"}
		svc := newService(storeWith("doc-1"), cache.NewMemoryCache(), eng)

		entry, err := svc.Extract(ctx, "doc-1", cachedConfig())
		require.NoError(t, err)
		assert.True(t, entry.Report.HierarchyValid)
		assert.Greater(t, entry.Report.ConfidenceScore, 0.0)
	})
}

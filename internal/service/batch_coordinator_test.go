package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscora/internal/cache"
	"fiscora/internal/domain"
	"fiscora/internal/port"
	"fiscora/internal/service"
)

// stubStore serves synthetic documents and can be told to fail specific refs.
type stubStore struct {
	mu      sync.Mutex
	failing map[string]bool
	fetches map[string]int
}

func newStubStore(failing ...string) *stubStore {
	s := &stubStore{failing: make(map[string]bool), fetches: make(map[string]int)}
	for _, ref := range failing {
		s.failing[ref] = true
	}
	return s
}

func (s *stubStore) Fetch(_ context.Context, ref string) (*port.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches[ref]++
	if s.failing[ref] {
		return nil, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, ref)
	}
	return &port.Document{Ref: ref, Bytes: []byte("img"), ContentHash: "hash-" + ref, ContentType: "image/png"}, nil
}

func (s *stubStore) heal(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failing, ref)
}

func (s *stubStore) fetchCount(ref string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[ref]
}

func newCoordinator(store port.DocumentStore, delay time.Duration, workers int) *service.BatchCoordinator {
	eng := &countingEngine{name: "count", delay: delay}
	svc := newService(store, cache.NewMemoryCache(), eng)
	return service.NewBatchCoordinator(svc, nil, workers)
}

func batchConfig() domain.ExtractionConfig {
	cfg := cachedConfig()
	cfg.Cache.UseCache = false
	return cfg
}

func waitTerminal(t *testing.T, c *service.BatchCoordinator, id uuid.UUID) *domain.BatchJob {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-c.Events():
			if got != id {
				continue
			}
			job, err := c.Status(id)
			require.NoError(t, err)
			return job
		case <-deadline:
			t.Fatal("batch did not reach a terminal state in time")
		}
	}
}

func TestBatchCoordinator(t *testing.T) {
	t.Run("empty batch rejected", func(t *testing.T) {
		c := newCoordinator(newStubStore(), 0, 2)
		_, err := c.Create([]string{"", ""}, batchConfig())
		assert.ErrorIs(t, err, domain.ErrEmptyBatch)
	})

	t.Run("unknown batch", func(t *testing.T) {
		c := newCoordinator(newStubStore(), 0, 2)
		_, err := c.Status(uuid.New())
		assert.ErrorIs(t, err, domain.ErrBatchNotFound)
	})

	t.Run("one failing document does not sink the batch", func(t *testing.T) {
		store := newStubStore("doc-3")
		c := newCoordinator(store, 0, 2)

		job, err := c.Create([]string{"doc-1", "doc-2", "doc-3", "doc-4", "doc-5"}, batchConfig())
		require.NoError(t, err)

		final := waitTerminal(t, c, job.ID)
		assert.Equal(t, domain.BatchCompleted, final.Status)

		processed, failed, cancelled := final.Counts()
		assert.Equal(t, 4, processed)
		assert.Equal(t, 1, failed)
		assert.Equal(t, 0, cancelled)

		for _, d := range final.Documents {
			if d.Ref == "doc-3" {
				assert.Equal(t, domain.OutcomeFailed, d.Status)
				require.NotNil(t, d.Error)
				assert.Equal(t, "document_not_found", d.Error.Kind)
			} else {
				assert.Equal(t, domain.OutcomeSuccess, d.Status)
				assert.NotNil(t, d.Result)
				assert.NotNil(t, d.Report)
			}
		}
	})

	t.Run("every document failing still completes the batch", func(t *testing.T) {
		store := newStubStore("doc-1", "doc-2")
		c := newCoordinator(store, 0, 2)

		job, err := c.Create([]string{"doc-1", "doc-2"}, batchConfig())
		require.NoError(t, err)

		final := waitTerminal(t, c, job.ID)
		assert.Equal(t, domain.BatchCompleted, final.Status)

		processed, failed, cancelled := final.Counts()
		assert.Equal(t, 0, processed)
		assert.Equal(t, 2, failed)
		assert.Equal(t, 0, cancelled)
	})

	t.Run("retry re-dispatches only the failures", func(t *testing.T) {
		store := newStubStore("doc-3")
		c := newCoordinator(store, 0, 2)

		job, err := c.Create([]string{"doc-1", "doc-2", "doc-3"}, batchConfig())
		require.NoError(t, err)
		waitTerminal(t, c, job.ID)

		before1 := store.fetchCount("doc-1")
		store.heal("doc-3")

		_, err = c.Retry(job.ID)
		require.NoError(t, err)
		final := waitTerminal(t, c, job.ID)

		assert.Equal(t, domain.BatchCompleted, final.Status)
		assert.Equal(t, before1, store.fetchCount("doc-1"))
		assert.Equal(t, 2, store.fetchCount("doc-3"))

		for _, d := range final.Documents {
			assert.Equal(t, domain.OutcomeSuccess, d.Status)
			if d.Ref == "doc-3" {
				assert.Equal(t, 1, d.Retries)
			} else {
				assert.Equal(t, 0, d.Retries)
			}
		}
	})

	t.Run("retry without failures errors", func(t *testing.T) {
		c := newCoordinator(newStubStore(), 0, 2)
		job, err := c.Create([]string{"doc-1"}, batchConfig())
		require.NoError(t, err)
		waitTerminal(t, c, job.ID)

		_, err = c.Retry(job.ID)
		assert.Error(t, err)
	})

	t.Run("retry on a running batch errors", func(t *testing.T) {
		c := newCoordinator(newStubStore(), 200*time.Millisecond, 1)
		job, err := c.Create([]string{"doc-1", "doc-2"}, batchConfig())
		require.NoError(t, err)

		_, err = c.Retry(job.ID)
		assert.Error(t, err)

		waitTerminal(t, c, job.ID)
	})

	t.Run("cancel marks pending documents cancelled", func(t *testing.T) {
		c := newCoordinator(newStubStore(), 150*time.Millisecond, 1)
		job, err := c.Create([]string{"doc-1", "doc-2", "doc-3", "doc-4", "doc-5"}, batchConfig())
		require.NoError(t, err)

		time.Sleep(30 * time.Millisecond)
		require.NoError(t, c.Cancel(job.ID))

		final := waitTerminal(t, c, job.ID)
		assert.Equal(t, domain.BatchCancelled, final.Status)

		_, _, cancelled := final.Counts()
		assert.Greater(t, cancelled, 0)
	})

	t.Run("cancel never interrupts the in-flight document", func(t *testing.T) {
		c := newCoordinator(newStubStore(), 150*time.Millisecond, 1)
		job, err := c.Create([]string{"doc-1", "doc-2"}, batchConfig())
		require.NoError(t, err)

		time.Sleep(30 * time.Millisecond)
		require.NoError(t, c.Cancel(job.ID))

		final := waitTerminal(t, c, job.ID)
		assert.Equal(t, domain.BatchCancelled, final.Status)
		assert.Equal(t, domain.OutcomeSuccess, final.Documents[0].Status)
		assert.NotNil(t, final.Documents[0].Result)
		assert.Equal(t, domain.OutcomeCancelled, final.Documents[1].Status)
	})

	t.Run("cancel of a terminal batch errors", func(t *testing.T) {
		c := newCoordinator(newStubStore(), 0, 2)
		job, err := c.Create([]string{"doc-1"}, batchConfig())
		require.NoError(t, err)
		waitTerminal(t, c, job.ID)

		assert.ErrorIs(t, c.Cancel(job.ID), domain.ErrBatchTerminal)
	})

	t.Run("delete requires a terminal batch", func(t *testing.T) {
		c := newCoordinator(newStubStore(), 200*time.Millisecond, 1)
		job, err := c.Create([]string{"doc-1"}, batchConfig())
		require.NoError(t, err)

		assert.Error(t, c.Delete(context.Background(), job.ID))

		waitTerminal(t, c, job.ID)
		require.NoError(t, c.Delete(context.Background(), job.ID))
		_, err = c.Status(job.ID)
		assert.ErrorIs(t, err, domain.ErrBatchNotFound)
	})

	t.Run("list returns snapshots", func(t *testing.T) {
		c := newCoordinator(newStubStore(), 0, 2)
		job, err := c.Create([]string{"doc-1"}, batchConfig())
		require.NoError(t, err)
		waitTerminal(t, c, job.ID)

		jobs := c.List()
		require.Len(t, jobs, 1)
		assert.Equal(t, job.ID, jobs[0].ID)
	})

	t.Run("shutdown waits for in-flight work", func(t *testing.T) {
		c := newCoordinator(newStubStore(), 100*time.Millisecond, 1)
		_, err := c.Create([]string{"doc-1"}, batchConfig())
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, c.Shutdown(ctx))
	})
}

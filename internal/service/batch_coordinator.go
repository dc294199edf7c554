package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fiscora/internal/domain"
	"fiscora/internal/port"
)

// BatchCoordinator drives many documents through the pipeline concurrently.
// It owns all batch state: workers report outcomes back and never touch a
// job directly. Cancellation is cooperative, in-flight documents finish and
// pending ones are marked cancelled.
type BatchCoordinator struct {
	extraction *ExtractionService
	repo       port.BatchRepository
	workers    int

	mu      sync.Mutex
	jobs    map[uuid.UUID]*domain.BatchJob
	cancels map[uuid.UUID]context.CancelFunc

	events chan uuid.UUID
	wg     sync.WaitGroup
}

// NewBatchCoordinator builds a coordinator running at most workers documents
// at a time. repo may be nil; snapshots are then kept in memory only.
func NewBatchCoordinator(extraction *ExtractionService, repo port.BatchRepository, workers int) *BatchCoordinator {
	if workers < 1 {
		workers = 1
	}
	return &BatchCoordinator{
		extraction: extraction,
		repo:       repo,
		workers:    workers,
		jobs:       make(map[uuid.UUID]*domain.BatchJob),
		cancels:    make(map[uuid.UUID]context.CancelFunc),
		events:     make(chan uuid.UUID, 64),
	}
}

// Events emits the ID of every batch that reaches a terminal state. The send
// is non-blocking; a slow consumer loses notifications, never progress.
func (c *BatchCoordinator) Events() <-chan uuid.UUID {
	return c.events
}

// Create registers a new batch over the given document references and starts
// processing it immediately.
func (c *BatchCoordinator) Create(refs []string, cfg domain.ExtractionConfig) (*domain.BatchJob, error) {
	var docs []domain.DocumentOutcome
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		docs = append(docs, domain.DocumentOutcome{Ref: ref, Status: domain.OutcomePending})
	}
	if len(docs) == 0 {
		return nil, domain.ErrEmptyBatch
	}

	job := &domain.BatchJob{
		ID:        uuid.New(),
		Status:    domain.BatchPending,
		Documents: docs,
		Config:    cfg,
		CreatedAt: time.Now().UTC(),
	}

	c.mu.Lock()
	c.jobs[job.ID] = job
	c.mu.Unlock()
	c.persist(job)

	indexes := make([]int, len(docs))
	for i := range indexes {
		indexes[i] = i
	}
	c.dispatch(job.ID, indexes)

	return c.Status(job.ID)
}

// Status returns a snapshot of the batch.
func (c *BatchCoordinator) Status(id uuid.UUID) (*domain.BatchJob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[id]
	if !ok {
		return nil, domain.ErrBatchNotFound
	}
	return snapshot(job), nil
}

// List returns snapshots of all known batches, newest first.
func (c *BatchCoordinator) List() []domain.BatchJob {
	c.mu.Lock()
	out := make([]domain.BatchJob, 0, len(c.jobs))
	for _, job := range c.jobs {
		out = append(out, *snapshot(job))
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Cancel requests cooperative cancellation of a running or pending batch.
func (c *BatchCoordinator) Cancel(id uuid.UUID) error {
	c.mu.Lock()
	job, ok := c.jobs[id]
	if !ok {
		c.mu.Unlock()
		return domain.ErrBatchNotFound
	}
	if job.Status.Terminal() {
		c.mu.Unlock()
		return domain.ErrBatchTerminal
	}
	cancel := c.cancels[id]
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Retry re-dispatches only the failed documents of a terminal batch. The
// successful outcomes are kept untouched.
func (c *BatchCoordinator) Retry(id uuid.UUID) (*domain.BatchJob, error) {
	c.mu.Lock()
	job, ok := c.jobs[id]
	if !ok {
		c.mu.Unlock()
		return nil, domain.ErrBatchNotFound
	}
	if !job.Status.Terminal() {
		c.mu.Unlock()
		return nil, fmt.Errorf("batch %s is still %s", id, job.Status)
	}

	var indexes []int
	for i := range job.Documents {
		if job.Documents[i].Status == domain.OutcomeFailed {
			job.Documents[i].Status = domain.OutcomePending
			job.Documents[i].Error = nil
			job.Documents[i].Retries++
			indexes = append(indexes, i)
		}
	}
	if len(indexes) == 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("batch %s has no failed documents to retry", id)
	}
	job.Status = domain.BatchPending
	job.CompletedAt = nil
	c.mu.Unlock()

	c.dispatch(id, indexes)
	return c.Status(id)
}

// Delete removes a terminal batch from the coordinator and the repository.
func (c *BatchCoordinator) Delete(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	job, ok := c.jobs[id]
	if !ok {
		c.mu.Unlock()
		return domain.ErrBatchNotFound
	}
	if !job.Status.Terminal() {
		c.mu.Unlock()
		return fmt.Errorf("batch %s is still %s", id, job.Status)
	}
	delete(c.jobs, id)
	delete(c.cancels, id)
	c.mu.Unlock()

	if c.repo != nil {
		if err := c.repo.Delete(ctx, id); err != nil {
			log.Printf("service.BatchCoordinator: deleting batch %s snapshot: %v", id, err)
		}
	}
	return nil
}

// Shutdown cancels every running batch and waits for in-flight documents.
func (c *BatchCoordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	for _, cancel := range c.cancels {
		cancel()
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatch starts the processing goroutine for the given document indexes.
func (c *BatchCoordinator) dispatch(id uuid.UUID, indexes []int) {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancels[id] = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.run(ctx, id, indexes)
	}()
}

func (c *BatchCoordinator) run(ctx context.Context, id uuid.UUID, indexes []int) {
	c.mu.Lock()
	job, ok := c.jobs[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	job.Status = domain.BatchRunning
	now := time.Now().UTC()
	job.StartedAt = &now
	cfg := job.Config
	refs := make([]string, len(indexes))
	for i, idx := range indexes {
		refs[i] = job.Documents[idx].Ref
	}
	c.mu.Unlock()

	sem := make(chan struct{}, c.workers)
	var wg sync.WaitGroup
	cancelled := false
dispatch:
	for i, idx := range indexes {
		select {
		case <-ctx.Done():
			cancelled = true
			c.markCancelled(id, indexes[i:])
			break dispatch
		case sem <- struct{}{}:
		}
		// A cancel may have landed while waiting for the worker slot.
		if ctx.Err() != nil {
			<-sem
			cancelled = true
			c.markCancelled(id, indexes[i:])
			break
		}
		wg.Add(1)
		c.setOutcome(id, idx, func(d *domain.DocumentOutcome) { d.Status = domain.OutcomeRunning })
		go func(idx int, ref string) {
			defer wg.Done()
			defer func() { <-sem }()
			// The batch context gates dispatch only. The extraction runs
			// under its own per-call context: once a document is in flight
			// it completes normally, cancel or not.
			callCtx, stop := callContext(cfg)
			defer stop()
			entry, err := c.extraction.Extract(callCtx, ref, cfg)
			c.setOutcome(id, idx, func(d *domain.DocumentOutcome) {
				if err != nil {
					d.Status = domain.OutcomeFailed
					d.Error = domain.Describe(err)
					return
				}
				d.Status = domain.OutcomeSuccess
				d.Result = &entry.Result
				d.Report = &entry.Report
			})
		}(idx, refs[i])
	}
	wg.Wait()

	c.finish(id, cancelled || ctx.Err() != nil)
}

// finish derives the terminal status from the document outcomes and emits
// the completion event. Per-document failures never fail the batch: once
// every document has an outcome the batch is completed, however many of
// those outcomes are failures. BatchFailed is reserved for a job that could
// not be dispatched at all.
func (c *BatchCoordinator) finish(id uuid.UUID, cancelled bool) {
	c.mu.Lock()
	job, ok := c.jobs[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	_, _, cancelledDocs := job.Counts()
	if cancelled || cancelledDocs > 0 {
		job.Status = domain.BatchCancelled
	} else {
		job.Status = domain.BatchCompleted
	}
	now := time.Now().UTC()
	job.CompletedAt = &now
	snap := snapshot(job)
	c.mu.Unlock()

	c.persist(snap)
	select {
	case c.events <- id:
	default:
	}
}

// callContext builds the context for one document's extraction, carrying
// only the per-call OCR timeout. It deliberately does not descend from the
// batch context.
func callContext(cfg domain.ExtractionConfig) (context.Context, context.CancelFunc) {
	if cfg.OCR.TimeoutSecs > 0 {
		return context.WithTimeout(context.Background(), time.Duration(cfg.OCR.TimeoutSecs)*time.Second)
	}
	return context.WithCancel(context.Background())
}

func (c *BatchCoordinator) markCancelled(id uuid.UUID, indexes []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[id]
	if !ok {
		return
	}
	for _, idx := range indexes {
		if !job.Documents[idx].Status.Final() {
			job.Documents[idx].Status = domain.OutcomeCancelled
		}
	}
}

func (c *BatchCoordinator) setOutcome(id uuid.UUID, idx int, apply func(*domain.DocumentOutcome)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[id]
	if !ok || idx < 0 || idx >= len(job.Documents) {
		return
	}
	apply(&job.Documents[idx])
}

func (c *BatchCoordinator) persist(job *domain.BatchJob) {
	if c.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.repo.Save(ctx, job); err != nil {
		log.Printf("service.BatchCoordinator: persisting batch %s: %v", job.ID, err)
	}
}

// snapshot copies a job so callers never observe concurrent mutation.
func snapshot(job *domain.BatchJob) *domain.BatchJob {
	out := *job
	out.Documents = append([]domain.DocumentOutcome(nil), job.Documents...)
	return &out
}

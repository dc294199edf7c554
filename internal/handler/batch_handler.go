package handler

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fiscora/internal/config"
	"fiscora/internal/domain"
	"fiscora/internal/service"
)

// BatchHandler handles batch job endpoints.
type BatchHandler struct {
	batches *service.BatchCoordinator
	cfg     *config.Config
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(batches *service.BatchCoordinator, cfg *config.Config) *BatchHandler {
	return &BatchHandler{batches: batches, cfg: cfg}
}

type batchRequest struct {
	DocumentRefs []string                 `json:"document_refs" binding:"required"`
	Config       *domain.ExtractionConfig `json:"config"`
}

type batchSummary struct {
	ID        uuid.UUID          `json:"id"`
	Status    domain.BatchStatus `json:"status"`
	Total     int                `json:"total"`
	Processed int                `json:"processed"`
	Failed    int                `json:"failed"`
	Cancelled int                `json:"cancelled"`
	Progress  float64            `json:"progress"`
}

func summarize(job *domain.BatchJob) batchSummary {
	processed, failed, cancelled := job.Counts()
	return batchSummary{
		ID:        job.ID,
		Status:    job.Status,
		Total:     len(job.Documents),
		Processed: processed,
		Failed:    failed,
		Cancelled: cancelled,
		Progress:  job.Progress(),
	}
}

// Create handles POST /api/v1/batches
func (h *BatchHandler) Create(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, "INVALID_REQUEST", err.Error())
		return
	}

	cfg := MergeConfig(req.Config, h.cfg.DefaultExtraction())
	job, err := h.batches.Create(req.DocumentRefs, cfg)
	if err != nil {
		status, code, msg := MapDomainError(err)
		RespondError(c, status, code, msg)
		return
	}

	RespondAccepted(c, summarize(job))
}

// List handles GET /api/v1/batches
func (h *BatchHandler) List(c *gin.Context) {
	jobs := h.batches.List()
	out := make([]batchSummary, 0, len(jobs))
	for i := range jobs {
		out = append(out, summarize(&jobs[i]))
	}
	RespondOK(c, out)
}

// Get handles GET /api/v1/batches/:id
func (h *BatchHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, 400, "INVALID_ID", "batch id must be a UUID")
		return
	}

	job, err := h.batches.Status(id)
	if err != nil {
		status, code, msg := MapDomainError(err)
		RespondError(c, status, code, msg)
		return
	}
	RespondOK(c, job)
}

// Cancel handles POST /api/v1/batches/:id/cancel
func (h *BatchHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, 400, "INVALID_ID", "batch id must be a UUID")
		return
	}

	if err := h.batches.Cancel(id); err != nil {
		status, code, msg := MapDomainError(err)
		RespondError(c, status, code, msg)
		return
	}
	RespondAccepted(c, gin.H{"id": id, "status": "cancelling"})
}

// Retry handles POST /api/v1/batches/:id/retry
func (h *BatchHandler) Retry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, 400, "INVALID_ID", "batch id must be a UUID")
		return
	}

	job, err := h.batches.Retry(id)
	if err != nil {
		log.Printf("handler.BatchHandler.Retry: %s: %v", id, err)
		status, code, msg := MapDomainError(err)
		RespondError(c, status, code, msg)
		return
	}
	RespondAccepted(c, summarize(job))
}

// Delete handles DELETE /api/v1/batches/:id
func (h *BatchHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, 400, "INVALID_ID", "batch id must be a UUID")
		return
	}

	if err := h.batches.Delete(c.Request.Context(), id); err != nil {
		status, code, msg := MapDomainError(err)
		RespondError(c, status, code, msg)
		return
	}
	RespondOK(c, gin.H{"id": id, "deleted": true})
}

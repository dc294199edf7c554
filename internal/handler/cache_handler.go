package handler

import (
	"github.com/gin-gonic/gin"

	"fiscora/internal/config"
	"fiscora/internal/domain"
	"fiscora/internal/service"
)

// CacheHandler handles result cache inspection and invalidation endpoints.
type CacheHandler struct {
	extraction *service.ExtractionService
	cfg        *config.Config
}

// NewCacheHandler creates a new CacheHandler.
func NewCacheHandler(extraction *service.ExtractionService, cfg *config.Config) *CacheHandler {
	return &CacheHandler{extraction: extraction, cfg: cfg}
}

// Stats handles GET /api/v1/cache/stats
func (h *CacheHandler) Stats(c *gin.Context) {
	stats, err := h.extraction.CacheStats(c.Request.Context())
	if err != nil {
		status, code, msg := MapDomainError(err)
		RespondError(c, status, code, msg)
		return
	}
	RespondOK(c, stats)
}

type invalidateRequest struct {
	DocumentRef string                   `json:"document_ref" binding:"required"`
	Config      *domain.ExtractionConfig `json:"config"`
}

// Invalidate handles POST /api/v1/cache/invalidate
func (h *CacheHandler) Invalidate(c *gin.Context) {
	var req invalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, "INVALID_REQUEST", err.Error())
		return
	}

	cfg := MergeConfig(req.Config, h.cfg.DefaultExtraction())
	if err := h.extraction.Invalidate(c.Request.Context(), req.DocumentRef, cfg); err != nil {
		status, code, msg := MapDomainError(err)
		RespondError(c, status, code, msg)
		return
	}
	RespondOK(c, gin.H{"document_ref": req.DocumentRef, "invalidated": true})
}

// Clear handles DELETE /api/v1/cache
func (h *CacheHandler) Clear(c *gin.Context) {
	if err := h.extraction.ClearCache(c.Request.Context()); err != nil {
		status, code, msg := MapDomainError(err)
		RespondError(c, status, code, msg)
		return
	}
	RespondOK(c, gin.H{"cleared": true})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"fiscora/internal/engine"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db       *sqlx.DB // nil when the database is disabled
	registry *engine.Registry
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *sqlx.DB, registry *engine.Registry) *HealthHandler {
	return &HealthHandler{db: db, registry: registry}
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz
func (h *HealthHandler) Readiness(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database not reachable"})
			return
		}
	}
	if len(h.registry.Available()) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "no OCR engine available"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

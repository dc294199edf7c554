package handler

import (
	"github.com/gin-gonic/gin"

	"fiscora/internal/engine"
)

// EngineHandler exposes the registered OCR engines.
type EngineHandler struct {
	registry *engine.Registry
}

// NewEngineHandler creates a new EngineHandler.
func NewEngineHandler(registry *engine.Registry) *EngineHandler {
	return &EngineHandler{registry: registry}
}

type engineInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Available bool   `json:"available"`
}

// List handles GET /api/v1/engines
func (h *EngineHandler) List(c *gin.Context) {
	var out []engineInfo
	for _, name := range h.registry.Names() {
		eng, ok := h.registry.Get(name)
		if !ok {
			continue
		}
		out = append(out, engineInfo{
			Name:      eng.Name(),
			Version:   eng.Version(),
			Available: eng.IsAvailable(),
		})
	}
	RespondOK(c, out)
}

package handler

import (
	"encoding/json"
	"io"
	"log"

	"github.com/gin-gonic/gin"

	"fiscora/internal/config"
	"fiscora/internal/domain"
	"fiscora/internal/service"
)

// ExtractHandler handles single-document extraction endpoints.
type ExtractHandler struct {
	extraction *service.ExtractionService
	cfg        *config.Config
}

// NewExtractHandler creates a new ExtractHandler.
func NewExtractHandler(extraction *service.ExtractionService, cfg *config.Config) *ExtractHandler {
	return &ExtractHandler{extraction: extraction, cfg: cfg}
}

type extractRequest struct {
	DocumentRef string                   `json:"document_ref" binding:"required"`
	Config      *domain.ExtractionConfig `json:"config"`
}

type extractResponse struct {
	Result     domain.ExtractionResult `json:"result"`
	Validation domain.ValidationReport `json:"validation"`
}

// Extract handles POST /api/v1/extract
func (h *ExtractHandler) Extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, 400, "INVALID_REQUEST", err.Error())
		return
	}

	cfg := MergeConfig(req.Config, h.cfg.DefaultExtraction())
	entry, err := h.extraction.Extract(c.Request.Context(), req.DocumentRef, cfg)
	if err != nil {
		log.Printf("handler.Extract: %s: %v", req.DocumentRef, err)
		status, code, msg := MapDomainError(err)
		RespondError(c, status, code, msg)
		return
	}

	RespondOK(c, extractResponse{Result: entry.Result, Validation: entry.Report})
}

// ExtractUpload handles POST /api/v1/extract/upload. The document arrives as
// a multipart "file" part; an optional "config" part carries the extraction
// config as JSON.
func (h *ExtractHandler) ExtractUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, 400, "INVALID_REQUEST", "missing multipart file field")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		RespondError(c, 400, "INVALID_REQUEST", "unreadable upload")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		RespondError(c, 400, "INVALID_REQUEST", "unreadable upload")
		return
	}

	var reqCfg *domain.ExtractionConfig
	if raw := c.PostForm("config"); raw != "" {
		reqCfg = &domain.ExtractionConfig{}
		if err := json.Unmarshal([]byte(raw), reqCfg); err != nil {
			RespondError(c, 400, "INVALID_REQUEST", "malformed config field")
			return
		}
	}

	cfg := MergeConfig(reqCfg, h.cfg.DefaultExtraction())
	contentType := fileHeader.Header.Get("Content-Type")
	entry, err := h.extraction.ExtractBytes(c.Request.Context(), fileHeader.Filename, data, contentType, cfg)
	if err != nil {
		log.Printf("handler.ExtractUpload: %s: %v", fileHeader.Filename, err)
		status, code, msg := MapDomainError(err)
		RespondError(c, status, code, msg)
		return
	}

	RespondOK(c, extractResponse{Result: entry.Result, Validation: entry.Report})
}

// MergeConfig fills the unset parts of a request config from the server
// defaults. A nil request config means "all defaults".
func MergeConfig(req *domain.ExtractionConfig, defaults domain.ExtractionConfig) domain.ExtractionConfig {
	if req == nil {
		return defaults
	}
	cfg := *req
	if cfg.Engine == "" {
		cfg.Engine = defaults.Engine
		if len(cfg.EnginesFallback) == 0 {
			cfg.EnginesFallback = defaults.EnginesFallback
		}
	}
	if cfg.Extract == (domain.ExtractToggles{}) {
		cfg.Extract = defaults.Extract
	}
	if len(cfg.OCR.Languages) == 0 {
		cfg.OCR.Languages = defaults.OCR.Languages
	}
	if cfg.OCR.ConfidenceThreshold == 0 {
		cfg.OCR.ConfidenceThreshold = defaults.OCR.ConfidenceThreshold
	}
	if cfg.OCR.TimeoutSecs == 0 {
		cfg.OCR.TimeoutSecs = defaults.OCR.TimeoutSecs
	}
	if cfg.Preprocess == (domain.PreprocessOptions{}) {
		cfg.Preprocess = defaults.Preprocess
	}
	if cfg.Preprocess.Upscale && cfg.Preprocess.UpscaleFactor == 0 {
		cfg.Preprocess.UpscaleFactor = defaults.Preprocess.UpscaleFactor
	}
	if cfg.Validation == (domain.ValidationOptions{}) {
		cfg.Validation = defaults.Validation
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = defaults.Cache.TTLSeconds
	}
	return cfg
}

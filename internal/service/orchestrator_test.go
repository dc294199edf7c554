package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fiscora/internal/domain"
	"fiscora/internal/engine"
	"fiscora/internal/port"
	"fiscora/internal/preprocess"
	"fiscora/internal/service"
	"fiscora/mocks"
)

func tokenStream(text string, conf float64) *domain.TokenStream {
	words := strings.Fields(text)
	tokens := make([]domain.Token, 0, len(words))
	x := 10
	for _, w := range words {
		tokens = append(tokens, domain.Token{
			Text:       w,
			Confidence: conf,
			BBox:       domain.BoundingBox{X: x, Y: 100, Width: len(w) * 12, Height: 20},
		})
		x += len(w)*12 + 8
	}
	return &domain.TokenStream{Tokens: tokens, PageWidth: 2000, PageHeight: 1000, Language: "fra"}
}

func goodStream() *domain.TokenStream {
	return tokenStream("MD/2412034 BOR/2402756 Exercice: 2024", 0.9)
}

func newMockEngine(name string, available bool) *mocks.MockEngine {
	e := new(mocks.MockEngine)
	e.On("Name").Return(name)
	e.On("Version").Return("1.0").Maybe()
	e.On("IsAvailable").Return(available).Maybe()
	return e
}

func testDoc() port.Document {
	return port.Document{Ref: "scans/doc-1.png", Bytes: []byte("img"), ContentHash: "h1", ContentType: "image/png"}
}

func orchestratorConfig() domain.ExtractionConfig {
	return domain.ExtractionConfig{
		Engine:          "tess",
		EnginesFallback: []string{"vision"},
		Extract:         domain.ExtractToggles{Mandat: true, Bordereau: true, Exercice: true},
		OCR:             domain.OCROptions{ConfidenceThreshold: 0.6},
	}
}

func newOrchestrator(engines ...port.Engine) *service.Orchestrator {
	registry := engine.NewRegistry()
	for _, e := range engines {
		registry.Register(e)
	}
	selector := engine.ConfigOrderSelector{Order: registry.Names()}
	pipeline := preprocess.NewPipeline(new(mocks.MockPreprocessor))
	return service.NewOrchestrator(registry, selector, pipeline)
}

func TestOrchestratorExtract(t *testing.T) {
	ctx := context.Background()

	t.Run("primary engine suffices", func(t *testing.T) {
		tess := newMockEngine("tess", true)
		tess.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(goodStream(), nil)
		vision := newMockEngine("vision", true)

		result, err := newOrchestrator(tess, vision).Extract(ctx, testDoc(), orchestratorConfig())
		require.NoError(t, err)

		assert.Equal(t, "tess", result.Engine.Primary)
		assert.Equal(t, []string{"tess"}, result.Engine.FallbacksUsed)
		require.NotNil(t, result.ExtractedData.Mandat)
		assert.Equal(t, "MD/2412034", result.ExtractedData.Mandat.Value)
		assert.Equal(t, "tess", result.ExtractedData.Mandat.Engine)
		vision.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("engine failure falls back", func(t *testing.T) {
		tess := newMockEngine("tess", true)
		tess.On("Run", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, domain.NewEngineFailure("tess", "binary crashed", nil))
		vision := newMockEngine("vision", true)
		vision.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(goodStream(), nil)

		result, err := newOrchestrator(tess, vision).Extract(ctx, testDoc(), orchestratorConfig())
		require.NoError(t, err)

		assert.Equal(t, "vision", result.Engine.Primary)
		assert.Equal(t, []string{"tess", "vision"}, result.Engine.FallbacksUsed)
	})

	t.Run("low confidence falls back", func(t *testing.T) {
		tess := newMockEngine("tess", true)
		tess.On("Run", mock.Anything, mock.Anything, mock.Anything).
			Return(tokenStream("MD/2412034 BOR/2402756 Exercice: 2024", 0.3), nil)
		vision := newMockEngine("vision", true)
		vision.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(goodStream(), nil)

		result, err := newOrchestrator(tess, vision).Extract(ctx, testDoc(), orchestratorConfig())
		require.NoError(t, err)

		assert.Equal(t, "vision", result.Engine.Primary)
		assert.Equal(t, []string{"tess", "vision"}, result.Engine.FallbacksUsed)
	})

	t.Run("all below threshold keeps the best attempt", func(t *testing.T) {
		tess := newMockEngine("tess", true)
		tess.On("Run", mock.Anything, mock.Anything, mock.Anything).
			Return(tokenStream("MD/2412034 BOR/2402756 Exercice: 2024", 0.2), nil)
		vision := newMockEngine("vision", true)
		vision.On("Run", mock.Anything, mock.Anything, mock.Anything).
			Return(tokenStream("MD/2412034 BOR/2402756 Exercice: 2024", 0.4), nil)

		result, err := newOrchestrator(tess, vision).Extract(ctx, testDoc(), orchestratorConfig())
		require.NoError(t, err)

		assert.Equal(t, "vision", result.Engine.Primary)
		require.NotNil(t, result.ExtractedData.Mandat)
		assert.InDelta(t, 0.4, result.ExtractedData.Mandat.Confidence, 1e-9)
	})

	t.Run("unavailable engine is never invoked", func(t *testing.T) {
		tess := newMockEngine("tess", false)
		vision := newMockEngine("vision", true)
		vision.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(goodStream(), nil)

		result, err := newOrchestrator(tess, vision).Extract(ctx, testDoc(), orchestratorConfig())
		require.NoError(t, err)

		assert.Equal(t, []string{"vision"}, result.Engine.FallbacksUsed)
		tess.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no engine available", func(t *testing.T) {
		tess := newMockEngine("tess", false)
		vision := newMockEngine("vision", false)

		_, err := newOrchestrator(tess, vision).Extract(ctx, testDoc(), orchestratorConfig())
		assert.ErrorIs(t, err, domain.ErrNoEngineAvailable)
	})

	t.Run("all engines fail", func(t *testing.T) {
		tess := newMockEngine("tess", true)
		tess.On("Run", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, domain.NewEngineFailure("tess", "crash", nil))
		vision := newMockEngine("vision", true)
		vision.On("Run", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, domain.NewEngineFailure("vision", "crash", nil))

		_, err := newOrchestrator(tess, vision).Extract(ctx, testDoc(), orchestratorConfig())
		assert.ErrorIs(t, err, domain.ErrExtractionFailed)
	})

	t.Run("auto resolves through the selector", func(t *testing.T) {
		tess := newMockEngine("tess", true)
		tess.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(goodStream(), nil)

		cfg := orchestratorConfig()
		cfg.Engine = domain.EngineAuto
		cfg.EnginesFallback = nil

		result, err := newOrchestrator(tess).Extract(ctx, testDoc(), cfg)
		require.NoError(t, err)
		assert.Equal(t, "tess", result.Engine.Primary)
	})

	t.Run("raw text only when requested", func(t *testing.T) {
		tess := newMockEngine("tess", true)
		tess.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(goodStream(), nil)

		cfg := orchestratorConfig()
		cfg.Output.IncludeRawText = true
		result, err := newOrchestrator(tess).Extract(ctx, testDoc(), cfg)
		require.NoError(t, err)
		assert.Contains(t, result.RawText, "MD/2412034")

		cfg.Output.IncludeRawText = false
		result, err = newOrchestrator(tess).Extract(ctx, testDoc(), cfg)
		require.NoError(t, err)
		assert.Empty(t, result.RawText)
	})
}

package port

import (
	"context"

	"fiscora/internal/domain"
)

// Engine abstracts one OCR engine. Implementations must be stateless across
// calls: every Run is independent so batches can fan out safely.
type Engine interface {
	// Run recognizes text in the image and returns the ordered token stream.
	// Failures are reported as *domain.EngineFailureError; a low-confidence
	// result is a normal return, never an error.
	Run(ctx context.Context, image []byte, opts domain.OCROptions) (*domain.TokenStream, error)

	// IsAvailable reports whether the engine can currently serve requests.
	IsAvailable() bool

	Name() string
	Version() string
}

// DocumentFeatures carries the observable properties the engine selector may
// use to order engines for an "auto" request.
type DocumentFeatures struct {
	SizeBytes   int
	ContentType string
}

// EngineSelector decides the engine attempt order for "auto" mode. The exact
// policy is configuration, not core logic.
type EngineSelector interface {
	Choose(features DocumentFeatures) []string
}

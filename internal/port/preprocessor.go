package port

import (
	"context"

	"fiscora/internal/domain"
)

// Preprocessor applies a single image transform. Implementations share no
// state; returning domain.ErrStepNotSupported lets the pipeline skip a step
// it cannot serve.
type Preprocessor interface {
	Apply(ctx context.Context, image []byte, step domain.PreprocessStep, opts domain.PreprocessOptions) ([]byte, error)
}

// Package preprocess runs the image-cleanup steps ahead of OCR.
package preprocess

import (
	"context"
	"errors"
	"log"

	"fiscora/internal/domain"
	"fiscora/internal/port"
)

// Pipeline applies the enabled preprocessing steps in the fixed canonical
// order: deskew, denoise, contrast, binarize, border removal, upscale.
// Every step is delegated to the injected Preprocessor; skipping a step is
// always safe.
type Pipeline struct {
	pre port.Preprocessor
}

// NewPipeline creates a Pipeline around the given transform collaborator.
func NewPipeline(pre port.Preprocessor) *Pipeline {
	return &Pipeline{pre: pre}
}

// Run returns the transformed image and the names of the steps that actually
// ran. A step the collaborator does not support is skipped; a step that
// errors is skipped too, because a raw scan still OCRs.
func (p *Pipeline) Run(ctx context.Context, image []byte, opts domain.PreprocessOptions) ([]byte, []string) {
	applied := make([]string, 0, len(domain.CanonicalPreprocessOrder))
	current := image
	for _, step := range domain.CanonicalPreprocessOrder {
		if !opts.Enabled(step) {
			continue
		}
		out, err := p.pre.Apply(ctx, current, step, opts)
		if err != nil {
			if !errors.Is(err, domain.ErrStepNotSupported) {
				log.Printf("preprocess.Pipeline: step %s failed, skipping: %v", step, err)
			}
			continue
		}
		current = out
		applied = append(applied, string(step))
	}
	return current, applied
}

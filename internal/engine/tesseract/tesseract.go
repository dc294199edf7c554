// Package tesseract adapts the Tesseract OCR engine (via gosseract) to the
// port.Engine contract.
package tesseract

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/otiai10/gosseract/v2"

	"fiscora/internal/domain"
	"fiscora/internal/port"
)

const engineName = "tesseract"

// Verify interface compliance
var _ port.Engine = (*Engine)(nil)

// Engine runs Tesseract word-level recognition. A fresh gosseract client is
// created per Run so invocations never share state.
type Engine struct {
	defaultLangs []string
}

// New creates a Tesseract engine adapter. defaultLangs is used when the
// request carries no language list.
func New(defaultLangs ...string) *Engine {
	if len(defaultLangs) == 0 {
		defaultLangs = []string{"fra", "eng"}
	}
	return &Engine{defaultLangs: defaultLangs}
}

func (e *Engine) Name() string    { return engineName }
func (e *Engine) Version() string { return gosseract.Version() }

// IsAvailable reports whether the local Tesseract installation has any
// trained language data.
func (e *Engine) IsAvailable() bool {
	langs, err := gosseract.GetAvailableLanguages()
	return err == nil && len(langs) > 0
}

type runResult struct {
	stream *domain.TokenStream
	err    error
}

// Run recognizes img and returns word tokens with confidences in [0,1].
// The recognition call cannot be interrupted, so context expiry is mapped to
// an EngineFailure once the deadline passes.
func (e *Engine) Run(ctx context.Context, img []byte, opts domain.OCROptions) (*domain.TokenStream, error) {
	done := make(chan runResult, 1)
	go func() {
		done <- e.recognize(img, opts)
	}()

	select {
	case <-ctx.Done():
		return nil, domain.NewEngineFailure(engineName, "timeout", ctx.Err())
	case res := <-done:
		return res.stream, res.err
	}
}

func (e *Engine) recognize(img []byte, opts domain.OCROptions) runResult {
	client := gosseract.NewClient()
	defer client.Close()

	langs := opts.Languages
	if len(langs) == 0 {
		langs = e.defaultLangs
	}
	if err := client.SetLanguage(langs...); err != nil {
		return runResult{err: domain.NewEngineFailure(engineName, "set language", err)}
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return runResult{err: domain.NewEngineFailure(engineName, "set image", err)}
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return runResult{err: domain.NewEngineFailure(engineName, "recognition", err)}
	}

	stream := &domain.TokenStream{Tokens: make([]domain.Token, 0, len(boxes))}
	if cfg, _, derr := image.DecodeConfig(bytes.NewReader(img)); derr == nil {
		stream.PageWidth = cfg.Width
		stream.PageHeight = cfg.Height
	}
	if len(langs) > 0 {
		stream.Language = langs[0]
	}

	for _, b := range boxes {
		if b.Word == "" {
			continue
		}
		stream.Tokens = append(stream.Tokens, domain.Token{
			Text:       b.Word,
			Confidence: b.Confidence / 100.0,
			BBox: domain.BoundingBox{
				X:      b.Box.Min.X,
				Y:      b.Box.Min.Y,
				Width:  b.Box.Dx(),
				Height: b.Box.Dy(),
			},
		})
	}
	return runResult{stream: stream}
}

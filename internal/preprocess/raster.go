package preprocess

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	"fiscora/internal/domain"
	"fiscora/internal/port"
)

// Verify interface compliance
var _ port.Preprocessor = (*Raster)(nil)

// Raster implements the contrast, binarize and upscale transforms on decoded
// raster images. Deskew, denoise and border removal belong to a dedicated
// imaging service and report ErrStepNotSupported here.
type Raster struct{}

// NewRaster creates the built-in raster preprocessor.
func NewRaster() *Raster {
	return &Raster{}
}

func (r *Raster) Apply(ctx context.Context, img []byte, step domain.PreprocessStep, opts domain.PreprocessOptions) ([]byte, error) {
	switch step {
	case domain.StepContrast, domain.StepBinarize, domain.StepUpscale:
	default:
		return nil, domain.ErrStepNotSupported
	}

	decoded, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("decoding image for %s: %w", step, err)
	}

	var out image.Image
	switch step {
	case domain.StepContrast:
		out = stretchContrast(decoded)
	case domain.StepBinarize:
		out = binarize(decoded)
	case domain.StepUpscale:
		factor := opts.UpscaleFactor
		if factor <= 1 {
			factor = 2
		}
		out = upscale(decoded, factor)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encoding %s output: %w", step, err)
	}
	return buf.Bytes(), nil
}

func toGray(src image.Image) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

// stretchContrast linearly maps the observed luminance range onto [0,255].
func stretchContrast(src image.Image) image.Image {
	gray := toGray(src)
	lo, hi := uint8(255), uint8(0)
	for _, px := range gray.Pix {
		if px < lo {
			lo = px
		}
		if px > hi {
			hi = px
		}
	}
	if hi <= lo {
		return gray
	}
	span := float64(hi - lo)
	for i, px := range gray.Pix {
		gray.Pix[i] = uint8(float64(px-lo) / span * 255)
	}
	return gray
}

// binarize thresholds at the mean luminance.
func binarize(src image.Image) image.Image {
	gray := toGray(src)
	var sum uint64
	for _, px := range gray.Pix {
		sum += uint64(px)
	}
	if len(gray.Pix) == 0 {
		return gray
	}
	threshold := uint8(sum / uint64(len(gray.Pix)))
	for i, px := range gray.Pix {
		if px > threshold {
			gray.Pix[i] = 255
		} else {
			gray.Pix[i] = 0
		}
	}
	return gray
}

func upscale(src image.Image, factor float64) image.Image {
	b := src.Bounds()
	w := int(float64(b.Dx()) * factor)
	h := int(float64(b.Dy()) * factor)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

package preprocess_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscora/internal/domain"
	"fiscora/internal/preprocess"
)

// testPNG renders a small gradient so contrast and binarize have work to do.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(60 + (x*4)%120)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestRasterApply(t *testing.T) {
	ctx := context.Background()
	r := preprocess.NewRaster()
	src := testPNG(t, 40, 20)

	t.Run("unsupported steps are reported as such", func(t *testing.T) {
		for _, step := range []domain.PreprocessStep{domain.StepDeskew, domain.StepDenoise, domain.StepBorderRemoval} {
			_, err := r.Apply(ctx, src, step, domain.PreprocessOptions{})
			assert.ErrorIs(t, err, domain.ErrStepNotSupported)
		}
	})

	t.Run("garbage input fails to decode", func(t *testing.T) {
		_, err := r.Apply(ctx, []byte("not an image"), domain.StepBinarize, domain.PreprocessOptions{})
		assert.Error(t, err)
	})

	t.Run("binarize leaves only black and white", func(t *testing.T) {
		out, err := r.Apply(ctx, src, domain.StepBinarize, domain.PreprocessOptions{})
		require.NoError(t, err)

		img := decodePNG(t, out)
		b := img.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
				assert.Contains(t, []uint8{0, 255}, g.Y)
			}
		}
	})

	t.Run("contrast stretches to the full range", func(t *testing.T) {
		out, err := r.Apply(ctx, src, domain.StepContrast, domain.PreprocessOptions{})
		require.NoError(t, err)

		img := decodePNG(t, out)
		b := img.Bounds()
		lo, hi := uint8(255), uint8(0)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
				if g.Y < lo {
					lo = g.Y
				}
				if g.Y > hi {
					hi = g.Y
				}
			}
		}
		assert.Equal(t, uint8(0), lo)
		assert.Equal(t, uint8(255), hi)
	})

	t.Run("upscale honors the factor", func(t *testing.T) {
		out, err := r.Apply(ctx, src, domain.StepUpscale, domain.PreprocessOptions{UpscaleFactor: 2})
		require.NoError(t, err)

		img := decodePNG(t, out)
		assert.Equal(t, 80, img.Bounds().Dx())
		assert.Equal(t, 40, img.Bounds().Dy())
	})

	t.Run("upscale defaults the factor when unset", func(t *testing.T) {
		out, err := r.Apply(ctx, src, domain.StepUpscale, domain.PreprocessOptions{})
		require.NoError(t, err)

		img := decodePNG(t, out)
		assert.Equal(t, 80, img.Bounds().Dx())
	})
}

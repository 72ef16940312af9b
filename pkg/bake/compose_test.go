package bake

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

func uniform(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestComposePackedNormal(t *testing.T) {
	normal := uniform(3, 2, color.NRGBA{R: 128, G: 255})
	metal := uniform(3, 2, color.NRGBA{B: 64})
	rough := uniform(3, 2, color.NRGBA{B: 32})

	out, err := ComposePackedNormal(normal, metal, rough)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), out.Bounds())
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			assert.Equal(t, color.NRGBA{R: 128, G: 255, B: 64, A: 223}, out.NRGBAAt(x, y))
		}
	}
}

func TestComposePackedNormalDefaults(t *testing.T) {
	normal := image.NewRGBA(image.Rect(10, 10, 12, 12))
	normal.SetRGBA(11, 11, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	out, err := ComposePackedNormal(normal, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 10, G: 20, A: 255}, out.NRGBAAt(1, 1))
}

func TestComposePackedNormalSizeMismatch(t *testing.T) {
	_, err := ComposePackedNormal(uniform(2, 2, color.NRGBA{}), uniform(4, 4, color.NRGBA{}), nil)
	assert.True(t, errors.Is(err, xperr.ErrInvariant))
	_, err = ComposePackedNormal(nil, nil, nil)
	assert.True(t, errors.Is(err, xperr.ErrReference))
}

func TestWithAlpha(t *testing.T) {
	base := uniform(2, 2, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	opacity := image.NewGray(image.Rect(0, 0, 2, 2))
	opacity.SetGray(0, 1, color.Gray{Y: 77})

	out, err := WithAlpha(base, opacity)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 77}, out.NRGBAAt(0, 1))
	assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 0}, out.NRGBAAt(1, 1))
}

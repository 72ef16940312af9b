package bake

import (
	"image"
	"image/color"

	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// ComposePackedNormal packs a tangent-space normal bake with metalness and
// roughness bakes into X-Plane's normal texture layout: R and G from the
// normal, B from the metalness, and alpha the inverted roughness.
// A nil metal reads as zero metalness, a nil rough as zero roughness.
// Channels are read straight, so inputs with zero alpha keep their colour.
func ComposePackedNormal(normal, metal, rough image.Image) (*image.NRGBA, error) {
	if normal == nil {
		return nil, xperr.Reference("packed normal needs a normal image")
	}
	b := normal.Bounds()
	if metal != nil && !sameSize(b, metal.Bounds()) {
		return nil, xperr.Invariant("metalness is %v, normal is %v", metal.Bounds().Size(), b.Size())
	}
	if rough != nil && !sameSize(b, rough.Bounds()) {
		return nil, xperr.Invariant("roughness is %v, normal is %v", rough.Bounds().Size(), b.Size())
	}

	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			n := straight(normal, x, y)
			px := color.NRGBA{R: n.R, G: n.G, A: 255}
			if metal != nil {
				px.B = straight(metal, x, y).B
			}
			if rough != nil {
				px.A = 255 - straight(rough, x, y).B
			}
			out.SetNRGBA(x, y, px)
		}
	}
	return out, nil
}

// WithAlpha returns base with the red channel of a grey opacity bake as its
// alpha.
func WithAlpha(base, opacity image.Image) (*image.NRGBA, error) {
	b := base.Bounds()
	if !sameSize(b, opacity.Bounds()) {
		return nil, xperr.Invariant("opacity is %v, base is %v", opacity.Bounds().Size(), b.Size())
	}
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			px := straight(base, x, y)
			px.A = straight(opacity, x, y).R
			out.SetNRGBA(x, y, px)
		}
	}
	return out, nil
}

// straight reads the non-premultiplied colour at (x, y) relative to the
// image origin.
func straight(img image.Image, x, y int) color.NRGBA {
	o := img.Bounds().Min
	if n, ok := img.(*image.NRGBA); ok {
		return n.NRGBAAt(o.X+x, o.Y+y)
	}
	return color.NRGBAModel.Convert(img.At(o.X+x, o.Y+y)).(color.NRGBA)
}

func sameSize(a, b image.Rectangle) bool {
	return a.Dx() == b.Dx() && a.Dy() == b.Dy()
}

// Package compositor estimates one destination color from a distorted source
// and the forward operator's response to a single-pixel marker.
package compositor

import (
	"fmt"
	"image"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"unswirl/pkg/bitmap"
)

var (
	// ErrDegenerateMask is returned when a mask carries no alpha at all. The
	// weighted average is undefined there, so no color is produced.
	ErrDegenerateMask = errors.New("degenerate mask")
	ErrSizeMismatch   = errors.New("mask and source size mismatch")
)

// New snapshots the color planes of src. The Compositor never touches src
// again and is safe for concurrent use.
func New(src image.Image) *Compositor {
	b := src.Bounds()
	n := b.Dx() * b.Dy()
	c := &Compositor{
		size: b.Size(),
		r:    make([]float64, n),
		g:    make([]float64, n),
		b:    make([]float64, n),
	}

	i := 0
	if nrgba, ok := src.(*image.NRGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				p := nrgba.Pix[nrgba.PixOffset(x, y):]
				c.r[i] = float64(p[0]) / 0xFF
				c.g[i] = float64(p[1]) / 0xFF
				c.b[i] = float64(p[2]) / 0xFF
				i++
			}
		}
		return c
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := src.At(x, y).RGBA()
			if a > 0 {
				// un-premultiply; the mask decides visibility, not the source alpha
				c.r[i] = float64(r) / float64(a)
				c.g[i] = float64(g) / float64(a)
				c.b[i] = float64(bl) / float64(a)
			}
			i++
		}
	}

	return c
}

type Compositor struct {
	size    image.Point
	r, g, b []float64
}

// Composite returns the alpha-weighted average of the source color, weighted
// by mask.
func (c *Compositor) Composite(mask *bitmap.Mask) (colorful.Color, error) {
	if mask.Bounds().Size() != c.size {
		ms := mask.Bounds().Size()
		return colorful.Color{}, fmt.Errorf("%w: mask %dx%d, source %dx%d", ErrSizeMismatch, ms.X, ms.Y, c.size.X, c.size.Y)
	}

	alpha := mask.Weights()
	sumA := floats.Sum(alpha)
	if !(sumA > 0) {
		return colorful.Color{}, ErrDegenerateMask
	}

	return colorful.Color{
		R: floats.Dot(c.r, alpha) / sumA,
		G: floats.Dot(c.g, alpha) / sumA,
		B: floats.Dot(c.b, alpha) / sumA,
	}, nil
}

func Composite(src image.Image, mask *bitmap.Mask) (colorful.Color, error) {
	return New(src).Composite(mask)
}

// CompositeImage extracts the mask from a raw transform response first.
func CompositeImage(src, response image.Image) (colorful.Color, error) {
	return Composite(src, bitmap.Extract(response))
}

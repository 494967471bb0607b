package bitmap

import (
	"image"
	"image/color"
)

func NewMask(r image.Rectangle) *Mask {
	return &Mask{
		weights: make([]float64, r.Dx()*r.Dy()),
		stride:  r.Dx(),
		bounds:  r,
	}
}

// Mask holds per-pixel contribution weights in [0,1], taken from the alpha
// channel of a transform response. It implements the draw.Image interface so
// a mask can be written out for inspection.
type Mask struct {
	weights []float64
	stride  int
	bounds  image.Rectangle
}

func (m *Mask) Bounds() image.Rectangle {
	return m.bounds
}

func (m *Mask) ColorModel() color.Model {
	return color.Alpha16Model
}

func (m *Mask) At(x, y int) color.Color {
	w := m.Weight(x, y)
	if w > 1 {
		w = 1
	}
	return color.Alpha16{A: uint16(w*0xFFFF + 0.5)}
}

// Set keeps only the alpha of c.
func (m *Mask) Set(x, y int, c color.Color) {
	_, _, _, a := c.RGBA()
	m.SetWeight(x, y, float64(a)/0xFFFF)
}

func (m *Mask) Weight(x, y int) float64 {
	if !(image.Point{X: x, Y: y}.In(m.bounds)) {
		return 0
	}
	return m.weights[m.offset(x, y)]
}

func (m *Mask) SetWeight(x, y int, w float64) {
	if !(image.Point{X: x, Y: y}.In(m.bounds)) {
		return
	}
	if w < 0 {
		w = 0
	}
	m.weights[m.offset(x, y)] = w
}

// Weights exposes the plane in row-major order. Callers must not modify it.
func (m *Mask) Weights() []float64 {
	return m.weights
}

func (m *Mask) offset(x, y int) int {
	return (y-m.bounds.Min.Y)*m.stride + (x - m.bounds.Min.X)
}

package bitmap

import (
	"image"
)

// Extract reads the alpha channel of a transform response into a Mask. The
// color channels of src carry no meaning and are dropped.
func Extract(src image.Image) *Mask {
	b := src.Bounds()
	dst := NewMask(b)

	if nrgba, ok := src.(*image.NRGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				a := nrgba.Pix[nrgba.PixOffset(x, y)+3]
				dst.weights[dst.offset(x, y)] = float64(a) / 0xFF
			}
		}
		return dst
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, src.At(x, y))
		}
	}

	return dst
}

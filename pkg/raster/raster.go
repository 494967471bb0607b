package raster

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

var ErrInvalidCoordinate = errors.New("invalid coordinate")

var (
	// MarkerColor is the single opaque pixel of a marker.
	MarkerColor = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	// Unprocessed fills destination pixels not visited yet.
	Unprocessed = color.NRGBA{}
)

func Contains(width, height int, pt image.Point) bool {
	return pt.X >= 0 && pt.X < width && pt.Y >= 0 && pt.Y < height
}

// Marker returns a transparent width x height image with one opaque pixel at (x, y).
func Marker(width, height, x, y int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: empty %dx%d canvas", ErrInvalidCoordinate, width, height)
	}
	if !Contains(width, height, image.Pt(x, y)) {
		return nil, fmt.Errorf("%w: (%d,%d) outside %dx%d", ErrInvalidCoordinate, x, y, width, height)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	img.SetNRGBA(x, y, MarkerColor)
	return img, nil
}

// Clone copies img into a fresh NRGBA anchored at the origin.
func Clone(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

func Fill(width, height int, c color.NRGBA) *image.NRGBA {
	return imaging.New(width, height, c)
}

func SameSize(a, b image.Image) bool {
	return a.Bounds().Size() == b.Bounds().Size()
}

// ToNRGBA clamps an aggregate color and rounds it to 8 bits per channel.
func ToNRGBA(c colorful.Color) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xFF}
}

package virtual

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// swirl follows ImageMagick's -swirl: every destination pixel inside the
// radius samples the source rotated by degrees*(1-d/r)^2 around the center.
func swirl(img image.Image, degrees float64) *image.NRGBA {
	src := imaging.Clone(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewNRGBA(src.Bounds())

	cx, cy := 0.5*float64(w), 0.5*float64(h)
	radius := math.Max(cx, cy)
	sx, sy := 1.0, 1.0
	if w > h {
		sy = float64(w) / float64(h)
	} else if w < h {
		sx = float64(h) / float64(w)
	}
	theta := degrees * math.Pi / 180

	for y := 0; y < h; y++ {
		dy := sy * (float64(y) - cy)
		for x := 0; x < w; x++ {
			dx := sx * (float64(x) - cx)
			dist := dx*dx + dy*dy
			if dist >= radius*radius {
				dst.SetNRGBA(x, y, src.NRGBAAt(x, y))
				continue
			}

			f := 1 - math.Sqrt(dist)/radius
			sin, cos := math.Sincos(theta * f * f)
			u := (cos*dx-sin*dy)/sx + cx
			v := (sin*dx+cos*dy)/sy + cy
			dst.SetNRGBA(x, y, bilinear(src, u, v))
		}
	}

	return dst
}

// bilinear samples with edge clamping and alpha weighted color channels.
func bilinear(src *image.NRGBA, u, v float64) color.NRGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	x0, y0 := math.Floor(u), math.Floor(v)
	fx, fy := u-x0, v-y0

	var acc [4]float64
	for _, t := range [4]struct {
		x, y int
		k    float64
	}{
		{int(x0), int(y0), (1 - fx) * (1 - fy)},
		{int(x0) + 1, int(y0), fx * (1 - fy)},
		{int(x0), int(y0) + 1, (1 - fx) * fy},
		{int(x0) + 1, int(y0) + 1, fx * fy},
	} {
		if t.k == 0 {
			continue
		}
		c := src.NRGBAAt(clamp(t.x, w), clamp(t.y, h))
		a := float64(c.A) * t.k
		acc[0] += float64(c.R) * a
		acc[1] += float64(c.G) * a
		acc[2] += float64(c.B) * a
		acc[3] += a
	}

	if acc[3] == 0 {
		return color.NRGBA{}
	}
	return color.NRGBA{
		R: uint8(acc[0]/acc[3] + 0.5),
		G: uint8(acc[1]/acc[3] + 0.5),
		B: uint8(acc[2]/acc[3] + 0.5),
		A: uint8(acc[3] + 0.5),
	}
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

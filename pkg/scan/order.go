package scan

import (
	"context"
	"fmt"
	"image"

	"github.com/samber/lo"
)

// Order decides in which sequence destination coordinates are visited. The
// channel is closed once every coordinate was sent or ctx is done.
type Order interface {
	Name() string
	Coords(ctx context.Context, width, height int) <-chan image.Point
}

func Raster() Order {
	return &rasterOrder{}
}

func Shuffled() Order {
	return &shuffled{}
}

func ByName(name string) (Order, error) {
	switch name {
	case "", "raster":
		return Raster(), nil
	case "shuffle", "shuffled":
		return Shuffled(), nil
	}
	return nil, fmt.Errorf("unknown order %q", name)
}

type rasterOrder struct{}

func (o *rasterOrder) Name() string {
	return "raster"
}

func (o *rasterOrder) Coords(ctx context.Context, width, height int) <-chan image.Point {
	pc := make(chan image.Point)

	go func() {
		defer close(pc)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				select {
				case <-ctx.Done():
					return
				case pc <- image.Pt(x, y):
				}
			}
		}
	}()

	return pc
}

type shuffled struct{}

func (o *shuffled) Name() string {
	return "shuffled"
}

func (o *shuffled) Coords(ctx context.Context, width, height int) <-chan image.Point {
	pc := make(chan image.Point)

	go func() {
		defer close(pc)

		pts := make([]image.Point, 0, width*height)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				pts = append(pts, image.Pt(x, y))
			}
		}
		lo.Shuffle(pts)

		for _, pt := range pts {
			select {
			case <-ctx.Done():
				return
			case pc <- pt:
			}
		}
	}()

	return pc
}

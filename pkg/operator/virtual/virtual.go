package virtual

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"unswirl/pkg/proto"
)

// Func is an in-process forward operator. It must not modify its input.
type Func func(img image.Image) *image.NRGBA

func New(name string, fn Func, logger *zap.Logger) proto.Transform {
	return &Operator{name: name, fn: fn, l: logger}
}

type Operator struct {
	name string
	fn   Func
	l    *zap.Logger
}

func (o *Operator) Name() string {
	return o.name
}

func (o *Operator) Apply(ctx context.Context, src image.Image) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst := o.fn(src)
	if err := proto.CheckOutput(src, dst); err != nil {
		return nil, err
	}

	o.l.With(
		zap.String("op", o.name),
		zap.Int("w", dst.Bounds().Dx()),
		zap.Int("h", dst.Bounds().Dy()),
	).Debug("applied")
	return dst, nil
}

func Identity(logger *zap.Logger) proto.Transform {
	return New("identity", imaging.Clone, logger)
}

func FlipH(logger *zap.Logger) proto.Transform {
	return New("flip-h", imaging.FlipH, logger)
}

func FlipV(logger *zap.Logger) proto.Transform {
	return New("flip-v", imaging.FlipV, logger)
}

func Rotate180(logger *zap.Logger) proto.Transform {
	return New("rotate180", imaging.Rotate180, logger)
}

// Transpose only keeps dimensions for square images; other sizes are rejected
// as invalid output.
func Transpose(logger *zap.Logger) proto.Transform {
	return New("transpose", imaging.Transpose, logger)
}

func Swirl(degrees float64, logger *zap.Logger) proto.Transform {
	return New(fmt.Sprintf("swirl-%g", degrees), func(img image.Image) *image.NRGBA {
		return swirl(img, degrees)
	}, logger)
}

func ByName(name string, degrees float64, logger *zap.Logger) (proto.Transform, error) {
	switch name {
	case "identity":
		return Identity(logger), nil
	case "flip-h":
		return FlipH(logger), nil
	case "flip-v":
		return FlipV(logger), nil
	case "rotate180":
		return Rotate180(logger), nil
	case "transpose":
		return Transpose(logger), nil
	case "swirl":
		return Swirl(degrees, logger), nil
	}
	return nil, fmt.Errorf("unknown virtual operator %q", name)
}

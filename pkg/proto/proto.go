package proto

import (
	"context"
	"fmt"
	"image"

	"github.com/pkg/errors"
)

var (
	ErrTransformTimeout       = errors.New("transform timeout")
	ErrTransformUnavailable   = errors.New("transform unavailable")
	ErrTransformOutputInvalid = errors.New("transform output invalid")
)

// Transform is the forward distortion operator. Apply must return an image
// with the same dimensions as src and must not modify src.
type Transform interface {
	Name() string
	Apply(ctx context.Context, src image.Image) (*image.NRGBA, error)
}

func CheckOutput(src, dst image.Image) error {
	if nrgba, ok := dst.(*image.NRGBA); dst == nil || (ok && nrgba == nil) {
		return fmt.Errorf("%w: no image produced", ErrTransformOutputInvalid)
	}

	ss := src.Bounds().Size()
	ds := dst.Bounds().Size()
	if ss != ds {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrTransformOutputInvalid, ds.X, ds.Y, ss.X, ss.Y)
	}

	return nil
}

// Retryable reports whether another attempt of the same call may succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransformTimeout) || errors.Is(err, ErrTransformUnavailable)
}

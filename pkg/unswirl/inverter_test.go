package unswirl

import (
	"context"
	"image"
	"image/color"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"unswirl/pkg/compositor"
	"unswirl/pkg/operator/virtual"
	"unswirl/pkg/proto"
	"unswirl/pkg/raster"
	"unswirl/pkg/scan"
)

type counting struct {
	proto.Transform
	calls int32
}

func (c *counting) Apply(ctx context.Context, src image.Image) (*image.NRGBA, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.Transform.Apply(ctx, src)
}

type cancelAfter struct {
	proto.Transform
	n      int32
	calls  int32
	cancel context.CancelFunc
}

func (c *cancelAfter) Apply(ctx context.Context, src image.Image) (*image.NRGBA, error) {
	dst, err := c.Transform.Apply(ctx, src)
	if atomic.AddInt32(&c.calls, 1) == c.n {
		c.cancel()
	}
	return dst, err
}

type failAt struct {
	proto.Transform
	at  image.Point
	err error
}

func (f *failAt) Apply(ctx context.Context, src image.Image) (*image.NRGBA, error) {
	if src.(*image.NRGBA).NRGBAAt(f.at.X, f.at.Y).A != 0 {
		return nil, f.err
	}
	return f.Transform.Apply(ctx, src)
}

type blank struct{}

func (blank) Name() string {
	return "blank"
}

func (blank) Apply(_ context.Context, src image.Image) (*image.NRGBA, error) {
	return image.NewNRGBA(src.Bounds()), nil
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 8), G: uint8(y * 8), B: 100, A: 255})
		}
	}
	return img
}

func memStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(afero.NewMemMapFs(), "out.png", zap.NewNop())
	require.NoError(t, err)
	return s
}

func at(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func TestRunIdentity2x2(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{G: 255, A: 255})
	src.SetNRGBA(0, 1, color.NRGBA{B: 255, A: 255})
	src.SetNRGBA(1, 1, color.NRGBA{R: 12, G: 34, B: 56, A: 255})

	store := memStore(t)
	inv := New(virtual.Identity(zap.NewNop()), store, zap.NewNop(), WithWorkers(1))

	res, err := inv.Run(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.Empty(t, res.Failures)
	assert.Equal(t, src.Pix, res.Image.Pix)

	saved, err := store.Load()
	require.NoError(t, err)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			assert.Equal(t, src.NRGBAAt(x, y), at(saved, x, y))
		}
	}
}

func TestRunRoundTripPermutation(t *testing.T) {
	original := gradient(5, 4)

	for _, op := range []proto.Transform{
		virtual.Rotate180(zap.NewNop()),
		virtual.FlipH(zap.NewNop()),
		virtual.FlipV(zap.NewNop()),
	} {
		distorted, err := op.Apply(context.Background(), original)
		require.NoError(t, err)

		inv := New(op, nil, zap.NewNop(), WithWorkers(4), WithOrder(scan.Shuffled()))
		res, err := inv.Run(context.Background(), distorted)
		require.NoError(t, err, op.Name())
		assert.Equal(t, original.Pix, res.Image.Pix, op.Name())
	}
}

func TestRunRoundTripSwirl(t *testing.T) {
	const w, h, tolerance = 16, 16, 20
	original := gradient(w, h)
	op := virtual.Swirl(90, zap.NewNop())

	distorted, err := op.Apply(context.Background(), original)
	require.NoError(t, err)

	res, err := New(op, nil, zap.NewNop()).Run(context.Background(), distorted)
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.LessOrEqual(t, len(res.Failures), w*h/4)

	unresolved := make(map[image.Point]bool)
	for _, pt := range res.Unresolved() {
		unresolved[pt] = true
	}

	diff := func(a, b uint8) int {
		if a > b {
			return int(a - b)
		}
		return int(b - a)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if unresolved[image.Pt(x, y)] {
				continue
			}
			want := original.NRGBAAt(x, y)
			got := res.Image.NRGBAAt(x, y)
			assert.LessOrEqual(t, diff(want.R, got.R), tolerance, "R at %d,%d", x, y)
			assert.LessOrEqual(t, diff(want.G, got.G), tolerance, "G at %d,%d", x, y)
			assert.LessOrEqual(t, diff(want.B, got.B), tolerance, "B at %d,%d", x, y)
		}
	}
}

func TestProbeOutOfRange(t *testing.T) {
	op := &counting{Transform: virtual.Identity(zap.NewNop())}
	inv := New(op, nil, zap.NewNop())
	src := gradient(3, 2)

	for _, pt := range []image.Point{{3, 0}, {0, 2}, {-1, 0}} {
		_, err := inv.Probe(context.Background(), src, pt)
		assert.ErrorIs(t, err, raster.ErrInvalidCoordinate)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&op.calls))

	c, err := inv.Probe(context.Background(), src, image.Pt(2, 1))
	require.NoError(t, err)
	assert.Equal(t, src.NRGBAAt(2, 1), c)
	assert.Equal(t, int32(1), atomic.LoadInt32(&op.calls))
}

func TestRunPartialOutput(t *testing.T) {
	const w, h, n = 4, 3, 6
	src := gradient(w, h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	op := &cancelAfter{Transform: virtual.Identity(zap.NewNop()), n: n, cancel: cancel}
	store := memStore(t)
	inv := New(op, store, zap.NewNop(), WithWorkers(1))

	res, err := inv.Run(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, n, res.Processed)
	assert.False(t, res.Complete())

	saved, err := store.Load()
	require.NoError(t, err)
	for i := 0; i < w*h; i++ {
		x, y := i%w, i/w
		want := raster.Unprocessed
		if i < n {
			want = src.NRGBAAt(x, y)
		}
		assert.Equal(t, want, at(saved, x, y), "pixel %d,%d", x, y)
	}
}

func TestRunDegenerateMask(t *testing.T) {
	src := gradient(3, 2)
	inv := New(blank{}, nil, zap.NewNop(), WithUnresolved(color.NRGBA{R: 1, G: 2, B: 3, A: 4}))

	res, err := inv.Run(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.Complete())
	require.Len(t, res.Failures, 6)
	assert.Equal(t, image.Pt(0, 0), res.Failures[0].At)
	assert.Equal(t, image.Pt(2, 1), res.Failures[5].At)
	for _, f := range res.Failures {
		assert.ErrorIs(t, f.Err, compositor.ErrDegenerateMask)
		assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 4}, res.Image.NRGBAAt(f.At.X, f.At.Y))
	}
	assert.Contains(t, res.Summary(2), "6 unresolved")
	assert.Contains(t, res.Summary(2), "(+4 more)")
}

func TestRunRecordsTransientFailure(t *testing.T) {
	src := gradient(3, 3)
	op := &failAt{Transform: virtual.Identity(zap.NewNop()), at: image.Pt(1, 2), err: proto.ErrTransformTimeout}

	res, err := New(op, nil, zap.NewNop(), WithWorkers(2)).Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []image.Point{{1, 2}}, res.Unresolved())
	assert.ErrorIs(t, res.Failures[0].Err, proto.ErrTransformTimeout)
	assert.Equal(t, DefaultUnresolved, res.Image.NRGBAAt(1, 2))
	assert.Equal(t, src.NRGBAAt(0, 0), res.Image.NRGBAAt(0, 0))
	assert.Equal(t, 8, res.Resolved())
}

func TestRunAbortsWhenOperatorExhausted(t *testing.T) {
	src := gradient(3, 3)
	op := &failAt{Transform: virtual.Identity(zap.NewNop()), at: image.Pt(1, 1), err: proto.ErrTransformUnavailable}
	store := memStore(t)

	res, err := New(op, store, zap.NewNop(), WithWorkers(1)).Run(context.Background(), src)
	assert.ErrorIs(t, err, ErrOperatorExhausted)
	assert.ErrorIs(t, err, proto.ErrTransformUnavailable)
	assert.Equal(t, 4, res.Processed)

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, src.NRGBAAt(0, 1), at(saved, 0, 1))
	assert.Equal(t, raster.Unprocessed, at(saved, 1, 1))
}

func TestRunSnapshotsPerRow(t *testing.T) {
	src := gradient(2, 3)

	store := memStore(t)
	_, err := New(virtual.Identity(zap.NewNop()), store, zap.NewNop(), WithWorkers(1)).Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Saves())

	store = memStore(t)
	_, err = New(virtual.Identity(zap.NewNop()), store, zap.NewNop(), WithSnapshotRows(0)).Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Saves())
}

func TestRunLeavesSourceUntouched(t *testing.T) {
	src := gradient(3, 3)
	before := raster.Clone(src)

	_, err := New(virtual.Rotate180(zap.NewNop()), nil, zap.NewNop()).Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, before.Pix, src.Pix)
}

func TestRunEmptySource(t *testing.T) {
	_, err := New(virtual.Identity(zap.NewNop()), nil, zap.NewNop()).Run(context.Background(), image.NewNRGBA(image.Rect(0, 0, 0, 0)))
	assert.ErrorIs(t, err, ErrEmptySource)
}

func TestStoreRejectsUnknownFormat(t *testing.T) {
	_, err := NewStore(afero.NewMemMapFs(), "out.xyz", zap.NewNop())
	assert.Error(t, err)
}

// Package unswirl reconstructs an image from its distorted version by probing
// the forward operator with one marker per destination pixel.
package unswirl

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"unswirl/pkg/bitmap"
	"unswirl/pkg/compositor"
	"unswirl/pkg/proto"
	"unswirl/pkg/raster"
	"unswirl/pkg/scan"
)

var (
	ErrOperatorExhausted = errors.New("forward operator exhausted")
	ErrEmptySource       = errors.New("empty source image")
)

// DefaultUnresolved marks pixels whose probe failed.
var DefaultUnresolved = color.NRGBA{R: 0xFF, G: 0x00, B: 0xFF, A: 0xFF}

// New builds an Inverter. store may be nil, then nothing is persisted.
func New(t proto.Transform, store *Store, logger *zap.Logger, opts ...Option) *Inverter {
	i := &Inverter{
		t:     t,
		store: store,
		log:   logger,
		// options
		workers:      defaultWorkers(),
		order:        scan.Raster(),
		snapshotRows: 1,
		unresolved:   DefaultUnresolved,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

type Inverter struct {
	t     proto.Transform
	store *Store
	log   *zap.Logger
	// options
	workers      int
	order        scan.Order
	snapshotRows int
	unresolved   color.NRGBA
	progress     bool
}

// Probe resolves a single destination coordinate of src.
func (i *Inverter) Probe(ctx context.Context, src image.Image, pt image.Point) (color.NRGBA, error) {
	b := src.Bounds()
	if !raster.Contains(b.Dx(), b.Dy(), pt) {
		_, err := raster.Marker(b.Dx(), b.Dy(), pt.X, pt.Y)
		return color.NRGBA{}, err
	}
	return i.resolve(ctx, compositor.New(src), b.Dx(), b.Dy(), pt)
}

func (i *Inverter) resolve(ctx context.Context, comp *compositor.Compositor, w, h int, pt image.Point) (color.NRGBA, error) {
	marker, err := raster.Marker(w, h, pt.X, pt.Y)
	if err != nil {
		return color.NRGBA{}, err
	}

	resp, err := i.t.Apply(ctx, marker)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("transform failed: %w", err)
	}

	c, err := comp.Composite(bitmap.Extract(resp))
	if err != nil {
		return color.NRGBA{}, err
	}

	return raster.ToNRGBA(c), nil
}

// Run probes every pixel of the distorted src and returns the reconstruction.
// A cancelled ctx or an exhausted operator stops the run early; the partial
// result is returned and persisted along with the error.
func (i *Inverter) Run(ctx context.Context, src image.Image) (*Result, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrEmptySource
	}

	source := raster.Clone(src)
	r := &run{
		Inverter: i,
		comp:     compositor.New(source),
		w:        w,
		h:        h,
		out:      raster.Fill(w, h, raster.Unprocessed),
		rows:     make([]int, h),
	}
	if i.progress {
		r.bar = progressbar.Default(int64(w*h), "unswirl")
	}

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.cancel = cancel

	log := i.log.With(
		zap.String("op", i.t.Name()),
		zap.String("order", i.order.Name()),
		zap.Int("w", w),
		zap.Int("h", h),
		zap.Int("workers", i.workers),
	)
	log.Info("start")

	coords := i.order.Coords(rctx, w, h)

	var wg sync.WaitGroup
	for n := 0; n < i.workers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.work(rctx, coords)
		}()
	}
	wg.Wait()
	cancel()

	res := r.result()
	if r.bar != nil && res.Complete() {
		_ = r.bar.Finish()
	}

	if err := r.snapshot(); err != nil {
		log.With(zap.Error(err)).Info("save output failed")
		if r.fatal == nil && ctx.Err() == nil {
			return res, fmt.Errorf("save output failed: %w", err)
		}
	}

	log = log.With(zap.Int("processed", res.Processed), zap.Int("failures", len(res.Failures)))
	switch {
	case r.fatal != nil:
		log.With(zap.Error(r.fatal)).Info("aborted")
		return res, r.fatal
	case ctx.Err() != nil:
		log.Info("interrupted")
		return res, ctx.Err()
	}

	log.Info("done")
	return res, nil
}

type run struct {
	*Inverter
	comp   *compositor.Compositor
	w, h   int
	bar    *progressbar.ProgressBar
	cancel context.CancelFunc

	mu        sync.Mutex
	out       *image.NRGBA
	rows      []int
	rowsDone  int
	processed int
	failures  []Failure
	fatal     error
}

func (r *run) work(ctx context.Context, coords <-chan image.Point) {
	for pt := range coords {
		if ctx.Err() != nil {
			return
		}

		c, err := r.resolve(ctx, r.comp, r.w, r.h, pt)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, proto.ErrTransformUnavailable) {
				r.abort(pt, err)
				return
			}

			r.log.With(zap.Int("x", pt.X), zap.Int("y", pt.Y), zap.Error(err)).Debug("unresolved")
			r.fail(pt, err)
			c = r.unresolved
		}

		r.set(pt, c)
	}
}

func (r *run) set(pt image.Point, c color.NRGBA) {
	r.mu.Lock()
	r.out.SetNRGBA(pt.X, pt.Y, c)
	r.processed++
	r.rows[pt.Y]++
	snap := false
	if r.rows[pt.Y] == r.w {
		r.rowsDone++
		snap = r.snapshotRows > 0 && r.rowsDone%r.snapshotRows == 0 && r.rowsDone < r.h
	}
	r.mu.Unlock()

	if r.bar != nil {
		_ = r.bar.Add(1)
	}

	if snap {
		if err := r.snapshot(); err != nil {
			r.log.With(zap.Error(err)).Info("snapshot failed")
		}
	}
}

func (r *run) fail(pt image.Point, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, Failure{At: pt, Err: err})
}

func (r *run) abort(pt image.Point, err error) {
	r.mu.Lock()
	if r.fatal == nil {
		r.fatal = fmt.Errorf("%w at %v: %w", ErrOperatorExhausted, pt, err)
	}
	r.mu.Unlock()
	r.cancel()
}

func (r *run) snapshot() error {
	if r.store == nil {
		return nil
	}

	r.mu.Lock()
	seq := r.store.NextFrame()
	frame := raster.Clone(r.out)
	r.mu.Unlock()

	_, err := r.store.SaveFrame(seq, frame)
	return err
}

func (r *run) result() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	failures := append([]Failure(nil), r.failures...)
	sortFailures(failures)

	return &Result{
		Image:     raster.Clone(r.out),
		Failures:  failures,
		Processed: r.processed,
		Total:     r.w * r.h,
	}
}

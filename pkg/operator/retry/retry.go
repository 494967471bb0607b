package retry

import (
	"context"
	"image"
	"time"

	"go.uber.org/zap"

	"unswirl/pkg/proto"
)

type Option func(r *Retry)

// WithAttempts sets how many extra attempts follow a failed call.
func WithAttempts(n int) Option {
	return func(r *Retry) {
		if n >= 0 {
			r.attempts = n
		}
	}
}

func WithWait(d time.Duration) Option {
	return func(r *Retry) {
		if d >= 0 {
			r.wait = d
		}
	}
}

func New(t proto.Transform, logger *zap.Logger, opts ...Option) *Retry {
	r := &Retry{
		t:        t,
		log:      logger.With(zap.String("via", "retry"), zap.String("op", t.Name())),
		attempts: 2,
		wait:     time.Second,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Retry repeats timeouts and launch failures of the wrapped Transform.
// Invalid output is returned as is.
type Retry struct {
	t        proto.Transform
	log      *zap.Logger
	attempts int
	wait     time.Duration
}

func (r *Retry) Name() string {
	return r.t.Name()
}

func (r *Retry) Apply(ctx context.Context, src image.Image) (*image.NRGBA, error) {
	for attempt := 0; ; attempt++ {
		dst, err := r.t.Apply(ctx, src)
		if err == nil {
			return dst, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !proto.Retryable(err) || attempt >= r.attempts {
			return nil, err
		}

		r.log.With(zap.Int("attempt", attempt+1), zap.Error(err)).Info("retrying")

		timer := time.NewTimer(r.wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

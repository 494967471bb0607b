package setup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"unswirl/pkg/operator/magick"
	"unswirl/pkg/operator/remote"
	"unswirl/pkg/operator/virtual"
	"unswirl/pkg/proto"
)

func Logger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

// FxLogger keeps fx lifecycle chatter out of the log below warn level.
func FxLogger(logger *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
}

// Operator describes which forward operator to build.
type Operator struct {
	Remote  string
	Virtual string
	Degrees float64
	Binary  string
	Args    []string
	Timeout string
	TmpDir  string
}

func (o Operator) timeout() (time.Duration, error) {
	if o.Timeout == "" {
		return magick.DefaultTimeout, nil
	}
	d, err := time.ParseDuration(o.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout: %w", err)
	}
	return d, nil
}

// Build returns the configured forward operator. Resources it opens are
// released on lifecycle stop.
func (o Operator) Build(logger *zap.Logger, lc fx.Lifecycle) (proto.Transform, error) {
	d, err := o.timeout()
	if err != nil {
		return nil, err
	}

	switch {
	case strings.HasPrefix(o.Remote, "http://") || strings.HasPrefix(o.Remote, "https://"):
		return remote.NewHTTP(o.Remote, d), nil

	case o.Remote != "":
		c, err := remote.NewRPC(o.Remote, d)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return c.Close()
			},
		})
		return c, nil

	case o.Virtual != "":
		return virtual.ByName(o.Virtual, o.Degrees, logger)
	}

	tmp, err := magick.NewTmpFs(o.TmpDir)
	if err != nil {
		return nil, err
	}
	if o.TmpDir == "" {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return tmp.RemoveAll()
			},
		})
	}

	opts := []magick.Option{magick.WithBinary(o.Binary), magick.WithTimeout(d)}
	if o.Args != nil {
		opts = append(opts, magick.WithArgs(o.Args...))
	}
	return magick.New(tmp, logger, opts...), nil
}

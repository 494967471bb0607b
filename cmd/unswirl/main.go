package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
	flag "github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"unswirl/internal/setup"
	"unswirl/pkg/operator/magick"
	"unswirl/pkg/operator/retry"
	"unswirl/pkg/proto"
	"unswirl/pkg/scan"
	"unswirl/pkg/unswirl"
)

var input = flag.String("input", "swirl.png", "distorted image to invert")
var output = flag.String("output", "unswirled.png", "reconstructed image, rewritten as rows complete")
var original = flag.String("distort", "", "distort this image first and write the result to --input")
var remoteAddr = flag.String("remote", "", "remote operator, http(s)://host:port or host:port for net/rpc")
var virtualOp = flag.String("virtual", "", "in-process operator: identity, flip-h, flip-v, rotate180, transpose, swirl")
var degrees = flag.Float64("degrees", 720, "degrees for the in-process swirl")
var binary = flag.String("binary", magick.DefaultBinary, "forward operator executable")
var args = flag.StringSlice("args", magick.DefaultArgs, "operator arguments between input and output path")
var timeout = flag.String("timeout", "1m", "per call operator timeout")
var retries = flag.Int("retries", 2, "extra attempts after a timeout or launch failure")
var retryWait = flag.String("retry-wait", "1s", "wait between attempts")
var workers = flag.Int("workers", 0, "parallel probes, 0 for one per CPU")
var snapshotRows = flag.Int("snapshot-rows", 1, "save output every n completed rows, 0 to save only at the end")
var order = flag.String("order", "raster", "visit order: raster, shuffle")
var tmpDir = flag.String("tmp", "", "scratch dir for the external operator")
var progress = flag.Bool("progress", false, "show progress bar")
var debug = flag.Bool("debug", false, "set debug")

var exitCode int

func newLogger() (*zap.Logger, error) {
	return setup.Logger(*debug)
}

func newTransform(logger *zap.Logger, lc fx.Lifecycle) (proto.Transform, error) {
	wait, err := time.ParseDuration(*retryWait)
	if err != nil {
		return nil, err
	}

	t, err := setup.Operator{
		Remote:  *remoteAddr,
		Virtual: *virtualOp,
		Degrees: *degrees,
		Binary:  *binary,
		Args:    *args,
		Timeout: *timeout,
		TmpDir:  *tmpDir,
	}.Build(logger, lc)
	if err != nil {
		return nil, err
	}

	return retry.New(t, logger, retry.WithAttempts(*retries), retry.WithWait(wait)), nil
}

func newStore(logger *zap.Logger) (*unswirl.Store, error) {
	return unswirl.NewStore(afero.NewOsFs(), *output, logger)
}

func newInverter(t proto.Transform, store *unswirl.Store, logger *zap.Logger) (*unswirl.Inverter, error) {
	o, err := scan.ByName(*order)
	if err != nil {
		return nil, err
	}

	return unswirl.New(t, store, logger,
		unswirl.WithWorkers(*workers),
		unswirl.WithOrder(o),
		unswirl.WithSnapshotRows(*snapshotRows),
		unswirl.WithProgress(*progress),
	), nil
}

func process(ctx context.Context, t proto.Transform, inv *unswirl.Inverter, store *unswirl.Store, logger *zap.Logger) error {
	if *original != "" {
		img, err := imaging.Open(*original)
		if err != nil {
			return err
		}

		distorted, err := t.Apply(ctx, img)
		if err != nil {
			return err
		}

		if err := imaging.Save(distorted, *input); err != nil {
			return err
		}
		logger.With(zap.String("src", *original), zap.String("dst", *input)).Info("distorted")
	}

	src, err := imaging.Open(*input)
	if err != nil {
		return err
	}

	res, err := inv.Run(ctx, src)
	if res != nil {
		l := logger.With(zap.String("output", store.Path()), zap.Int("processed", res.Processed), zap.Int("total", res.Total))
		if len(res.Failures) > 0 {
			l.Warn(res.Summary(20))
		} else {
			l.Info(res.Summary(0))
		}
	}

	return err
}

func run(lc fx.Lifecycle, sd fx.Shutdowner, t proto.Transform, inv *unswirl.Inverter, store *unswirl.Store, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := process(ctx, t, inv, store, logger); err != nil {
					logger.With(zap.Error(err)).Error("unswirl failed")
					exitCode = 1
				}
				_ = sd.Shutdown()
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

func main() {
	flag.Parse()

	app := fx.New(
		fx.WithLogger(setup.FxLogger),
		fx.Provide(
			newLogger,
			newTransform,
			newStore,
			newInverter,
		),
		fx.Invoke(run),
	)
	app.Run()

	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	os.Exit(exitCode)
}

package main

import (
	"net/http"

	flag "github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"unswirl/internal/setup"
	"unswirl/pkg/operator/magick"
	"unswirl/pkg/operator/remote"
	"unswirl/pkg/proto"
)

var listen = flag.String("listen", ":9123", "listen addr")
var virtualOp = flag.String("virtual", "", "in-process operator instead of --binary")
var degrees = flag.Float64("degrees", 720, "degrees for the in-process swirl")
var binary = flag.String("binary", magick.DefaultBinary, "forward operator executable")
var args = flag.StringSlice("args", magick.DefaultArgs, "operator arguments between input and output path")
var timeout = flag.String("timeout", "1m", "per call operator timeout")
var tmpDir = flag.String("tmp", "", "scratch dir for the external operator")
var debug = flag.Bool("debug", false, "set debug")

func main() {
	flag.Parse()

	fx.New(
		fx.WithLogger(setup.FxLogger),
		fx.Provide(
			func() (*zap.Logger, *http.Server, error) {
				logger, err := setup.Logger(*debug)
				return logger, &http.Server{Addr: *listen}, err
			},
			func(logger *zap.Logger, lc fx.Lifecycle) (proto.Transform, error) {
				return setup.Operator{
					Virtual: *virtualOp,
					Degrees: *degrees,
					Binary:  *binary,
					Args:    *args,
					Timeout: *timeout,
					TmpDir:  *tmpDir,
				}.Build(logger, lc)
			},
		),
		fx.Invoke(
			remote.Serve,
		),
	).Run()
}

package magick

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"unswirl/pkg/proto"
)

const (
	DefaultBinary  = "convert"
	DefaultTimeout = time.Minute
)

// DefaultArgs reproduce the distortion the inputs were made with.
var DefaultArgs = []string{"-swirl", "720"}

func New(tmp *TmpFs, logger *zap.Logger, opts ...Option) *Magick {
	m := &Magick{
		tmpfs:   tmp,
		logger:  logger,
		binary:  DefaultBinary,
		args:    DefaultArgs,
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Magick runs `<binary> <src> <args...> <dst>` once per call.
type Magick struct {
	tmpfs   *TmpFs
	logger  *zap.Logger
	binary  string
	args    []string
	timeout time.Duration
}

func (m *Magick) Name() string {
	return strings.Join(append([]string{m.binary}, m.args...), " ")
}

func (m *Magick) Apply(ctx context.Context, src image.Image) (*image.NRGBA, error) {
	in := m.tmpfs.NewFile(".png")
	out := m.tmpfs.NewFile(".png")
	defer func() {
		_ = in.Free()
		_ = out.Free()
	}()

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return nil, fmt.Errorf("encode input failed: %w", err)
	}
	if err := in.Write(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("write input failed: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	args := append([]string{in.Filepath()}, m.args...)
	args = append(args, out.Filepath())

	cmd := exec.CommandContext(cctx, m.binary, args...)
	cmd.WaitDelay = time.Second

	start := time.Now()
	if bs, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		log := m.logger.With(zap.String("exec", cmd.String()), zap.Error(err))
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			log.Info("timeout")
			return nil, fmt.Errorf("%w: %s after %s", proto.ErrTransformTimeout, m.binary, m.timeout)
		}

		log.With(zap.ByteString("output", bs)).Info("failed")
		return nil, fmt.Errorf("%w: %s: %v", proto.ErrTransformUnavailable, m.binary, err)
	}

	m.logger.With(
		zap.String("src", in.Filepath()),
		zap.String("dst", out.Filepath()),
		zap.Duration("cost", time.Since(start)),
	).Debug("converted")

	bs, err := out.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", proto.ErrTransformOutputInvalid, err)
	}

	img, err := png.Decode(bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("%w: decode failed: %v", proto.ErrTransformOutputInvalid, err)
	}

	dst := imaging.Clone(img)
	if err := proto.CheckOutput(src, dst); err != nil {
		return nil, err
	}

	return dst, nil
}

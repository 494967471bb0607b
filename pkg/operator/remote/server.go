package remote

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"io"
	"net/http"
	"net/rpc"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"unswirl/pkg/proto"
)

// Serve exposes t on srv, both as net/rpc (Service.Apply) and as a plain
// HTTP endpoint taking and returning PNG bodies.
func Serve(t proto.Transform, srv *http.Server, logger *zap.Logger, lifecycle fx.Lifecycle) error {
	h, err := Handler(t, logger)
	if err != nil {
		return err
	}
	srv.Handler = h

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != http.ErrServerClosed {
					logger.With(zap.Error(err)).Fatal("listen failed")
				}
			}()
			logger.With(zap.String("addr", srv.Addr), zap.String("op", t.Name())).Info("serving")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})

	return nil
}

func Handler(t proto.Transform, logger *zap.Logger) (http.Handler, error) {
	svc := &Service{t: t, log: logger}

	server := rpc.NewServer()
	if err := server.Register(svc); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(rpc.DefaultRPCPath, server)
	mux.HandleFunc(ApplyPath, svc.handleApply)
	return mux, nil
}

type Service struct {
	t   proto.Transform
	log *zap.Logger
}

func (s *Service) Apply(req *ApplyRequest, resp *ApplyResponse) error {
	bs, err := s.apply(context.Background(), req.Image)
	if err != nil {
		return err
	}

	resp.Image = bs
	return nil
}

func (s *Service) apply(ctx context.Context, in []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(in))
	if err != nil {
		return nil, &badRequest{err}
	}

	dst, err := s.t.Apply(ctx, img)
	if err != nil {
		s.log.With(zap.Error(err)).Info("apply failed")
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Service) handleApply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	in, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := s.apply(r.Context(), in)
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(out)
}

type badRequest struct {
	err error
}

func (e *badRequest) Error() string {
	return proto.ErrTransformOutputInvalid.Error() + ": bad image: " + e.err.Error()
}

func (e *badRequest) Unwrap() error {
	return proto.ErrTransformOutputInvalid
}

func statusOf(err error) int {
	var br *badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest
	case errors.Is(err, proto.ErrTransformTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, proto.ErrTransformOutputInvalid):
		return http.StatusBadGateway
	}
	return http.StatusServiceUnavailable
}

// remoteError restores the taxonomy from an error message that crossed the wire.
// A server that gave up on the call counts as a timeout, not as a dead operator.
func remoteError(msg string) error {
	for _, m := range []struct {
		text   string
		target error
	}{
		{proto.ErrTransformTimeout.Error(), proto.ErrTransformTimeout},
		{proto.ErrTransformOutputInvalid.Error(), proto.ErrTransformOutputInvalid},
		{proto.ErrTransformUnavailable.Error(), proto.ErrTransformUnavailable},
		{context.DeadlineExceeded.Error(), proto.ErrTransformTimeout},
		{context.Canceled.Error(), proto.ErrTransformTimeout},
	} {
		if strings.Contains(msg, m.text) {
			return &wireError{target: m.target, msg: msg}
		}
	}
	return &wireError{target: proto.ErrTransformUnavailable, msg: msg}
}

type wireError struct {
	target error
	msg    string
}

func (e *wireError) Error() string {
	return "remote: " + e.msg
}

func (e *wireError) Unwrap() error {
	return e.target
}

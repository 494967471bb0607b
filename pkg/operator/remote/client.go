package remote

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/rpc"
	"time"

	"github.com/disintegration/imaging"

	"unswirl/pkg/proto"
)

// NewRPC dials a transform served by Serve. A positive timeout bounds every
// Apply call.
func NewRPC(addr string, timeout time.Duration) (*Client, error) {
	client, err := rpc.DialHTTP("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", proto.ErrTransformUnavailable, err)
	}

	return &Client{rpc: client, addr: addr, timeout: timeout}, nil
}

// Client calls a transform served by Serve over net/rpc.
type Client struct {
	rpc     *rpc.Client
	addr    string
	timeout time.Duration
}

func (c *Client) Name() string {
	return "rpc://" + c.addr
}

func (c *Client) Apply(ctx context.Context, src image.Image) (*image.NRGBA, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return nil, err
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// the reply of an abandoned call lands in the buffered channel and is dropped
	var resp ApplyResponse
	call := c.rpc.Go("Service.Apply", &ApplyRequest{Image: buf.Bytes()}, &resp, make(chan *rpc.Call, 1))

	select {
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: no reply from %s within %v", proto.ErrTransformTimeout, c.addr, c.timeout)
	case <-call.Done:
	}

	if call.Error != nil {
		if se, ok := call.Error.(rpc.ServerError); ok {
			return nil, remoteError(string(se))
		}
		return nil, fmt.Errorf("%w: %v", proto.ErrTransformUnavailable, call.Error)
	}

	return decode(src, resp.Image)
}

func (c *Client) Close() error {
	return c.rpc.Close()
}

func decode(src image.Image, bs []byte) (*image.NRGBA, error) {
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

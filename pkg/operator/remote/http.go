package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net"
	"time"

	"github.com/go-resty/resty/v2"

	"unswirl/pkg/proto"
)

func NewHTTP(baseURL string, timeout time.Duration) *HTTPClient {
	cli := resty.New().SetHostURL(baseURL)
	if timeout > 0 {
		cli.SetTimeout(timeout)
	}
	return &HTTPClient{cli: cli, base: baseURL}
}

// HTTPClient posts PNG images to the /apply endpoint of Serve.
type HTTPClient struct {
	cli  *resty.Client
	base string
}

func (c *HTTPClient) Name() string {
	return c.base
}

func (c *HTTPClient) Apply(ctx context.Context, src image.Image) (*image.NRGBA, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return nil, err
	}

	resp, err := c.cli.R().
		SetContext(ctx).
		SetHeader("Content-Type", "image/png").
		SetBody(buf.Bytes()).
		Post(ApplyPath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, fmt.Errorf("%w: %v", proto.ErrTransformTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", proto.ErrTransformUnavailable, err)
	}

	if resp.IsError() {
		return nil, remoteError(resp.String())
	}

	return decode(src, resp.Body())
}

package setup

import (
	"context"
	"image"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"unswirl/pkg/operator/remote"
	"unswirl/pkg/operator/virtual"
	"unswirl/pkg/proto"
)

func TestBuildVirtual(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	op, err := Operator{Virtual: "swirl", Degrees: 90}.Build(zap.NewNop(), lc)
	require.NoError(t, err)
	assert.Equal(t, "swirl-90", op.Name())
}

func TestBuildMagick(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	op, err := Operator{Binary: "magick", Args: []string{"-swirl", "360"}, TmpDir: t.TempDir()}.Build(zap.NewNop(), lc)
	require.NoError(t, err)
	assert.Equal(t, "magick -swirl 360", op.Name())
}

func TestBuildHTTPRemote(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	op, err := Operator{Remote: "http://127.0.0.1:9123"}.Build(zap.NewNop(), lc)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9123", op.Name())
}

func TestBuildRPCRemoteHonorsTimeout(t *testing.T) {
	slow := virtual.New("slow", func(img image.Image) *image.NRGBA {
		time.Sleep(time.Second)
		return imaging.Clone(img)
	}, zap.NewNop())
	h, err := remote.Handler(slow, zap.NewNop())
	require.NoError(t, err)
	ts := httptest.NewServer(h)
	defer ts.Close()

	lc := fxtest.NewLifecycle(t)
	op, err := Operator{Remote: strings.TrimPrefix(ts.URL, "http://"), Timeout: "100ms"}.Build(zap.NewNop(), lc)
	require.NoError(t, err)
	lc.RequireStart()
	defer lc.RequireStop()

	start := time.Now()
	_, err = op.Apply(context.Background(), image.NewNRGBA(image.Rect(0, 0, 2, 2)))
	assert.ErrorIs(t, err, proto.ErrTransformTimeout)
	assert.Less(t, time.Since(start), 800*time.Millisecond)
}

func TestBuildRejectsBadTimeout(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	_, err := Operator{Virtual: "identity", Timeout: "soon"}.Build(zap.NewNop(), lc)
	assert.Error(t, err)
}

func TestBuildCleansOwnScratch(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	op, err := Operator{}.Build(zap.NewNop(), lc)
	require.NoError(t, err)
	assert.Equal(t, "convert -swirl 720", op.Name())

	lc.RequireStart()
	require.NoError(t, lc.Stop(context.Background()))
}

func TestLogger(t *testing.T) {
	logger, err := Logger(false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = Logger(true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
}

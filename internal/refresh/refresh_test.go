package refresh

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hktft/internal/capture"
	"hktft/internal/config"
)

type fakeDrawer struct {
	bounds image.Rectangle
	err    error
	drawn  []image.Image
}

func (f *fakeDrawer) Bounds() image.Rectangle { return f.bounds }

func (f *fakeDrawer) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	if f.err != nil {
		return f.err
	}
	f.drawn = append(f.drawn, src)
	return nil
}

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestRefreshFromFile(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src.Set(1, 1, color.RGBA{G: 0xFF, A: 0xFF})
	path := writePNG(t, src)

	d := &fakeDrawer{bounds: image.Rect(0, 0, 8, 6)}
	l := NewLoader(d, config.SourceConfig{Path: path})

	img, _ := l.Last()
	assert.Nil(t, img)

	require.NoError(t, l.Refresh(context.Background()))
	require.Len(t, d.drawn, 1)
	got := d.drawn[0]
	assert.Equal(t, image.Rect(0, 0, 8, 6), got.Bounds())
	assert.Equal(t, color.RGBA{G: 0xFF, A: 0xFF}, got.At(1, 1))
	// Outside the source is black.
	assert.Equal(t, color.RGBA{A: 0xFF}, got.At(7, 5))

	last, at := l.Last()
	assert.Same(t, got, last)
	assert.False(t, at.IsZero())
	assert.NoError(t, l.LastError())
}

func TestRefreshPrefersURL(t *testing.T) {
	d := &fakeDrawer{bounds: image.Rect(0, 0, 480, 320)}
	l := NewLoader(d, config.SourceConfig{Path: "/nonexistent.png", URL: "http://dash/"})

	var got capture.CaptureOptions
	l.Screenshot = func(_ context.Context, o capture.CaptureOptions) (image.Image, error) {
		got = o
		return image.NewRGBA(image.Rect(0, 0, o.Width, o.Height)), nil
	}

	require.NoError(t, l.Refresh(context.Background()))
	assert.Equal(t, "http://dash/", got.URL)
	assert.Equal(t, 480, got.Width)
	assert.Equal(t, 320, got.Height)
	assert.Len(t, d.drawn, 1)
}

func TestRefreshErrors(t *testing.T) {
	d := &fakeDrawer{bounds: image.Rect(0, 0, 2, 2)}

	l := NewLoader(d, config.SourceConfig{})
	assert.ErrorIs(t, l.Refresh(context.Background()), ErrNoSource)
	assert.ErrorIs(t, l.LastError(), ErrNoSource)

	l = NewLoader(d, config.SourceConfig{Path: filepath.Join(t.TempDir(), "missing.png")})
	assert.ErrorIs(t, l.Refresh(context.Background()), os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o600))
	l = NewLoader(d, config.SourceConfig{Path: bad})
	assert.Error(t, l.Refresh(context.Background()))

	boom := errors.New("bus down")
	d.err = boom
	l = NewLoader(d, config.SourceConfig{Path: writePNG(t, image.NewRGBA(image.Rect(0, 0, 1, 1)))})
	assert.ErrorIs(t, l.Refresh(context.Background()), boom)
	img, _ := l.Last()
	assert.Nil(t, img)
}

func TestScheduler(t *testing.T) {
	_, err := NewScheduler(context.Background(), "not a schedule", nil)
	assert.Error(t, err)

	var runs atomic.Int32
	s, err := NewScheduler(context.Background(), "@every 1s", func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

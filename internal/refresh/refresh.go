// Package refresh loads frames from the configured source and draws them
// on the panel, on demand or on a cron schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG for image.Decode
	_ "image/png"
	"io"
	"os"
	"sync"
	"time"

	"hktft/internal/capture"
	"hktft/internal/config"
	"hktft/internal/convert"
	appLog "hktft/internal/log"
)

// Drawer is the part of display.Drawer the loader needs.
type Drawer interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// ErrNoSource is returned by Refresh when neither a path nor a URL is set.
var ErrNoSource = errors.New("refresh: no source configured")

// Loader draws frames and remembers the last one for previews.
type Loader struct {
	mu     sync.Mutex
	drawer Drawer
	source config.SourceConfig

	// Screenshot is swapped out in tests.
	Screenshot func(ctx context.Context, opts capture.CaptureOptions) (image.Image, error)

	last    *image.RGBA
	lastAt  time.Time
	lastErr error
}

// NewLoader returns a Loader drawing src on d.
func NewLoader(d Drawer, src config.SourceConfig) *Loader {
	return &Loader{
		drawer:     d,
		source:     src,
		Screenshot: capture.Screenshot,
	}
}

// Decode reads a PNG or JPEG image.
func Decode(r io.Reader) (image.Image, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("refresh: decode: %w", err)
	}
	appLog.Debug("decoded frame", "format", format, "bounds", img.Bounds())
	return img, nil
}

// Refresh loads the configured source and shows it. URL wins over Path.
func (l *Loader) Refresh(ctx context.Context) error {
	img, err := l.load(ctx)
	if err != nil {
		l.record(nil, err)
		return err
	}
	return l.Show(img)
}

func (l *Loader) load(ctx context.Context) (image.Image, error) {
	switch {
	case l.source.URL != "":
		b := l.drawer.Bounds()
		return l.Screenshot(ctx, capture.CaptureOptions{
			URL:    l.source.URL,
			Width:  b.Dx(),
			Height: b.Dy(),
		})
	case l.source.Path != "":
		f, err := os.Open(l.source.Path)
		if err != nil {
			return nil, fmt.Errorf("refresh: %w", err)
		}
		defer f.Close()
		return Decode(f)
	default:
		return nil, ErrNoSource
	}
}

// Show crops img to the panel and draws it.
func (l *Loader) Show(img image.Image) error {
	b := l.drawer.Bounds()
	frame := convert.Fit(img, b.Size())
	start := time.Now()
	if err := l.drawer.Draw(b, frame, image.Point{}); err != nil {
		l.record(nil, err)
		return fmt.Errorf("refresh: draw: %w", err)
	}
	appLog.Info("frame drawn", "bounds", b, "elapsed", time.Since(start))
	l.record(frame, nil)
	return nil
}

func (l *Loader) record(frame *image.RGBA, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastErr = err
	if frame != nil {
		l.last = frame
		l.lastAt = time.Now()
	}
}

// Last returns the last frame drawn successfully and when. img is nil
// before the first frame.
func (l *Loader) Last() (img image.Image, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.last == nil {
		return nil, time.Time{}
	}
	return l.last, l.lastAt
}

// LastError returns the error of the most recent attempt, or nil.
func (l *Loader) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

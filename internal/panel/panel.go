// Package panel drives the Hardkernel 3.5" TFT, an ILI9488 controller on
// an 8-bit parallel bus, as a periph.io display.Drawer.
package panel

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"sync"
	"time"

	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"

	"hktft/internal/convert"
	appLog "hktft/internal/log"
	"hktft/internal/sequence"
)

// Native geometry at rotation 0.
const (
	Width  = 320
	Height = 480
)

// Controller registers used outside the init sequence.
const (
	cmdCASET  = 0x2A
	cmdPASET  = 0x2B
	cmdRAMWR  = 0x2C
	cmdDISOFF = 0x28
	cmdMADCTL = 0x36
)

// MADCTL bits.
const (
	madctlMV  = 0x20
	madctlMX  = 0x40
	madctlMY  = 0x80
	madctlBGR = 0x08
)

// Line is a control output. periph.io gpio.PinOut satisfies it.
type Line interface {
	Out(l gpio.Level) error
}

// Opts configures the panel.
type Opts struct {
	// Rotate is the clockwise rotation in degrees: 0, 90, 180 or 270.
	Rotate int
	// BGR swaps the red and blue channels of the controller.
	BGR bool
	// Init overrides the default init sequence when non-nil.
	Init *sequence.Sequence
	// Sleeper is used for reset and init delays. Defaults to the wall clock.
	Sleeper sequence.Sleeper
}

// Dev is the panel handle. Its methods are safe for concurrent use.
type Dev struct {
	mu sync.Mutex

	w   io.Writer // parallel bus
	dc  Line
	rst Line // optional
	bl  Line // optional

	rotate  int
	bgr     bool
	init    sequence.Sequence
	sleeper sequence.Sleeper

	// Backlight polarity is fixed: high turns it on.
	polarity gpio.Level
	halted   bool
}

// New returns a Dev writing through w. dc is required; rst and bl may be nil.
func New(w io.Writer, dc, rst, bl Line, opts *Opts) (*Dev, error) {
	if w == nil {
		return nil, errors.New("panel: bus is required")
	}
	if dc == nil {
		return nil, errors.New("panel: missing dc line")
	}
	if opts == nil {
		opts = &Opts{}
	}
	if _, err := madctl(opts.Rotate, opts.BGR); err != nil {
		return nil, err
	}
	d := &Dev{
		w:        w,
		dc:       dc,
		rst:      rst,
		bl:       bl,
		rotate:   opts.Rotate,
		bgr:      opts.BGR,
		init:     sequence.HKTFT35(),
		sleeper:  opts.Sleeper,
		polarity: gpio.High,
	}
	if opts.Init != nil {
		d.init = *opts.Init
	}
	if d.sleeper == nil {
		d.sleeper = sequence.Wall
	}
	return d, nil
}

// Init resets the controller, plays the init sequence, applies the rotation
// and turns the backlight on.
func (d *Dev) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.reset(); err != nil {
		return err
	}
	appLog.Debug("panel init sequence", "steps", d.init.Len())
	if err := sequence.Run(d.init, regWriter{d}, d.sleeper); err != nil {
		return fmt.Errorf("panel: init sequence: %w", err)
	}
	if err := d.applyRotation(); err != nil {
		return err
	}
	d.halted = false
	return d.setBacklight(true)
}

// regWriter lets sequence.Run issue commands while d.mu is already held.
type regWriter struct{ d *Dev }

func (r regWriter) WriteReg(cmd byte, params ...byte) error {
	return r.d.writeReg(cmd, params...)
}

// WriteReg sends a command with DC low, then its parameters with DC high.
func (d *Dev) WriteReg(cmd byte, params ...byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeReg(cmd, params...)
}

func (d *Dev) writeReg(cmd byte, params ...byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return fmt.Errorf("panel: dc low: %w", err)
	}
	if _, err := d.w.Write([]byte{cmd}); err != nil {
		return err
	}
	if err := d.dc.Out(gpio.High); err != nil {
		return fmt.Errorf("panel: dc high: %w", err)
	}
	if len(params) == 0 {
		return nil
	}
	_, err := d.w.Write(params)
	return err
}

// Reset pulses the reset line low and waits for the controller to come back.
// It does nothing when no reset line is wired.
func (d *Dev) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reset()
}

func (d *Dev) reset() error {
	if d.rst == nil {
		return nil
	}
	if err := d.rst.Out(gpio.Low); err != nil {
		return fmt.Errorf("panel: reset low: %w", err)
	}
	d.sleeper.Sleep(20 * time.Microsecond)
	if err := d.rst.Out(gpio.High); err != nil {
		return fmt.Errorf("panel: reset high: %w", err)
	}
	d.sleeper.Sleep(120 * time.Millisecond)
	return nil
}

// SetAddrWindow selects the inclusive pixel window for the next memory write
// and starts it.
func (d *Dev) SetAddrWindow(xs, ys, xe, ye int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setAddrWindow(xs, ys, xe, ye)
}

func (d *Dev) setAddrWindow(xs, ys, xe, ye int) error {
	if err := d.writeReg(cmdCASET, byte(xs>>8), byte(xs), byte(xe>>8), byte(xe)); err != nil {
		return err
	}
	if err := d.writeReg(cmdPASET, byte(ys>>8), byte(ys), byte(ye>>8), byte(ye)); err != nil {
		return err
	}
	return d.writeReg(cmdRAMWR)
}

// madctl returns the memory access control value for a rotation.
func madctl(rotate int, bgr bool) (byte, error) {
	var v byte
	switch rotate {
	case 0:
		v = madctlMX
	case 90:
		v = madctlMV | madctlMX | madctlMY
	case 180:
		v = madctlMY
	case 270:
		v = madctlMV
	default:
		return 0, fmt.Errorf("panel: unsupported rotation %d", rotate)
	}
	if bgr {
		v |= madctlBGR
	}
	return v, nil
}

// SetRotation changes the clockwise rotation in degrees.
func (d *Dev) SetRotation(rotate int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := madctl(rotate, d.bgr); err != nil {
		return err
	}
	d.rotate = rotate
	return d.applyRotation()
}

func (d *Dev) applyRotation() error {
	v, err := madctl(d.rotate, d.bgr)
	if err != nil {
		return err
	}
	return d.writeReg(cmdMADCTL, v)
}

// SetBacklight switches the backlight. It does nothing when no backlight
// line is wired.
func (d *Dev) SetBacklight(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setBacklight(on)
}

func (d *Dev) setBacklight(on bool) error {
	if d.bl == nil {
		return nil
	}
	l := d.polarity
	if !on {
		l = !l
	}
	return d.bl.Out(l)
}

// Bounds returns the visible area for the current rotation.
func (d *Dev) Bounds() image.Rectangle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bounds()
}

func (d *Dev) bounds() image.Rectangle {
	if d.rotate == 90 || d.rotate == 270 {
		return image.Rect(0, 0, Height, Width)
	}
	return image.Rect(0, 0, Width, Height)
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return convert.RGB565Model
}

// Draw implements display.Drawer. Only the part of r inside the panel is
// sent; sp stays aligned with r.Min as given by the caller.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return errors.New("panel: halted")
	}

	orig := r
	r = r.Intersect(d.bounds())
	if r.Empty() {
		return nil
	}
	// Clipping the top-left corner moves the source origin with it.
	sp = sp.Add(r.Min.Sub(orig.Min))

	// Render into a buffer the size of r so the packer reads a plain RGBA.
	buf := image.NewRGBA(r)
	draw.Draw(buf, r, src, sp, draw.Src)
	pix, err := convert.PackRGB565(buf, r)
	if err != nil {
		return err
	}

	if err := d.setAddrWindow(r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1); err != nil {
		return err
	}
	if _, err := d.w.Write(pix); err != nil {
		return err
	}
	appLog.Debug("panel draw", "rect", r, "bytes", len(pix))
	return nil
}

// Halt turns the backlight off and the display off. Draw fails until Init
// is called again.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.halted = true
	err := d.setBacklight(false)
	return errors.Join(err, d.writeReg(cmdDISOFF))
}

func (d *Dev) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := d.bounds()
	return fmt.Sprintf("panel.Dev{ili9488, %dx%d, rot=%d}", b.Dx(), b.Dy(), d.rotate)
}

var _ display.Drawer = (*Dev)(nil)

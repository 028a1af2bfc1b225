// Package lines opens the panel's control lines: register select (DC),
// reset and backlight.
//
// A line is found either by periph.io pin name (e.g. "GPIO21") or by
// gpiochip and offset through the GPIO character device.
package lines

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// Consumer is the label attached to requested chardev lines.
const Consumer = "hktft"

// Line is an output line.
type Line interface {
	Out(l gpio.Level) error
	Close() error
}

// Spec locates a line. Name takes precedence over Chip/Offset. The zero
// Spec means "not connected".
type Spec struct {
	Name   string `yaml:"name,omitempty" json:"name,omitempty"`
	Chip   string `yaml:"chip,omitempty" json:"chip,omitempty"`
	Offset int    `yaml:"offset,omitempty" json:"offset,omitempty"`
}

// IsZero reports whether the spec names no line.
func (s Spec) IsZero() bool {
	return s.Name == "" && s.Chip == ""
}

func (s Spec) String() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Chip != "" {
		return fmt.Sprintf("%s:%d", s.Chip, s.Offset)
	}
	return "nc"
}

var ErrNotFound = errors.New("lines: pin not found")

// Open requests the line described by s, driven to initial. A zero spec
// returns (nil, nil).
func Open(s Spec, initial gpio.Level) (Line, error) {
	switch {
	case s.Name != "":
		p := gpioreg.ByName(s.Name)
		if p == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.Name)
		}
		if err := p.Out(initial); err != nil {
			return nil, fmt.Errorf("lines: %s: %w", s.Name, err)
		}
		return &pinLine{p: p}, nil
	case s.Chip != "":
		v := 0
		if initial {
			v = 1
		}
		l, err := gpiocdev.RequestLine(s.Chip, s.Offset,
			gpiocdev.AsOutput(v),
			gpiocdev.WithConsumer(Consumer))
		if err != nil {
			return nil, fmt.Errorf("lines: request %s: %w", s, err)
		}
		return &cdevLine{l: l}, nil
	default:
		return nil, nil
	}
}

// pinLine drives a periph.io pin.
type pinLine struct {
	p gpio.PinOut
}

func (l *pinLine) Out(v gpio.Level) error { return l.p.Out(v) }

func (l *pinLine) Close() error { return l.p.Halt() }

// cdevLine drives a line requested from /dev/gpiochipN.
type cdevLine struct {
	l *gpiocdev.Line
}

func (l *cdevLine) Out(v gpio.Level) error {
	if v {
		return l.l.SetValue(1)
	}
	return l.l.SetValue(0)
}

func (l *cdevLine) Close() error { return l.l.Close() }

// Nop is a line that is not wired anywhere. It is used by the dry-run
// backend.
type Nop struct{}

func (Nop) Out(gpio.Level) error { return nil }

func (Nop) Close() error { return nil }

// Set holds the panel's control lines. Reset and Backlight may be nil.
type Set struct {
	DC        Line
	Reset     Line
	Backlight Line
}

// Close releases every line in the set.
func (s *Set) Close() error {
	var errs []error
	for _, l := range []Line{s.DC, s.Reset, s.Backlight} {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenSet opens dc, reset and backlight. DC is required. Reset idles high
// and the backlight starts off. On error every line opened so far is
// closed.
func OpenSet(dc, reset, backlight Spec) (*Set, error) {
	if dc.IsZero() {
		return nil, errors.New("lines: dc line is required")
	}
	s := &Set{}
	var err error
	if s.DC, err = Open(dc, gpio.High); err != nil {
		return nil, err
	}
	if s.Reset, err = Open(reset, gpio.High); err != nil {
		_ = s.Close()
		return nil, err
	}
	if s.Backlight, err = Open(backlight, gpio.Low); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

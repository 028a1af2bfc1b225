// Package regwin maps the three GPIO data registers of the parallel panel
// bus into the process.
//
// A Window is acquired once when the display is attached and released once
// when it is detached. Mapping gives raw access to registers that are shared
// with unrelated GPIO functions, so callers must only ever read-modify-write
// them.
package regwin

import (
	"errors"
	"fmt"

	"hktft/internal/wiring"
)

// Handle is one mapped 32-bit register.
type Handle interface {
	Read() uint32
	Write(v uint32)
	Close() error
}

// Mapper turns a physical register address into a Handle.
type Mapper interface {
	Map(addr uint64) (Handle, error)
}

var (
	// ErrMisaligned is returned for register addresses that are not 32-bit aligned.
	ErrMisaligned = errors.New("regwin: address is not 32-bit aligned")
	// ErrNotPermitted is returned when an address lies outside the GPIO
	// register pages exported by the gpiomem device.
	ErrNotPermitted = errors.New("regwin: address outside permitted gpio regions")
)

// MapError reports that one of the registers could not be mapped. The whole
// window is unusable when it happens.
type MapError struct {
	Index int
	Addr  uint64
	Err   error
}

func (e *MapError) Error() string {
	return fmt.Sprintf("regwin: map register %d at 0x%08x: %v", e.Index, e.Addr, e.Err)
}

func (e *MapError) Unwrap() error { return e.Err }

// Window holds the three mapped registers.
type Window struct {
	addrs [wiring.NumRegisters]uint64
	regs  [wiring.NumRegisters]Handle
	ok    bool
}

// Acquire maps addrs through m. If any mapping fails the registers mapped so
// far are released, a *MapError is returned and the returned Window reports
// itself unavailable.
func Acquire(m Mapper, addrs [wiring.NumRegisters]uint64) (*Window, error) {
	w := &Window{addrs: addrs}
	for i, addr := range addrs {
		if addr%4 != 0 {
			w.closeAll()
			return w, &MapError{Index: i, Addr: addr, Err: ErrMisaligned}
		}
		h, err := m.Map(addr)
		if err != nil {
			w.closeAll()
			return w, &MapError{Index: i, Addr: addr, Err: err}
		}
		w.regs[i] = h
	}
	w.ok = true
	return w, nil
}

// Available reports whether all three registers are mapped. It is safe to
// call on a nil Window.
func (w *Window) Available() bool {
	return w != nil && w.ok
}

// Addr returns the physical address of register i.
func (w *Window) Addr(i int) uint64 {
	return w.addrs[i]
}

// Read returns the current value of register i. The window must be available.
func (w *Window) Read(i int) uint32 {
	return w.regs[i].Read()
}

// Write stores v into register i. The window must be available.
func (w *Window) Write(i int, v uint32) {
	w.regs[i].Write(v)
}

// Release unmaps the registers. It is idempotent.
func (w *Window) Release() error {
	if w == nil {
		return nil
	}
	w.ok = false
	return w.closeAll()
}

func (w *Window) closeAll() error {
	var errs []error
	for i, h := range w.regs {
		if h == nil {
			continue
		}
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("regwin: unmap register %d: %w", i, err))
		}
		w.regs[i] = nil
	}
	return errors.Join(errs...)
}

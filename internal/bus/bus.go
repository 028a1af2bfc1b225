// Package bus bit-bangs an 8-bit write-only parallel bus over GPIO data
// registers.
//
// Each byte is presented on the data lines and latched by a low pulse on
// the /WR strobe. The data lines and the strobe share their registers with
// unrelated GPIO pins, so every update is a read-modify-write of a snapshot
// and only the bits named in the wiring table ever change.
package bus

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"hktft/internal/bits"
	"hktft/internal/wiring"
)

// ErrUnavailable is returned when the registers were never mapped or have
// been released. It is terminal for the call.
var ErrUnavailable = errors.New("bus: gpio registers unavailable")

// Registers is the register window the bus drives.
type Registers interface {
	Available() bool
	Read(i int) uint32
	Write(i int, v uint32)
}

// Bus transmits bytes. It is safe for concurrent use; a mutex serializes
// whole transmissions so read-modify-write cycles never interleave.
type Bus struct {
	mu    sync.Mutex
	regs  Registers
	table wiring.Table
	masks [wiring.NumRegisters]uint32
	sent  atomic.Uint64
}

// New returns a Bus over regs. regs may be unavailable (a *regwin.Window
// whose Acquire failed, or a nil one), in which case every transmission
// fails with ErrUnavailable.
func New(regs Registers, table wiring.Table) (*Bus, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &Bus{regs: regs, table: table, masks: table.Masks()}, nil
}

// Available reports whether the registers are mapped.
func (b *Bus) Available() bool {
	return b.regs != nil && b.regs.Available()
}

// Sent returns the number of bytes transmitted so far.
func (b *Bus) Sent() uint64 {
	return b.sent.Load()
}

// SendByte transmits one byte.
func (b *Bus) SendByte(v byte) error {
	_, err := b.Write([]byte{v})
	return err
}

// Write transmits p in order. The registers are read once per call and the
// snapshot is carried from byte to byte, so four register writes are issued
// per byte and nothing is read back in between.
func (b *Bus) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.Available() {
		return 0, ErrUnavailable
	}

	var snap [wiring.NumRegisters]uint32
	for i := range snap {
		snap[i] = b.regs.Read(i)
	}

	strobe := b.table.Strobe
	for _, v := range p {
		for i, pin := range b.table.Data {
			snap[pin.Reg] = bits.Set(snap[pin.Reg], pin.Bit, v&(1<<i) != 0)
		}

		// /WR low, then present data and strobe together.
		snap[strobe.Reg] = bits.Set(snap[strobe.Reg], strobe.Bit, false)
		for i := range snap {
			b.regs.Write(i, snap[i])
		}

		// /WR high latches the byte.
		snap[strobe.Reg] = bits.Set(snap[strobe.Reg], strobe.Bit, true)
		b.regs.Write(strobe.Reg, snap[strobe.Reg])
	}
	b.sent.Add(uint64(len(p)))
	return len(p), nil
}

func (b *Bus) String() string {
	return fmt.Sprintf("bus.Bus{available=%t, strobe=%s, masks=0x%08x/0x%08x/0x%08x}",
		b.Available(), b.table.Strobe, b.masks[0], b.masks[1], b.masks[2])
}

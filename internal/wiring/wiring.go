// Package wiring describes how the eight data lines and the write strobe of
// the parallel panel bus are routed onto the three GPIO data registers.
//
// The routing is a property of the PCB, not of the bus protocol, so it is
// kept as data and can be replaced per board from the config file.
package wiring

import (
	"errors"
	"fmt"
)

// NumRegisters is the number of GPIO data registers the bus is spread over.
const NumRegisters = 3

// DataBits is the width of the bus.
const DataBits = 8

// Pin locates one bus line: a register index (0..2) and a bit within it.
type Pin struct {
	Reg int  `yaml:"reg" json:"reg"`
	Bit uint `yaml:"bit" json:"bit"`
}

func (p Pin) String() string {
	return fmt.Sprintf("r%d.%d", p.Reg, p.Bit)
}

// Table is the bit assignment of one board.
type Table struct {
	// Data[i] is where bit i (LSB first) of each transmitted byte goes.
	Data []Pin `yaml:"data" json:"data"`
	// Strobe is the active-low /WR line.
	Strobe Pin `yaml:"strobe" json:"strobe"`
}

// Register addresses of the ODROID-XU3/XU4 (Exynos 5422) GPIO data
// registers used by the Hardkernel 3.5" TFT shield.
const (
	OdroidGPX1 uint64 = 0x13400C24
	OdroidGPX2 uint64 = 0x13400C44
	OdroidGPA2 uint64 = 0x14010044
)

// OdroidAddresses returns the physical addresses of registers 0, 1 and 2 for
// the ODROID-XU3/XU4 table.
func OdroidAddresses() [NumRegisters]uint64 {
	return [NumRegisters]uint64{OdroidGPX1, OdroidGPX2, OdroidGPA2}
}

// OdroidXU4 returns the wiring of the Hardkernel 3.5" TFT on an ODROID-XU4.
// Register 0 is GPX1, 1 is GPX2 and 2 is GPA2.
func OdroidXU4() Table {
	return Table{
		Data: []Pin{
			{Reg: 0, Bit: 7}, // DB0 GPX1.7
			{Reg: 1, Bit: 0}, // DB1 GPX2.0
			{Reg: 0, Bit: 3}, // DB2 GPX1.3
			{Reg: 2, Bit: 4}, // DB3 GPA2.4
			{Reg: 2, Bit: 6}, // DB4 GPA2.6
			{Reg: 2, Bit: 7}, // DB5 GPA2.7
			{Reg: 0, Bit: 6}, // DB6 GPX1.6
			{Reg: 0, Bit: 5}, // DB7 GPX1.5
		},
		Strobe: Pin{Reg: 2, Bit: 5}, // /WR GPA2.5
	}
}

var (
	ErrDataWidth = errors.New("wiring: table must have exactly 8 data pins")
	ErrOverlap   = errors.New("wiring: pins overlap")
)

// Validate checks that every pin is addressable and that no two lines
// share a register bit.
func (t Table) Validate() error {
	if len(t.Data) != DataBits {
		return fmt.Errorf("%w (got %d)", ErrDataWidth, len(t.Data))
	}
	seen := make(map[Pin]string, DataBits+1)
	check := func(p Pin, what string) error {
		if p.Reg < 0 || p.Reg >= NumRegisters {
			return fmt.Errorf("wiring: %s register %d out of range 0..%d", what, p.Reg, NumRegisters-1)
		}
		if p.Bit > 31 {
			return fmt.Errorf("wiring: %s bit %d out of range 0..31", what, p.Bit)
		}
		if prev, ok := seen[p]; ok {
			return fmt.Errorf("%w: %s and %s both use %s", ErrOverlap, prev, what, p)
		}
		seen[p] = what
		return nil
	}
	for i, p := range t.Data {
		if err := check(p, fmt.Sprintf("db%d", i)); err != nil {
			return err
		}
	}
	return check(t.Strobe, "strobe")
}

// Masks returns, per register, the bits owned by the bus. Everything outside
// these masks belongs to unrelated GPIO functions.
func (t Table) Masks() [NumRegisters]uint32 {
	var m [NumRegisters]uint32
	for _, p := range t.Data {
		m[p.Reg] |= 1 << p.Bit
	}
	m[t.Strobe.Reg] |= 1 << t.Strobe.Bit
	return m
}

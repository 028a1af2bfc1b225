// Package bits composes single-bit updates of 32-bit register values.
package bits

// Set returns v with bit replaced by on. The other 31 bits are untouched.
// bit must be in 0..31.
func Set(v uint32, bit uint, on bool) uint32 {
	mask := uint32(1) << bit
	v &^= mask
	if on {
		v |= mask
	}
	return v
}

// Get reports whether bit is set in v.
func Get(v uint32, bit uint) bool {
	return v&(uint32(1)<<bit) != 0
}

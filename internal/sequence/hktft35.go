package sequence

// hktft35Raw brings up the ILI9488 on the Hardkernel 3.5" TFT.
var hktft35Raw = []int16{
	-1, 0xB0, 0x00,
	-1, 0x11,
	-2, 120,
	-1, 0x3A, 0x55,
	-1, 0xC2, 0x33,
	-1, 0xC5, 0x00, 0x1E, 0x80,
	-1, 0x36, 0x28,
	-1, 0xB1, 0xB0,
	-1, 0xE0, 0x00, 0x04, 0x0E, 0x08, 0x17, 0x0A, 0x40, 0x79, 0x4D, 0x07, 0x0E, 0x0A, 0x1A, 0x1D, 0x0F,
	-1, 0xE1, 0x00, 0x1B, 0x1F, 0x02, 0x10, 0x05, 0x32, 0x34, 0x43, 0x02, 0x0A, 0x09, 0x33, 0x37, 0x0F,
	-1, 0x11,
	-1, 0x29,
	-3,
}

// HKTFT35 returns the default init sequence of the Hardkernel 3.5" TFT.
func HKTFT35() Sequence {
	q, err := Parse(hktft35Raw)
	if err != nil {
		panic(err)
	}
	return q
}

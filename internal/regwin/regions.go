package regwin

import "os"

// Regions lists the physical pages the gpiomem device lets userspace map.
type Regions []uint64

// ExynosGPIORegions returns the GPIO controller pages of the Exynos 5422.
func ExynosGPIORegions() Regions {
	return Regions{
		0x13400000,
		0x13410000,
		0x14000000,
		0x14010000,
		0x03860000,
	}
}

// Allowed reports whether the page holding addr is one of r.
func (r Regions) Allowed(addr uint64) bool {
	page, _ := pageOf(addr)
	for _, base := range r {
		if base&^uint64(os.Getpagesize()-1) == page {
			return true
		}
	}
	return false
}

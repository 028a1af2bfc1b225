package regwin

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultGPIOMemPath is the character device exported by the gpiomem driver.
const DefaultGPIOMemPath = "/dev/gpiomem"

// GPIOMem maps registers through the gpiomem character device, which maps
// whole GPIO register pages without requiring access to /dev/mem.
type GPIOMem struct {
	// Path defaults to DefaultGPIOMemPath.
	Path string
	// Regions restricts which pages may be requested. Empty means the check
	// is left to the kernel driver.
	Regions Regions
}

func (g GPIOMem) Map(addr uint64) (Handle, error) {
	if len(g.Regions) > 0 && !g.Regions.Allowed(addr) {
		return nil, ErrNotPermitted
	}
	path := g.Path
	if path == "" {
		path = DefaultGPIOMemPath
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	// The mapping outlives the descriptor.
	defer f.Close()

	page, word := pageOf(addr)
	b, err := unix.Mmap(int(f.Fd()), int64(page), os.Getpagesize(),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s at 0x%08x: %w", path, page, err)
	}
	words := unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
	return &mmioReg{
		word:  &words[word],
		unmap: func() error { return unix.Munmap(b) },
	}, nil
}

package regwin

import (
	"fmt"
	"os"

	"periph.io/x/host/v3/pmem"
)

// DevMem maps registers through /dev/mem using periph.io's pmem package.
// It needs root.
type DevMem struct{}

func (DevMem) Map(addr uint64) (Handle, error) {
	page, word := pageOf(addr)
	v, err := pmem.Map(page, os.Getpagesize())
	if err != nil {
		return nil, fmt.Errorf("pmem map 0x%08x: %w", page, err)
	}
	words := v.Uint32()
	return &mmioReg{word: &words[word], unmap: v.Close}, nil
}

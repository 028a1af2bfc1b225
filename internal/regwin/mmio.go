package regwin

import (
	"os"
	"sync/atomic"
)

// mmioReg is a register inside a mapped page. Accesses are single 32-bit
// loads and stores.
type mmioReg struct {
	word  *uint32
	unmap func() error
}

func (r *mmioReg) Read() uint32 {
	return atomic.LoadUint32(r.word)
}

func (r *mmioReg) Write(v uint32) {
	atomic.StoreUint32(r.word, v)
}

func (r *mmioReg) Close() error {
	if r.unmap == nil {
		return nil
	}
	err := r.unmap()
	r.unmap = nil
	return err
}

// pageOf splits addr into its page base and the word index inside the page.
func pageOf(addr uint64) (page uint64, word int) {
	size := uint64(os.Getpagesize())
	page = addr &^ (size - 1)
	return page, int((addr - page) / 4)
}

package regwin

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hktft/internal/wiring"
)

func TestAcquireAndRelease(t *testing.T) {
	addrs := wiring.OdroidAddresses()
	mem := NewMemory(map[uint64]uint32{addrs[1]: 0xDEADBEEF})

	w, err := Acquire(mem, addrs)
	require.NoError(t, err)
	require.True(t, w.Available())

	assert.Equal(t, uint32(0xDEADBEEF), w.Read(1))
	w.Write(2, 0x20)
	assert.Equal(t, uint32(0x20), mem.Value(addrs[2]))
	assert.Equal(t, addrs[0], w.Addr(0))
	for _, a := range addrs {
		assert.Equal(t, 1, mem.Mapped(a))
	}

	require.NoError(t, w.Release())
	assert.False(t, w.Available())
	for _, a := range addrs {
		assert.Equal(t, 0, mem.Mapped(a))
	}
	// Second release is a no-op.
	require.NoError(t, w.Release())
}

func TestAcquireFailureReleasesEverything(t *testing.T) {
	addrs := wiring.OdroidAddresses()
	cause := errors.New("no such page")
	mem := NewMemory(nil)
	mem.Fail = map[uint64]error{addrs[1]: cause}

	w, err := Acquire(mem, addrs)
	require.Error(t, err)

	var me *MapError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, 1, me.Index)
	assert.Equal(t, addrs[1], me.Addr)
	assert.ErrorIs(t, err, cause)

	require.NotNil(t, w)
	assert.False(t, w.Available())
	assert.Equal(t, 0, mem.Mapped(addrs[0]))
	assert.Empty(t, mem.Accesses())
}

func TestAcquireMisaligned(t *testing.T) {
	mem := NewMemory(nil)
	w, err := Acquire(mem, [3]uint64{0x1000, 0x1002, 0x1008})
	assert.ErrorIs(t, err, ErrMisaligned)
	assert.False(t, w.Available())
	assert.Equal(t, 0, mem.Mapped(0x1000))
}

func TestNilWindowIsUnavailable(t *testing.T) {
	var w *Window
	assert.False(t, w.Available())
	assert.NoError(t, w.Release())
}

func TestRegionsAllowed(t *testing.T) {
	r := ExynosGPIORegions()
	for _, a := range wiring.OdroidAddresses() {
		assert.True(t, r.Allowed(a), "0x%08x", a)
	}
	assert.False(t, r.Allowed(0x10000000))
	assert.False(t, Regions{}.Allowed(0x13400C24))
}

func TestPageOf(t *testing.T) {
	size := uint64(os.Getpagesize())
	page, word := pageOf(0x13400000 + size + 8)
	assert.Equal(t, uint64(0x13400000)+size, page)
	assert.Equal(t, 2, word)
}

func TestMemoryNoLog(t *testing.T) {
	addrs := wiring.OdroidAddresses()
	mem := NewMemory(nil)
	mem.NoLog = true

	w, err := Acquire(mem, addrs)
	require.NoError(t, err)
	w.Write(0, 0x80)
	assert.Equal(t, uint32(0x80), w.Read(0))
	assert.Empty(t, mem.Accesses())
}

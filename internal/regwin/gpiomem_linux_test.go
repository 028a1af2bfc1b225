package regwin

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGPIOMemRejectsForeignPage(t *testing.T) {
	g := GPIOMem{
		Path:    filepath.Join(t.TempDir(), "gpiomem"),
		Regions: ExynosGPIORegions(),
	}
	_, err := g.Map(0x10000000)
	assert.ErrorIs(t, err, ErrNotPermitted)
}

func TestGPIOMemMissingDevice(t *testing.T) {
	g := GPIOMem{
		Path:    filepath.Join(t.TempDir(), "gpiomem"),
		Regions: ExynosGPIORegions(),
	}
	_, err := g.Map(0x13400C24)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotPermitted)
}

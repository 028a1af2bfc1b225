package lines

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpiosim"
	"periph.io/x/conn/v3/gpio"
)

func TestZeroSpec(t *testing.T) {
	var s Spec
	assert.True(t, s.IsZero())
	assert.Equal(t, "nc", s.String())

	l, err := Open(s, gpio.High)
	assert.NoError(t, err)
	assert.Nil(t, l)
}

func TestSpecString(t *testing.T) {
	assert.Equal(t, "GPIO21", Spec{Name: "GPIO21"}.String())
	assert.Equal(t, "gpiochip0:18", Spec{Chip: "gpiochip0", Offset: 18}.String())
}

func TestUnknownPinName(t *testing.T) {
	_, err := Open(Spec{Name: "NO_SUCH_PIN_XYZ"}, gpio.Low)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenSetRequiresDC(t *testing.T) {
	_, err := OpenSet(Spec{}, Spec{}, Spec{})
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	var l Line = Nop{}
	assert.NoError(t, l.Out(gpio.High))
	assert.NoError(t, l.Close())
}

func newSim(t *testing.T) *gpiosim.Simpleton {
	t.Helper()
	s, err := gpiosim.NewSimpleton(4)
	if err != nil {
		t.Skipf("gpio-sim unavailable: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestChardevLine(t *testing.T) {
	s := newSim(t)

	l, err := Open(Spec{Chip: s.ChipName(), Offset: 2}, gpio.High)
	require.NoError(t, err)
	defer l.Close()

	v, err := s.Level(2)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, l.Out(gpio.Low))
	v, err = s.Level(2)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestOpenSetChardev(t *testing.T) {
	s := newSim(t)
	chip := s.ChipName()

	set, err := OpenSet(
		Spec{Chip: chip, Offset: 0},
		Spec{Chip: chip, Offset: 1},
		Spec{Chip: chip, Offset: 3},
	)
	require.NoError(t, err)

	dc, _ := s.Level(0)
	rst, _ := s.Level(1)
	bl, _ := s.Level(3)
	assert.Equal(t, 1, dc)
	assert.Equal(t, 1, rst)
	assert.Equal(t, 0, bl)

	require.NoError(t, set.Close())
}

func TestOpenSetOptionalLines(t *testing.T) {
	s := newSim(t)

	set, err := OpenSet(Spec{Chip: s.ChipName(), Offset: 0}, Spec{}, Spec{})
	require.NoError(t, err)
	assert.NotNil(t, set.DC)
	assert.Nil(t, set.Reset)
	assert.Nil(t, set.Backlight)
	require.NoError(t, set.Close())
}

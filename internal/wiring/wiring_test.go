package wiring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestOdroidXU4IsValid(t *testing.T) {
	require.NoError(t, OdroidXU4().Validate())
}

func TestOdroidMasks(t *testing.T) {
	m := OdroidXU4().Masks()
	assert.Equal(t, uint32(1<<7|1<<6|1<<5|1<<3), m[0])
	assert.Equal(t, uint32(1<<0), m[1])
	assert.Equal(t, uint32(1<<7|1<<6|1<<5|1<<4), m[2])
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Table)
		is     error
	}{
		{"short", func(t *Table) { t.Data = t.Data[:7] }, ErrDataWidth},
		{"duplicate data", func(t *Table) { t.Data[1] = t.Data[0] }, ErrOverlap},
		{"strobe on data", func(t *Table) { t.Strobe = t.Data[3] }, ErrOverlap},
		{"register range", func(t *Table) { t.Data[2].Reg = 3 }, nil},
		{"negative register", func(t *Table) { t.Strobe.Reg = -1 }, nil},
		{"bit range", func(t *Table) { t.Data[4].Bit = 32 }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := OdroidXU4()
			tt.mutate(&tbl)
			err := tbl.Validate()
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestTableFromYAML(t *testing.T) {
	src := `
data:
  - {reg: 0, bit: 0}
  - {reg: 0, bit: 1}
  - {reg: 0, bit: 2}
  - {reg: 0, bit: 3}
  - {reg: 1, bit: 0}
  - {reg: 1, bit: 1}
  - {reg: 1, bit: 2}
  - {reg: 1, bit: 3}
strobe: {reg: 2, bit: 31}
`
	var tbl Table
	require.NoError(t, yaml.Unmarshal([]byte(src), &tbl))
	require.NoError(t, tbl.Validate())
	assert.Equal(t, Pin{Reg: 1, Bit: 3}, tbl.Data[7])
	assert.Equal(t, Pin{Reg: 2, Bit: 31}, tbl.Strobe)
}

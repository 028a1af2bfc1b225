package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hktft/internal/lines"
	"hktft/internal/sequence"
	"hktft/internal/wiring"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendGPIOMem, cfg.Registers.Backend)
	assert.Equal(t, wiring.OdroidXU4(), cfg.Wiring)

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Registers, again.Registers)
	assert.Equal(t, cfg.Wiring, again.Wiring)
	assert.Equal(t, cfg.Lines, again.Lines)
	assert.Equal(t, cfg.Panel, again.Panel)
	assert.Equal(t, cfg.Source, again.Source)
	assert.Equal(t, cfg.Listen, again.Listen)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
lines:
  dc: {chip: gpiochip0, offset: 21}
  backlight: {name: GPIO18}
panel:
  rotate: 90
  init:
    - cmd: [0x01]
    - delay_ms: 120
    - cmd: [0x29]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, BackendGPIOMem, cfg.Registers.Backend)
	assert.Equal(t, wiring.OdroidAddresses(), cfg.RegisterAddresses())
	assert.NotEmpty(t, cfg.Registers.Regions)
	assert.Equal(t, lines.Spec{Chip: "gpiochip0", Offset: 21}, cfg.Lines.DC)
	assert.Equal(t, "GPIO18", cfg.Lines.Backlight.Name)
	assert.True(t, cfg.Lines.Reset.IsZero())
	require.NoError(t, cfg.Validate())

	q, err := cfg.InitSequence()
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, 3, q.Len())
}

func TestPartialWiringIsKeptAndRejected(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"strobe only", "wiring:\n  strobe: {reg: 2, bit: 5}\n"},
		{"strobe at zero pin", "wiring:\n  strobe: {reg: 0, bit: 0}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml+"lines:\n  dc: {name: GPIO21}\n"), 0o600))

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Empty(t, cfg.Wiring.Data)
			assert.ErrorIs(t, cfg.Validate(), wiring.ErrDataWidth)
		})
	}
}

func TestAbsentWiringGetsBoardDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("panel:\n  rotate: 180\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, wiring.OdroidXU4(), cfg.Wiring)
}

func TestCustomAddressesKeepRegionsEmpty(t *testing.T) {
	cfg := &Config{Registers: RegistersConfig{Addresses: []uint64{0x1000, 0x2000, 0x3000}}}
	cfg.Normalize()
	assert.Nil(t, cfg.Registers.Regions)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.Lines.DC = lines.Spec{Name: "GPIO21"}
		return c
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"backend", func(c *Config) { c.Registers.Backend = "spi" }},
		{"addresses", func(c *Config) { c.Registers.Addresses = c.Registers.Addresses[:2] }},
		{"wiring", func(c *Config) { c.Wiring.Strobe = c.Wiring.Data[0] }},
		{"dc", func(c *Config) { c.Lines.DC = lines.Spec{} }},
		{"rotate", func(c *Config) { c.Panel.Rotate = 45 }},
		{"init", func(c *Config) { c.Panel.Init = []sequence.Record{{Cmd: []int{0x100}}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestDryRunNeedsNoDC(t *testing.T) {
	c := DefaultConfig()
	c.Registers.Backend = BackendDryRun
	assert.NoError(t, c.Validate())
}

func TestSaveRoundTripsBasicAuth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	c := DefaultConfig()
	c.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "secret"}
	c.RefreshCron = "*/5 * * * *"
	require.NoError(t, c.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, got.BasicAuth)
	assert.Equal(t, "admin", got.BasicAuth.Username)
	assert.Equal(t, "*/5 * * * *", got.RefreshCron)
}

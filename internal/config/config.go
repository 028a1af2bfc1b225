package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"hktft/internal/lines"
	"hktft/internal/regwin"
	"hktft/internal/sequence"
	"hktft/internal/wiring"
)

// NOTE: This file provides the configuration model and YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// Register backends.
const (
	BackendGPIOMem = "gpiomem" // /dev/gpiomem, no root needed
	BackendDevMem  = "devmem"  // /dev/mem through periph.io pmem
	BackendDryRun  = "dryrun"  // in-process registers, no hardware
)

// RegistersConfig selects how the three GPIO data registers are mapped.
type RegistersConfig struct {
	// Backend is one of "gpiomem", "devmem" or "dryrun".
	Backend string `yaml:"backend" json:"backend"`
	// Device is the gpiomem character device.
	Device string `yaml:"device" json:"device"`
	// Addresses are the physical addresses of registers 0, 1 and 2.
	Addresses []uint64 `yaml:"addresses" json:"addresses"`
	// Regions are the register pages gpiomem exports. Empty disables the
	// userspace check.
	Regions []uint64 `yaml:"regions" json:"regions"`
}

// LinesConfig locates the control lines. Reset and backlight are optional.
type LinesConfig struct {
	DC        lines.Spec `yaml:"dc" json:"dc"`
	Reset     lines.Spec `yaml:"reset" json:"reset"`
	Backlight lines.Spec `yaml:"backlight" json:"backlight"`
}

// PanelConfig holds display options.
type PanelConfig struct {
	// Rotate is 0, 90, 180 or 270 degrees clockwise.
	Rotate int `yaml:"rotate" json:"rotate"`
	// BGR selects blue-green-red subpixel order.
	BGR bool `yaml:"bgr" json:"bgr"`
	// Init overrides the built-in init sequence when not empty.
	Init []sequence.Record `yaml:"init,omitempty" json:"init,omitempty"`
}

// SourceConfig describes what the refresh job draws. URL wins over Path.
type SourceConfig struct {
	// Path is a PNG or JPEG file.
	Path string `yaml:"path" json:"path"`
	// URL is captured with headless Chromium at panel resolution.
	URL string `yaml:"url" json:"url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the control API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address of the control API. Empty disables it.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Registers RegistersConfig `yaml:"registers" json:"registers"`

	// Wiring is the bit assignment of the board.
	Wiring wiring.Table `yaml:"wiring" json:"wiring"`

	Lines LinesConfig `yaml:"lines" json:"lines"`

	Panel PanelConfig `yaml:"panel" json:"panel"`

	Source SourceConfig `yaml:"source" json:"source"`

	// RefreshCron is a cron-style schedule string (e.g. "*/5 * * * *")
	// for redrawing the source. Empty disables periodic refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// wiringSet is true when the loaded file has a wiring key.
	wiringSet bool
}

// DefaultConfig returns an in-memory default configuration for the
// Hardkernel 3.5" TFT on an ODROID-XU4.
func DefaultConfig() *Config {
	addrs := wiring.OdroidAddresses()
	return &Config{
		Listen:   "127.0.0.1:8035",
		LogLevel: "info",
		Registers: RegistersConfig{
			Backend:   BackendGPIOMem,
			Device:    regwin.DefaultGPIOMemPath,
			Addresses: addrs[:],
			Regions:   regwin.ExynosGPIORegions(),
		},
		Wiring: wiring.OdroidXU4(),
		Panel: PanelConfig{
			Rotate: 0,
		},
		Source: SourceConfig{
			Path: "/var/lib/hktft/frame.png",
		},
		RefreshCron: "",
		BasicAuth:   nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	switch c.Registers.Backend {
	case BackendGPIOMem, BackendDevMem, BackendDryRun:
		// ok
	case "":
		c.Registers.Backend = def.Registers.Backend
	}
	if c.Registers.Device == "" {
		c.Registers.Device = def.Registers.Device
	}
	if len(c.Registers.Addresses) == 0 {
		c.Registers.Addresses = def.Registers.Addresses
	}
	// Regions are only defaulted together with the addresses; a board with
	// its own addresses must list its own pages.
	if c.Registers.Regions == nil && sameAddresses(c.Registers.Addresses, def.Registers.Addresses) {
		c.Registers.Regions = def.Registers.Regions
	}
	// The board default only replaces an absent table. A partial one is
	// kept as written and rejected by Validate.
	if !c.wiringSet && len(c.Wiring.Data) == 0 && c.Wiring.Strobe == (wiring.Pin{}) {
		c.Wiring = def.Wiring
	}
}

func sameAddresses(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Validate reports configuration errors that would make the display
// unusable.
func (c *Config) Validate() error {
	var errs []error
	switch c.Registers.Backend {
	case BackendGPIOMem, BackendDevMem, BackendDryRun:
	default:
		errs = append(errs, fmt.Errorf("config: unknown registers.backend %q", c.Registers.Backend))
	}
	if len(c.Registers.Addresses) != wiring.NumRegisters {
		errs = append(errs, fmt.Errorf("config: registers.addresses needs %d entries, got %d",
			wiring.NumRegisters, len(c.Registers.Addresses)))
	}
	if err := c.Wiring.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if c.Lines.DC.IsZero() && c.Registers.Backend != BackendDryRun {
		errs = append(errs, errors.New("config: lines.dc is required"))
	}
	switch c.Panel.Rotate {
	case 0, 90, 180, 270:
	default:
		errs = append(errs, fmt.Errorf("config: panel.rotate must be 0, 90, 180 or 270, got %d", c.Panel.Rotate))
	}
	if len(c.Panel.Init) > 0 {
		if _, err := sequence.FromRecords(c.Panel.Init); err != nil {
			errs = append(errs, fmt.Errorf("config: panel.init: %w", err))
		}
	}
	return errors.Join(errs...)
}

// RegisterAddresses returns the three register addresses. Validate must
// have passed.
func (c *Config) RegisterAddresses() [wiring.NumRegisters]uint64 {
	var a [wiring.NumRegisters]uint64
	copy(a[:], c.Registers.Addresses)
	return a
}

// InitSequence returns the configured init sequence, or nil for the
// built-in one.
func (c *Config) InitSequence() (*sequence.Sequence, error) {
	if len(c.Panel.Init) == 0 {
		return nil, nil
	}
	q, err := sequence.FromRecords(c.Panel.Init)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	var keys map[string]yaml.Node
	if err := yaml.Unmarshal(data, &keys); err == nil {
		_, cfg.wiringSet = keys["wiring"]
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".hktft-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

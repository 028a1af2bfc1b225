package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"periph.io/x/host/v3"

	"hktft/internal/bus"
	"hktft/internal/config"
	"hktft/internal/lines"
	appLog "hktft/internal/log"
	"hktft/internal/panel"
	"hktft/internal/refresh"
	"hktft/internal/regwin"
	"hktft/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	image      string
	once       bool
	dryRun     bool
	debug      bool
}

func main() {
	appLog.Info("hktft starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI flags override the config file.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.dryRun {
		conf.Registers.Backend = config.BackendDryRun
	}
	if flags.debug {
		conf.LogLevel = "debug"
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"backend", conf.Registers.Backend,
		"dc", conf.Lines.DC,
		"reset", conf.Lines.Reset,
		"backlight", conf.Lines.Backlight,
		"rotate", conf.Panel.Rotate,
		"refresh", conf.RefreshCron,
		"once", flags.once,
		"image", flags.image,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("hktft failed", err)
		os.Exit(1)
	}
	appLog.Info("hktft exiting")
}

// run attaches the panel, serves until ctx is done and detaches it.
func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	dryRun := conf.Registers.Backend == config.BackendDryRun
	if !dryRun {
		if _, err := host.Init(); err != nil {
			return err
		}
	}

	// Attach: registers, bus, control lines, panel. Any failure aborts.
	win, err := regwin.Acquire(mapper(conf), conf.RegisterAddresses())
	if err != nil {
		var me *regwin.MapError
		if errors.As(err, &me) {
			appLog.Error("register window unavailable", me.Err, "index", me.Index, "addr", uint32(me.Addr))
		}
		return err
	}
	appLog.Debug("register window mapped",
		"reg0", uint32(win.Addr(0)),
		"reg1", uint32(win.Addr(1)),
		"reg2", uint32(win.Addr(2)),
	)
	defer func() {
		if err := win.Release(); err != nil {
			appLog.Error("register release failed", err)
		}
	}()

	b, err := bus.New(win, conf.Wiring)
	if err != nil {
		return err
	}
	appLog.Debug("bus ready", "bus", b.String())

	ls, err := openLines(conf, dryRun)
	if err != nil {
		return err
	}
	defer func() {
		if err := ls.Close(); err != nil {
			appLog.Error("closing control lines failed", err)
		}
	}()

	initSeq, err := conf.InitSequence()
	if err != nil {
		return err
	}
	dev, err := panel.New(b, ls.DC, optional(ls.Reset), optional(ls.Backlight), &panel.Opts{
		Rotate: conf.Panel.Rotate,
		BGR:    conf.Panel.BGR,
		Init:   initSeq,
	})
	if err != nil {
		return err
	}
	if err := dev.Init(); err != nil {
		return err
	}
	appLog.Info("panel attached", "panel", dev.String())
	defer func() {
		if err := dev.Halt(); err != nil {
			appLog.Error("panel halt failed", err)
		}
	}()

	src := conf.Source
	if flags.image != "" {
		src = config.SourceConfig{Path: flags.image}
	}
	loader := refresh.NewLoader(dev, src)

	if flags.once {
		return loader.Refresh(ctx)
	}
	if src.Path != "" || src.URL != "" {
		if err := loader.Refresh(ctx); err != nil {
			appLog.Warn("initial refresh failed", "err", err)
		}
	}

	if conf.RefreshCron != "" {
		sched, err := refresh.NewScheduler(ctx, conf.RefreshCron, loader.Refresh)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	if conf.Listen == "" {
		<-ctx.Done()
		return nil
	}
	srv := web.NewServer(conf, b, loader, dev.String())
	return srv.Serve(ctx)
}

// mapper returns the register mapper for the configured backend.
func mapper(conf *config.Config) regwin.Mapper {
	switch conf.Registers.Backend {
	case config.BackendDevMem:
		return regwin.DevMem{}
	case config.BackendDryRun:
		m := regwin.NewMemory(nil)
		m.NoLog = true
		return m
	default:
		return regwin.GPIOMem{
			Path:    conf.Registers.Device,
			Regions: regwin.Regions(conf.Registers.Regions),
		}
	}
}

func openLines(conf *config.Config, dryRun bool) (*lines.Set, error) {
	if dryRun {
		return &lines.Set{DC: lines.Nop{}}, nil
	}
	return lines.OpenSet(conf.Lines.DC, conf.Lines.Reset, conf.Lines.Backlight)
}

// optional keeps a missing line a nil interface for panel.New.
func optional(l lines.Line) panel.Line {
	if l == nil {
		return nil
	}
	return l
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/hktft/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.image, "image", "", "PNG or JPEG to draw instead of the configured source")
	flag.BoolVar(&cfg.once, "once", false, "Attach, draw one frame and exit")
	flag.BoolVar(&cfg.dryRun, "dryrun", false, "Use in-memory registers; do not touch hardware")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}

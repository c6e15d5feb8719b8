package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/sensord/internal/config"
	"github.com/roach88/sensord/internal/coordinator"
	"github.com/roach88/sensord/internal/display"
	"github.com/roach88/sensord/internal/input"
	"github.com/roach88/sensord/internal/listener"
	"github.com/roach88/sensord/internal/metrics"
	"github.com/roach88/sensord/internal/reading"
	"github.com/roach88/sensord/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	ConfigPath  string
	Listen      string
	Database    string
	Display     string
	Input       string
	MetricsAddr string

	// Ready, if set, is called with the bound ingestion address once the
	// service is accepting connections (for testing).
	Ready func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the collector service",
		Long: `Run the collector: accept sensor payloads over TCP, store them, and
show the selected record on the display.

Flags override values from the config file; without --config the built-in
defaults are used.

Example:
  sensord serve
  sensord serve --config /etc/sensord.yaml
  sensord serve --listen :5000 --db ./sensor_data.db --display lcd --input gpio`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "TCP address for sensor payloads")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Display, "display", "", "display driver (console|lcd|none)")
	cmd.Flags().StringVar(&opts.Input, "input", "", "input driver (gpio|none)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "address for the Prometheus /metrics endpoint")

	return cmd
}

// loadServeConfig reads the config file (if any) and applies flag overrides.
func loadServeConfig(opts *ServeOptions, cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Listen.Address = opts.Listen
	}
	if flags.Changed("db") {
		cfg.Store.Path = opts.Database
	}
	if flags.Changed("display") {
		cfg.Display.Driver = opts.Display
	}
	if flags.Changed("input") {
		cfg.Input.Driver = opts.Input
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Address = opts.MetricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger: text on w, level from config unless
// --verbose forces debug.
func newLogger(w io.Writer, level slog.Level, verbose bool) *slog.Logger {
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// openSink returns the configured display sink and its release function.
// An LCD that cannot be opened degrades to Nop.
func openSink(cfg config.DisplayConfig, out io.Writer, logger *slog.Logger) (display.Sink, func()) {
	switch cfg.Driver {
	case config.DisplayLCD:
		lcd, err := display.OpenLCD(cfg.I2CBus, cfg.I2CAddress, cfg.Width, logger)
		if err != nil {
			logger.Warn("lcd unavailable, continuing without display", "error", err)
			return display.Nop{}, func() {}
		}
		return lcd, func() {
			if err := lcd.Close(); err != nil {
				logger.Warn("error closing lcd", "error", err)
			}
		}
	case config.DisplayNone:
		return display.Nop{}, func() {}
	default:
		return display.NewConsole(out, cfg.Width), func() {}
	}
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := loadServeConfig(opts, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.SlogLevel(), opts.Verbose)
	slog.SetDefault(logger)

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("opening database", "path", cfg.Store.Path)
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	m := metrics.New()
	m.InitInfo(reading.Version)

	sink, closeSink := openSink(cfg.Display, cmd.OutOrStdout(), logger)
	defer closeSink()

	coord := coordinator.New(st, sink,
		coordinator.WithLogger(logger),
		coordinator.WithMetrics(m),
	)

	var poller *input.Poller
	if cfg.Input.Driver == config.InputGPIO {
		forward, backward, err := input.OpenGPIO(cfg.Input.ForwardPin, cfg.Input.BackwardPin)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to initialise input device", err)
		}
		poller = input.NewPoller(forward, backward, coord,
			input.WithInterval(cfg.Input.PollInterval),
			input.WithDebounce(cfg.Input.Debounce),
			input.WithLogger(logger),
		)
	}

	ln, err := listener.Listen(ctx, cfg.Listen.Address)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	server := listener.NewServer(coord,
		listener.WithOptions(listener.Options{
			MaxConnections: cfg.Listen.MaxConnections,
			ReadTimeout:    cfg.Listen.ReadTimeout,
			BufferSize:     cfg.Listen.BufferSize,
			QuietPeriod:    cfg.Listen.QuietPeriod,
		}),
		listener.WithLogger(logger),
		listener.WithMetrics(m),
	)

	var (
		exporter  *metrics.Exporter
		metricsLn net.Listener
	)
	if cfg.Metrics.Address != "" {
		metricsLn, err = listener.Listen(ctx, cfg.Metrics.Address)
		if err != nil {
			ln.Close()
			return WrapExitError(ExitCommandError, "failed to listen for metrics", err)
		}
		exporter = metrics.NewExporter(cfg.Metrics.Address, m, logger)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := coord.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return server.Serve(gctx, ln)
	})
	if poller != nil {
		g.Go(func() error {
			return poller.Run(gctx)
		})
	}
	if exporter != nil {
		g.Go(func() error {
			return exporter.Serve(gctx, metricsLn)
		})
	}

	logger.Info("sensord started",
		"version", reading.Version,
		"listen", ln.Addr().String(),
		"db", cfg.Store.Path,
		"display", cfg.Display.Driver,
		"input", cfg.Input.Driver,
	)
	fmt.Fprintf(cmd.OutOrStdout(), "sensord listening on %s\n", ln.Addr().String())
	if opts.Ready != nil {
		opts.Ready(ln.Addr().String())
	}

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "service error", err)
	}

	logger.Info("sensord stopped gracefully")
	return nil
}

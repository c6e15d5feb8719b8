// Package config loads sensord configuration from YAML.
//
// A file only needs the keys it changes; everything else keeps the value
// from Default. The merged result is checked against an embedded CUE
// schema and then against cross-field rules.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

// Display drivers.
const (
	DisplayConsole = "console"
	DisplayLCD     = "lcd"
	DisplayNone    = "none"
)

// Input drivers.
const (
	InputGPIO = "gpio"
	InputNone = "none"
)

//go:embed schema.cue
var schemaSource string

// Config is the root configuration.
type Config struct {
	Listen  ListenConfig  `yaml:"listen" json:"listen"`
	Store   StoreConfig   `yaml:"store" json:"store"`
	Display DisplayConfig `yaml:"display" json:"display"`
	Input   InputConfig   `yaml:"input" json:"input"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Log     LogConfig     `yaml:"log" json:"log"`
}

// ListenConfig configures the ingestion listener.
type ListenConfig struct {
	Address        string        `yaml:"address" json:"address"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout"`
	MaxConnections int           `yaml:"max_connections" json:"max_connections"`
	BufferSize     int           `yaml:"buffer_size" json:"buffer_size"`
	QuietPeriod    time.Duration `yaml:"quiet_period" json:"quiet_period"`
}

// StoreConfig configures the SQLite record store.
type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// DisplayConfig selects and configures the display sink.
type DisplayConfig struct {
	Driver     string `yaml:"driver" json:"driver"`
	I2CBus     string `yaml:"i2c_bus" json:"i2c_bus"`
	I2CAddress uint16 `yaml:"i2c_address" json:"i2c_address"`
	Width      int    `yaml:"width" json:"width"`
}

// InputConfig selects and configures the navigation buttons.
type InputConfig struct {
	Driver       string        `yaml:"driver" json:"driver"`
	ForwardPin   string        `yaml:"forward_pin" json:"forward_pin"`
	BackwardPin  string        `yaml:"backward_pin" json:"backward_pin"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	Debounce     time.Duration `yaml:"debounce" json:"debounce"`
}

// MetricsConfig configures the Prometheus exporter. An empty address
// disables it.
type MetricsConfig struct {
	Address string `yaml:"address" json:"address"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{
			Address:        ":5000",
			ReadTimeout:    5 * time.Second,
			MaxConnections: 64,
			BufferSize:     256,
			QuietPeriod:    100 * time.Millisecond,
		},
		Store: StoreConfig{
			Path: "sensor_data.db",
		},
		Display: DisplayConfig{
			Driver:     DisplayConsole,
			I2CAddress: 0x27,
			Width:      16,
		},
		Input: InputConfig{
			Driver:       InputNone,
			ForwardPin:   "GPIO17",
			BackwardPin:  "GPIO27",
			PollInterval: 50 * time.Millisecond,
			Debounce:     300 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over Default and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks c against the schema and the cross-field rules.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := c.validateSchema(); err != nil {
		return err
	}

	if c.Input.Driver == InputGPIO {
		if c.Input.ForwardPin == "" || c.Input.BackwardPin == "" {
			return fmt.Errorf("input: forward_pin and backward_pin are required for the gpio driver")
		}
		if c.Input.ForwardPin == c.Input.BackwardPin {
			return fmt.Errorf("input: forward_pin and backward_pin must differ, both are %s", c.Input.ForwardPin)
		}
	}
	if c.Display.Driver == DisplayLCD && c.Display.I2CAddress == 0 {
		return fmt.Errorf("display: i2c_address is required for the lcd driver")
	}
	if c.Metrics.Address != "" && c.Metrics.Address == c.Listen.Address {
		return fmt.Errorf("metrics.address must differ from listen.address")
	}
	return nil
}

func (c *Config) validateSchema() error {
	cctx := cuecontext.New()

	schema := cctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := cctx.Encode(c)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s", formatSchemaError(err))
	}
	return nil
}

// formatSchemaError flattens CUE's error list into one line.
func formatSchemaError(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		path := strings.Join(e.Path(), ".")
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if path != "" {
			msg = path + ": " + msg
		}
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "; ")
}

// SlogLevel maps Log.Level to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package input

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/sensord/internal/reading"
)

const (
	// DefaultPollInterval is the pause between samples of both pins.
	DefaultPollInterval = 50 * time.Millisecond

	// DefaultDebounce is the pause after a press is acted on.
	DefaultDebounce = 300 * time.Millisecond
)

// Pin is a digital input sampled by the poller.
type Pin interface {
	// Read reports whether the pin is at the high (pressed) level.
	Read() bool
}

// PinFunc adapts a function to the Pin interface.
type PinFunc func() bool

// Read calls f.
func (f PinFunc) Read() bool { return f() }

// Stepper moves the display index. Implemented by *coordinator.Coordinator.
type Stepper interface {
	Step(ctx context.Context, dir reading.Direction) (int64, error)
}

// Poller samples the navigation buttons and issues steps.
type Poller struct {
	forward  Pin
	backward Pin
	stepper  Stepper
	interval time.Duration
	debounce time.Duration
	logger   *slog.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the sampling interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithDebounce sets the pause after a press. Negative values are ignored.
func WithDebounce(d time.Duration) Option {
	return func(p *Poller) {
		if d >= 0 {
			p.debounce = d
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// NewPoller creates a poller stepping s forward on forward and backward on
// backward.
func NewPoller(forward, backward Pin, s Stepper, opts ...Option) *Poller {
	p := &Poller{
		forward:  forward,
		backward: backward,
		stepper:  s,
		interval: DefaultPollInterval,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run samples the pins until ctx is cancelled, then returns nil.
//
// Each cycle checks forward first, then backward. Step failures are logged
// and do not stop the poller.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("input poller starting",
		"interval", p.interval,
		"debounce", p.debounce,
	)

	for {
		if !p.sample(ctx, p.forward, reading.Forward) {
			break
		}
		if !p.sample(ctx, p.backward, reading.Backward) {
			break
		}
		if !sleep(ctx, p.interval) {
			break
		}
	}

	p.logger.Info("input poller stopped")
	return nil
}

// sample steps in dir if pin is pressed. It returns false once ctx is done.
func (p *Poller) sample(ctx context.Context, pin Pin, dir reading.Direction) bool {
	if ctx.Err() != nil {
		return false
	}
	if !pin.Read() {
		return true
	}

	idx, err := p.stepper.Step(ctx, dir)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Warn("step failed", "direction", dir.String(), "error", err)
	} else {
		p.logger.Debug("button pressed", "direction", dir.String(), "index", idx)
	}

	return sleep(ctx, p.debounce)
}

// sleep waits for d or until ctx is done, reporting whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

package display

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// DefaultLCDAddress is the usual I2C address of a PCF8574 LCD backpack.
const DefaultLCDAddress = 0x27

// PCF8574 pin mapping on the common backpacks.
const (
	pinRS        byte = 0x01
	pinEnable    byte = 0x04
	pinBacklight byte = 0x08
)

// HD44780 instructions.
const (
	cmdClear       byte = 0x01
	cmdEntryMode   byte = 0x06 // increment, no shift
	cmdDisplayOn   byte = 0x0C // display on, cursor off, blink off
	cmdFunctionSet byte = 0x28 // 4-bit bus, 2 lines, 5x8 font
	cmdSetDDRAM    byte = 0x80
)

var rowOffsets = [2]byte{0x00, 0x40}

// Bus is the I2C transaction surface the LCD needs. *i2c.Dev satisfies it.
type Bus interface {
	Tx(w, r []byte) error
}

// LCD is a Sink driving an HD44780 controller in 4-bit mode through a
// PCF8574 I2C expander.
type LCD struct {
	mu     sync.Mutex
	bus    Bus
	width  int
	logger *slog.Logger
	closer func() error

	// sleep is replaced in tests.
	sleep func(time.Duration)
}

// OpenLCD initialises the host drivers, opens the named I2C bus ("" picks
// the first available) and resets the display at addr.
func OpenLCD(busName string, addr uint16, width int, logger *slog.Logger) (*LCD, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host drivers: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}

	lcd := NewLCD(&i2c.Dev{Bus: bus, Addr: addr}, width, logger)
	lcd.closer = bus.Close
	if err := lcd.Init(); err != nil {
		bus.Close()
		return nil, err
	}
	return lcd, nil
}

// NewLCD wraps an already opened bus. Call Init before the first Write.
func NewLCD(bus Bus, width int, logger *slog.Logger) *LCD {
	if width <= 0 {
		width = DefaultWidth
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LCD{
		bus:    bus,
		width:  width,
		logger: logger,
		sleep:  time.Sleep,
	}
}

// Init runs the HD44780 4-bit initialisation sequence and clears the screen.
func (l *LCD) Init() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sleep(50 * time.Millisecond)

	// Three 8-bit "function set" nibbles bring the controller to a known
	// state whatever mode it was in, then switch to 4-bit.
	for i := 0; i < 3; i++ {
		if err := l.writeNibble(0x30, 0); err != nil {
			return fmt.Errorf("lcd reset: %w", err)
		}
		l.sleep(5 * time.Millisecond)
	}
	if err := l.writeNibble(0x20, 0); err != nil {
		return fmt.Errorf("lcd 4-bit mode: %w", err)
	}

	for _, cmd := range []byte{cmdFunctionSet, cmdDisplayOn, cmdEntryMode, cmdClear} {
		if err := l.command(cmd); err != nil {
			return fmt.Errorf("lcd init: %w", err)
		}
	}
	l.sleep(2 * time.Millisecond)
	return nil
}

// Write implements Sink. Both rows are rewritten while holding the lock.
// Bus errors are logged; the display is left in whatever state it reached.
func (l *LCD) Write(line1, line2 string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for row, text := range [2]string{line1, line2} {
		if err := l.writeRow(row, text); err != nil {
			l.logger.Error("lcd write failed", "row", row, "error", err)
			return
		}
	}
}

// Close releases the I2C bus if OpenLCD opened it.
func (l *LCD) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer()
}

// writeRow pads text to the full width so stale characters are overwritten
// without a clear (which flickers and takes 2ms).
func (l *LCD) writeRow(row int, text string) error {
	if err := l.command(cmdSetDDRAM | rowOffsets[row]); err != nil {
		return err
	}
	text = Fit(text, l.width)
	for i := 0; i < l.width; i++ {
		c := byte(' ')
		if i < len(text) {
			c = text[i]
		}
		if err := l.send(c, pinRS); err != nil {
			return err
		}
	}
	return nil
}

func (l *LCD) command(cmd byte) error {
	return l.send(cmd, 0)
}

func (l *LCD) send(b, mode byte) error {
	if err := l.writeNibble(b&0xF0, mode); err != nil {
		return err
	}
	return l.writeNibble((b<<4)&0xF0, mode)
}

// writeNibble latches the upper four bits of v by pulsing Enable.
func (l *LCD) writeNibble(v, mode byte) error {
	out := v | mode | pinBacklight
	return l.bus.Tx([]byte{out | pinEnable, out}, nil)
}

package display

import (
	"fmt"
	"io"
	"sync"
)

// DefaultWidth is the column count of the common 16x2 modules.
const DefaultWidth = 16

// Sink shows two lines of text. Last write wins; there is no buffering.
type Sink interface {
	Write(line1, line2 string)
}

// Lines is one screenful of text.
type Lines struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

// Show writes l to sink.
func (l Lines) Show(sink Sink) {
	sink.Write(l.Line1, l.Line2)
}

// Nop is a Sink that discards everything.
type Nop struct{}

// Write implements Sink.
func (Nop) Write(string, string) {}

// Console is a Sink that prints each screen as a single log-style line.
// It stands in for the LCD on machines without one.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	width int
}

// NewConsole creates a Console sink writing to w. Lines are fitted to
// width columns; width <= 0 disables truncation.
func NewConsole(w io.Writer, width int) *Console {
	return &Console{w: w, width: width}
}

// Write implements Sink.
func (c *Console) Write(line1, line2 string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "[LCD] %s | %s\n", Fit(line1, c.width), Fit(line2, c.width))
}

package testutil

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/sensord/internal/display"
)

// RecordingSink is a display.Sink that keeps every screen written to it and
// detects overlapping writes.
type RecordingSink struct {
	mu      sync.Mutex
	screens []display.Lines
	delay   time.Duration

	active   atomic.Int32
	overlaps atomic.Int32
}

// NewRecordingSink creates an empty sink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// SetDelay makes every Write take at least d, to widen race windows.
func (s *RecordingSink) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Write implements display.Sink.
func (s *RecordingSink) Write(line1, line2 string) {
	if s.active.Add(1) > 1 {
		s.overlaps.Add(1)
	}
	defer s.active.Add(-1)

	s.mu.Lock()
	d := s.delay
	s.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.screens = append(s.screens, display.Lines{Line1: line1, Line2: line2})
}

// Last returns the most recent screen.
func (s *RecordingSink) Last() (display.Lines, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.screens) == 0 {
		return display.Lines{}, false
	}
	return s.screens[len(s.screens)-1], true
}

// Screens returns a copy of every screen written.
func (s *RecordingSink) Screens() []display.Lines {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]display.Lines(nil), s.screens...)
}

// Len returns the number of writes.
func (s *RecordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.screens)
}

// Overlaps returns how many writes started while another was in progress.
func (s *RecordingSink) Overlaps() int {
	return int(s.overlaps.Load())
}

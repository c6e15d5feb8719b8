package coordinator

import "sync/atomic"

// displayIndex holds the record id selected for display.
//
// Only the Run loop stores to it. Other goroutines may Load at any time and
// always observe a value the loop published as a whole.
type displayIndex struct {
	id atomic.Int64
}

// Load returns the current index.
func (d *displayIndex) Load() int64 {
	return d.id.Load()
}

// Store publishes a new index. Must only be called from the Run loop.
func (d *displayIndex) Store(id int64) {
	d.id.Store(id)
}

// step computes the index after moving by delta from current, clamped to
// [1, highest]. With no records (highest <= 0) the index stays where it is.
func step(current, delta, highest int64) int64 {
	if highest <= 0 {
		return current
	}
	next := current + delta
	if next < 1 {
		next = 1
	}
	if next > highest {
		next = highest
	}
	return next
}

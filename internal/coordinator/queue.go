package coordinator

import (
	"sync"

	"github.com/roach88/sensord/internal/reading"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeIngest carries a validated reading to insert and display.
	EventTypeIngest EventType = iota + 1
	// EventTypeStep carries a step intent from the input device.
	EventTypeStep
)

func (t EventType) String() string {
	switch t {
	case EventTypeIngest:
		return "ingest"
	case EventTypeStep:
		return "step"
	default:
		return "unknown"
	}
}

// event is one unit of work for the Run loop. The loop sends exactly one
// value on reply when it is done with the event.
type event struct {
	Type      EventType
	Reading   reading.Reading
	Direction reading.Direction
	reply     chan result
}

// result is the loop's answer to an event.
type result struct {
	ID  int64 // index after the event was applied
	Err error
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so that Enqueue never blocks a connection handler
// or the poller; backpressure comes from callers waiting on their reply.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop (prevents goroutine hangs on context cancellation).
type eventQueue struct {
	mu     sync.Mutex
	events []event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return event{}, false
	}

	e := q.events[0]

	// Drop the slot's reference to the reply channel so it can be collected.
	q.events[0] = event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// The channel is closed by Close.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Drain removes and returns every queued event. Used after Close so that
// callers still waiting on a reply can be answered.
func (q *eventQueue) Drain() []event {
	q.mu.Lock()
	defer q.mu.Unlock()

	events := q.events
	q.events = nil
	return events
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

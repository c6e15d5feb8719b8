// Package coordinator owns the display index and serializes every
// operation that reads or changes it.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Connection handlers and the input poller never touch the index, the
// store write path, or the display directly. They submit events and wait
// for the loop's reply. The loop, running in exactly one goroutine:
//  1. dequeues one event (FIFO)
//  2. for an ingest: inserts the reading and sets the index to the new id
//  3. for a step: moves the index by one, clamped to [1, highest id]
//  4. fetches the selected record and writes both display lines at once
//
// Only then is the next event dequeued, so no two renders interleave and no
// index update is lost or observed half-done.
//
// INVARIANTS:
//   - The index is 0 or an id returned by a successful insert
//   - The index is never below 1 once a record exists
//   - Every sink write shows a single record (or a placeholder)
package coordinator

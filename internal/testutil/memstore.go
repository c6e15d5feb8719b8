package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/sensord/internal/reading"
)

// MemStore is an in-memory record store with fault injection.
//
// It satisfies coordinator.Store. IDs start at 1 and are never reused.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type MemStore struct {
	mu      sync.Mutex
	records []reading.Record
	clock   *DeterministicClock

	insertErr error
	fetchErr  error
	maxErr    error

	// delay is slept inside every call, outside the lock, to widen race
	// windows in concurrency tests.
	delay time.Duration

	inserts int
	fetches int
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{clock: NewDeterministicClock()}
}

// SetInsertErr makes subsequent Insert calls fail with err (nil clears).
func (m *MemStore) SetInsertErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertErr = err
}

// SetFetchErr makes subsequent FetchByID calls fail with err (nil clears).
func (m *MemStore) SetFetchErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr = err
}

// SetMaxIDErr makes subsequent MaxID calls fail with err (nil clears).
func (m *MemStore) SetMaxIDErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxErr = err
}

// SetDelay sets a per-call delay.
func (m *MemStore) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Seed appends readings directly, bypassing fault injection.
func (m *MemStore) Seed(rs ...reading.Reading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rs {
		m.appendLocked(r)
	}
}

func (m *MemStore) appendLocked(r reading.Reading) int64 {
	id := int64(len(m.records) + 1)
	m.records = append(m.records, reading.Record{ID: id, Reading: r, CreatedAt: m.clock.Next()})
	return id
}

func (m *MemStore) pause() {
	m.mu.Lock()
	d := m.delay
	m.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}

// Insert appends r and returns its id.
func (m *MemStore) Insert(ctx context.Context, r reading.Reading) (int64, error) {
	m.pause()
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	return m.appendLocked(r), nil
}

// FetchByID returns the record with id, if any.
func (m *MemStore) FetchByID(ctx context.Context, id int64) (reading.Record, bool, error) {
	m.pause()
	if err := ctx.Err(); err != nil {
		return reading.Record{}, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.fetchErr != nil {
		return reading.Record{}, false, m.fetchErr
	}
	if id < 1 || id > int64(len(m.records)) {
		return reading.Record{}, false, nil
	}
	return m.records[id-1], true, nil
}

// MaxID returns the highest id, or 0 when empty.
func (m *MemStore) MaxID(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxErr != nil {
		return 0, m.maxErr
	}
	return int64(len(m.records)), nil
}

// Records returns a copy of every stored record in id order.
func (m *MemStore) Records() []reading.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]reading.Record(nil), m.records...)
}

// Inserts returns the number of Insert calls, including failed ones.
func (m *MemStore) Inserts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserts
}

// Fetches returns the number of FetchByID calls, including failed ones.
func (m *MemStore) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

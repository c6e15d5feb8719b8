package input

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sensord/internal/reading"
)

type fakePin struct {
	high atomic.Bool
}

func (p *fakePin) Read() bool { return p.high.Load() }

type fakeStepper struct {
	mu    sync.Mutex
	steps []reading.Direction
	err   error
}

func (s *fakeStepper) Step(_ context.Context, dir reading.Direction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, dir)
	return int64(len(s.steps)), s.err
}

func (s *fakeStepper) Steps() []reading.Direction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]reading.Direction(nil), s.steps...)
}

func runPoller(t *testing.T, p *Poller) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("poller did not stop")
		}
	})
	return cancel
}

func TestPoller_IdleDoesNotStep(t *testing.T) {
	fwd, back := &fakePin{}, &fakePin{}
	st := &fakeStepper{}
	runPoller(t, NewPoller(fwd, back, st, WithInterval(time.Millisecond)))

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, st.Steps())
}

func TestPoller_ForwardPress(t *testing.T) {
	fwd, back := &fakePin{}, &fakePin{}
	st := &fakeStepper{}
	runPoller(t, NewPoller(fwd, back, st,
		WithInterval(time.Millisecond),
		WithDebounce(time.Hour),
	))

	fwd.high.Store(true)
	require.Eventually(t, func() bool { return len(st.Steps()) == 1 }, time.Second, time.Millisecond)

	// Debounce holds off further steps while the button stays pressed.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []reading.Direction{reading.Forward}, st.Steps())
}

func TestPoller_BackwardPress(t *testing.T) {
	fwd, back := &fakePin{}, &fakePin{}
	st := &fakeStepper{}
	runPoller(t, NewPoller(fwd, back, st,
		WithInterval(time.Millisecond),
		WithDebounce(time.Hour),
	))

	back.high.Store(true)
	require.Eventually(t, func() bool { return len(st.Steps()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, reading.Backward, st.Steps()[0])
}

func TestPoller_HeldButtonRepeats(t *testing.T) {
	fwd, back := &fakePin{}, &fakePin{}
	fwd.high.Store(true)
	st := &fakeStepper{}
	runPoller(t, NewPoller(fwd, back, st,
		WithInterval(time.Millisecond),
		WithDebounce(5*time.Millisecond),
	))

	require.Eventually(t, func() bool { return len(st.Steps()) >= 3 }, time.Second, time.Millisecond)
	for _, dir := range st.Steps() {
		assert.Equal(t, reading.Forward, dir)
	}
}

func TestPoller_StepErrorKeepsPolling(t *testing.T) {
	fwd, back := &fakePin{}, &fakePin{}
	fwd.high.Store(true)
	st := &fakeStepper{err: errors.New("coordinator busy")}
	runPoller(t, NewPoller(fwd, back, st,
		WithInterval(time.Millisecond),
		WithDebounce(time.Millisecond),
	))

	require.Eventually(t, func() bool { return len(st.Steps()) >= 2 }, time.Second, time.Millisecond)
}

func TestPoller_CancelDuringDebounce(t *testing.T) {
	fwd, back := &fakePin{}, &fakePin{}
	fwd.high.Store(true)
	st := &fakeStepper{}
	p := NewPoller(fwd, back, st, WithDebounce(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return len(st.Steps()) == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return while debouncing")
	}
}

func TestPoller_Options(t *testing.T) {
	p := NewPoller(PinFunc(func() bool { return false }), PinFunc(func() bool { return false }), &fakeStepper{},
		WithInterval(0),
		WithDebounce(-time.Second),
	)
	assert.Equal(t, DefaultPollInterval, p.interval)
	assert.Equal(t, DefaultDebounce, p.debounce)

	p = NewPoller(nil, nil, &fakeStepper{}, WithInterval(time.Second), WithDebounce(0))
	assert.Equal(t, time.Second, p.interval)
	assert.Zero(t, p.debounce)
}

func TestSleep(t *testing.T) {
	assert.True(t, sleep(context.Background(), time.Millisecond))
	assert.True(t, sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleep(ctx, time.Hour))
	assert.False(t, sleep(ctx, 0))
}

package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sensord/internal/metrics"
	"github.com/roach88/sensord/internal/reading"
	sensortest "github.com/roach88/sensord/internal/testutil"
)

// fakeIngester records readings; release gates Ingest when non-nil.
type fakeIngester struct {
	mu       sync.Mutex
	readings []reading.Reading
	started  chan struct{}
	release  chan struct{}
	err      error
}

func (f *fakeIngester) Ingest(ctx context.Context, r reading.Reading) (int64, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.readings = append(f.readings, r)
	return int64(len(f.readings)), nil
}

func (f *fakeIngester) Readings() []reading.Reading {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]reading.Reading(nil), f.readings...)
}

// startServer serves on a loopback port until the test ends.
func startServer(t *testing.T, ing Ingester, opts ...Option) (string, *metrics.Metrics) {
	t.Helper()

	m := metrics.New()
	opts = append([]Option{WithMetrics(m), WithConnIDGenerator(&sensortest.SequentialConnIDs{})}, opts...)
	srv := NewServer(ing, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	ln, err := Listen(ctx, "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return ln.Addr().String(), m
}

func send(t *testing.T, addr, payload string) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte(payload))
	require.NoError(t, err)
}

// connections reads sensord_connections_total{result=...} from m.
func connections(m *metrics.Metrics, result string) float64 {
	families, err := m.Registry().Gather()
	if err != nil {
		return -1
	}
	for _, mf := range families {
		if mf.GetName() != "sensord_connections_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "result" && lp.GetValue() == result {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestServe_ValidPayload(t *testing.T) {
	ing := &fakeIngester{}
	addr, m := startServer(t, ing)

	send(t, addr, "23.5,60.0,150,3,1")

	require.Eventually(t, func() bool { return len(ing.Readings()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, reading.Reading{Temperature: 23.5, Humidity: 60, Lux: 150, Level: 3, Motion: true}, ing.Readings()[0])
	require.Eventually(t, func() bool { return connections(m, metrics.ConnIngested) == 1 }, time.Second, 5*time.Millisecond)
}

func TestServe_NewlineTerminatedPayload(t *testing.T) {
	ing := &fakeIngester{}
	addr, _ := startServer(t, ing)

	// The sender keeps the connection open; the newline ends the payload.
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("20.0,40.0,10,1,0\r\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(ing.Readings()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, ing.Readings()[0].Motion)

	// The server closes its side without writing anything.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := conn.Read(make([]byte, 8))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestServe_MalformedPayload(t *testing.T) {
	ing := &fakeIngester{}
	addr, m := startServer(t, ing)

	send(t, addr, "abc,1,2,3")

	require.Eventually(t, func() bool { return connections(m, metrics.ConnParseError) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, ing.Readings())
}

func TestServe_ConcurrentConnections(t *testing.T) {
	ing := &fakeIngester{}
	addr, _ := startServer(t, ing)

	var wg sync.WaitGroup
	for _, p := range []string{"1,1,1,1,0", "2,2,2,2,1"} {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			send(t, addr, p)
		}(p)
	}
	wg.Wait()

	require.Eventually(t, func() bool { return len(ing.Readings()) == 2 }, 2*time.Second, 5*time.Millisecond)
	temps := []float64{ing.Readings()[0].Temperature, ing.Readings()[1].Temperature}
	assert.ElementsMatch(t, []float64{1, 2}, temps)
}

func TestServe_RejectsWhenFull(t *testing.T) {
	ing := &fakeIngester{started: make(chan struct{}, 1), release: make(chan struct{})}
	addr, m := startServer(t, ing, WithOptions(Options{MaxConnections: 1}))

	send(t, addr, "1,1,1,1,0")
	select {
	case <-ing.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first connection not handled")
	}

	// The only slot is busy inside Ingest; the next connection is dropped.
	send(t, addr, "2,2,2,2,0")
	require.Eventually(t, func() bool { return connections(m, metrics.ConnRejected) == 1 }, 2*time.Second, 5*time.Millisecond)

	close(ing.release)
	require.Eventually(t, func() bool { return len(ing.Readings()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, float64(1), ing.Readings()[0].Temperature)
}

func TestServe_SilentConnectionAbandoned(t *testing.T) {
	ing := &fakeIngester{}
	addr, m := startServer(t, ing, WithOptions(Options{ReadTimeout: 50 * time.Millisecond}))

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return connections(m, metrics.ConnReadError) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, ing.Readings())
}

func TestServe_UnterminatedPayloadOnOpenConnection(t *testing.T) {
	ing := &fakeIngester{}
	addr, m := startServer(t, ing)

	// No newline, and the sender waits for the server to close.
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("23.5,60.0,150,3,1"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(ing.Readings()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, reading.Reading{Temperature: 23.5, Humidity: 60, Lux: 150, Level: 3, Motion: true}, ing.Readings()[0])
	require.Eventually(t, func() bool { return connections(m, metrics.ConnIngested) == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, connections(m, metrics.ConnReadError))
}

func TestServe_UnterminatedPayloadAtReadTimeout(t *testing.T) {
	ing := &fakeIngester{}
	addr, _ := startServer(t, ing, WithOptions(Options{
		ReadTimeout: 200 * time.Millisecond,
		QuietPeriod: time.Hour,
	}))

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("20.0,40.0,10,1,0"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(ing.Readings()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 20.0, ing.Readings()[0].Temperature)
}

func TestServe_PartialPayloadIsMalformed(t *testing.T) {
	ing := &fakeIngester{}
	addr, m := startServer(t, ing)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("23.5,60.0"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return connections(m, metrics.ConnParseError) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, ing.Readings())
}

func TestServe_IngestError(t *testing.T) {
	ing := &fakeIngester{err: errors.New("store down")}
	addr, m := startServer(t, ing)

	send(t, addr, "1,1,1,1,0")
	require.Eventually(t, func() bool { return connections(m, metrics.ConnFailed) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestServe_ShutdownInterruptsPendingRead(t *testing.T) {
	ing := &fakeIngester{}
	srv := NewServer(ing, WithOptions(Options{ReadTimeout: time.Hour}))

	ctx, cancel := context.WithCancel(context.Background())
	ln, err := Listen(ctx, "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return with a silent connection open")
	}
	assert.Empty(t, ing.Readings())
}

func TestListen_BadAddress(t *testing.T) {
	_, err := Listen(context.Background(), "256.0.0.1:99999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on")
}

type chunkReader struct {
	chunks    []string
	err       error
	deadlines []time.Time
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, r.err
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func (r *chunkReader) SetReadDeadline(t time.Time) error {
	r.deadlines = append(r.deadlines, t)
	return nil
}

func TestReadPayload(t *testing.T) {
	timeout := fmt.Errorf("read tcp: %w", os.ErrDeadlineExceeded)
	reset := errors.New("connection reset by peer")

	tests := []struct {
		name    string
		chunks  []string
		err     error
		size    int
		want    string
		wantErr error
	}{
		{"eof", []string{"1,2,3,4,0"}, io.EOF, 256, "1,2,3,4,0", nil},
		{"split across reads", []string{"1,2,", "3,4,1"}, io.EOF, 256, "1,2,3,4,1", nil},
		{"newline ends payload", []string{"1,2,3,4,0\ntrailing"}, timeout, 256, "1,2,3,4,0\n", nil},
		{"full buffer", []string{strings.Repeat("x", 300)}, timeout, 8, "xxxxxxxx", nil},
		{"deadline after bytes ends payload", []string{"1,2,", "3,4,1"}, timeout, 256, "1,2,3,4,1", nil},
		{"deadline with nothing received", nil, timeout, 256, "", os.ErrDeadlineExceeded},
		{"read error after bytes abandons", []string{"1,2"}, reset, 256, "", reset},
		{"empty", nil, io.EOF, 256, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &chunkReader{chunks: tt.chunks, err: tt.err}
			got, err := readPayload(r, tt.size, time.Now().Add(time.Hour), time.Millisecond)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestReadPayload_QuietPeriodNeverExtendsDeadline(t *testing.T) {
	timeout := fmt.Errorf("read tcp: %w", os.ErrDeadlineExceeded)

	r := &chunkReader{chunks: []string{"1,2,3,4,0"}, err: timeout}
	_, err := readPayload(r, 256, time.Now().Add(time.Hour), 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, r.deadlines, 1, "first bytes shorten the deadline")
	assert.WithinDuration(t, time.Now(), r.deadlines[0], time.Second)

	r = &chunkReader{chunks: []string{"1,2,3,4,0"}, err: timeout}
	_, err = readPayload(r, 256, time.Now().Add(time.Millisecond), time.Hour)
	require.NoError(t, err)
	assert.Empty(t, r.deadlines, "a quiet period past the deadline is not applied")
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.LessOrEqual(t, a, b, "v7 ids sort by creation time")
}

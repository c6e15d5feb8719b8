package listener

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/roach88/sensord/internal/metrics"
	"github.com/roach88/sensord/internal/reading"
)

const (
	// DefaultAddress is the TCP address sensors push to.
	DefaultAddress = ":5000"

	// DefaultMaxConnections bounds concurrently handled connections.
	DefaultMaxConnections = 64

	// DefaultReadTimeout bounds how long a sender may take to deliver its
	// payload.
	DefaultReadTimeout = 5 * time.Second

	// DefaultBufferSize is the largest payload read from one connection.
	DefaultBufferSize = 256

	// DefaultQuietPeriod ends a payload that has started arriving but is
	// not followed by a newline or EOF.
	DefaultQuietPeriod = 100 * time.Millisecond

	acceptBackoff = 50 * time.Millisecond
)

// Ingester accepts parsed readings. Implemented by
// *coordinator.Coordinator.
type Ingester interface {
	Ingest(ctx context.Context, r reading.Reading) (int64, error)
}

// Options tunes connection handling. Zero fields take the defaults.
type Options struct {
	MaxConnections int
	ReadTimeout    time.Duration
	BufferSize     int
	QuietPeriod    time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxConnections <= 0 {
		o.MaxConnections = DefaultMaxConnections
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.QuietPeriod <= 0 {
		o.QuietPeriod = DefaultQuietPeriod
	}
	return o
}

// Server dispatches accepted connections to handlers.
type Server struct {
	ingester Ingester
	opts     Options
	sem      *semaphore.Weighted
	connIDs  ConnIDGenerator
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Server.
type Option func(*Server)

// WithOptions sets connection limits and timeouts.
func WithOptions(o Options) Option {
	return func(s *Server) {
		s.opts = o.withDefaults()
	}
}

// WithConnIDGenerator replaces the UUIDv7 connection ID source.
func WithConnIDGenerator(g ConnIDGenerator) Option {
	return func(s *Server) {
		s.connIDs = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics records connection outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates a server feeding readings to ing.
func NewServer(ing Ingester, opts ...Option) *Server {
	s := &Server{
		ingester: ing,
		opts:     Options{}.withDefaults(),
		connIDs:  UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sem = semaphore.NewWeighted(int64(s.opts.MaxConnections))
	return s
}

// Listen binds a TCP listener on addr.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return ln, nil
}

// Serve accepts connections on ln until ctx is cancelled, then closes ln,
// waits for in-flight handlers, and returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.logger.Info("listener accepting",
		"addr", ln.Addr().String(),
		"max_connections", s.opts.MaxConnections,
	)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("listener stopped")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("listener closed: %w", err)
			}
			s.logger.Warn("accept failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(acceptBackoff):
			}
			continue
		}

		if !s.sem.TryAcquire(1) {
			s.logger.Warn("connection rejected: too many in flight",
				"remote", conn.RemoteAddr().String(),
				"max_connections", s.opts.MaxConnections,
			)
			s.metrics.ConnectionRejected()
			conn.Close()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.sem.Release(1)
			s.handle(ctx, conn)
		}()
	}
}

// handle reads one payload from conn and ingests it. conn is always closed.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	logger := s.logger.With(
		"conn_id", s.connIDs.Generate(),
		"remote", conn.RemoteAddr().String(),
	)
	s.metrics.ConnectionOpened()
	result := metrics.ConnFailed
	defer func() { s.metrics.ConnectionClosed(result) }()

	// Shutdown interrupts a pending read.
	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stop()

	deadline := time.Now().Add(s.opts.ReadTimeout)
	if err := conn.SetReadDeadline(deadline); err != nil {
		logger.Warn("set read deadline failed", "error", err)
		result = metrics.ConnReadError
		return
	}

	data, err := readPayload(conn, s.opts.BufferSize, deadline, s.opts.QuietPeriod)
	if err != nil {
		logger.Warn("read failed, connection abandoned", "error", err)
		result = metrics.ConnReadError
		return
	}

	r, err := reading.ParsePayload(data)
	if err != nil {
		logger.Warn("malformed payload", "payload", string(bytes.TrimSpace(data)), "error", err)
		result = metrics.ConnParseError
		return
	}

	id, err := s.ingester.Ingest(ctx, r)
	if err != nil {
		logger.Error("ingest failed", "error", err)
		return
	}

	result = metrics.ConnIngested
	logger.Debug("payload ingested", "id", id)
}

// deadlineReader is the part of net.Conn readPayload uses.
type deadlineReader interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// readPayload reads one payload: up to a newline, EOF, or size bytes. Once
// bytes have arrived, a sender that stays silent for quiet (or until
// deadline) has also finished, and the bytes so far are the payload.
// A read error, or a deadline with nothing received, is returned.
func readPayload(r deadlineReader, size int, deadline time.Time, quiet time.Duration) ([]byte, error) {
	buf := make([]byte, size)
	n := 0
	for n < size {
		m, err := r.Read(buf[n:])
		if i := bytes.IndexByte(buf[n:n+m], '\n'); i >= 0 {
			return buf[:n+i+1], nil
		}
		n += m
		if errors.Is(err, io.EOF) {
			return buf[:n], nil
		}
		if err != nil {
			if n > 0 && errors.Is(err, os.ErrDeadlineExceeded) {
				return buf[:n], nil
			}
			return nil, err
		}

		if m > 0 && quiet > 0 {
			if next := time.Now().Add(quiet); next.Before(deadline) {
				if err := r.SetReadDeadline(next); err != nil {
					return nil, err
				}
			}
		}
	}
	return buf[:n], nil
}

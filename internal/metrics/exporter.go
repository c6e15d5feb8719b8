package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exposes metrics via HTTP on /metrics.
type Exporter struct {
	server *http.Server
	logger *slog.Logger
}

// NewExporter creates an exporter serving m on addr.
func NewExporter(addr string, m *Metrics, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	return &Exporter{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (e *Exporter) Handler() http.Handler {
	return e.server.Handler
}

// Serve accepts scrapes on ln until ctx is cancelled.
func (e *Exporter) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.server.Shutdown(shutdownCtx); err != nil {
			e.logger.Warn("metrics exporter shutdown", "error", err)
		}
	}()

	e.logger.Info("metrics exporter listening", "addr", ln.Addr().String())
	if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics exporter: %w", err)
	}
	return nil
}

// Package metrics exposes sensord counters in the Prometheus format.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sensord"

// Ingest results.
const (
	ResultOK         = "ok"
	ResultInvalid    = "invalid"
	ResultStoreError = "store_error"
)

// Connection outcomes.
const (
	ConnIngested   = "ingested"
	ConnParseError = "parse_error"
	ConnReadError  = "read_error"
	ConnRejected   = "rejected"
	ConnFailed     = "failed"
)

// Render outcomes.
const (
	RenderHit   = "hit"
	RenderMiss  = "miss"
	RenderError = "error"
)

// Metrics holds the sensord collectors, registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ingestTotal       *prometheus.CounterVec
	ingestDuration    prometheus.Histogram
	stepsTotal        *prometheus.CounterVec
	rendersTotal      *prometheus.CounterVec
	displayIndex      prometheus.Gauge
	connectionsTotal  *prometheus.CounterVec
	connectionsActive prometheus.Gauge
	info              *prometheus.GaugeVec
}

// New creates a Metrics with its own registry, including the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ingestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingest_total",
				Help:      "Readings submitted to the coordinator, by result",
			},
			[]string{"result"}, // ok/invalid/store_error
		),
		ingestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingest_duration_seconds",
				Help:      "Time from submit to render completion for an ingest",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
		stepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Step intents applied, by direction",
			},
			[]string{"direction"},
		),
		rendersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "renders_total",
				Help:      "Display renders, by outcome",
			},
			[]string{"result"}, // hit/miss/error
		),
		displayIndex: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "display_index",
				Help:      "Record id currently selected for display",
			},
		),
		connectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_total",
				Help:      "Ingestion connections handled, by outcome",
			},
			[]string{"result"},
		),
		connectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connections_active",
				Help:      "Ingestion connections currently being handled",
			},
		),
		info: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "info",
				Help:      "sensord build info",
			},
			[]string{"version", "go_version", "os", "arch"},
		),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// InitInfo sets the build info gauge.
func (m *Metrics) InitInfo(version string) {
	if m == nil {
		return
	}
	m.info.WithLabelValues(version, runtime.Version(), runtime.GOOS, runtime.GOARCH).Set(1)
}

// RecordIngest counts one ingest with its result.
func (m *Metrics) RecordIngest(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.ingestTotal.WithLabelValues(result).Inc()
	if result == ResultOK {
		m.ingestDuration.Observe(d.Seconds())
	}
}

// RecordStep counts one applied step intent.
func (m *Metrics) RecordStep(direction string) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(direction).Inc()
}

// RecordRender counts one render and its outcome.
func (m *Metrics) RecordRender(result string) {
	if m == nil {
		return
	}
	m.rendersTotal.WithLabelValues(result).Inc()
}

// SetDisplayIndex publishes the current display index.
func (m *Metrics) SetDisplayIndex(id int64) {
	if m == nil {
		return
	}
	m.displayIndex.Set(float64(id))
}

// ConnectionOpened marks a connection handler as started.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsActive.Inc()
}

// ConnectionClosed marks a connection handler as finished with result.
func (m *Metrics) ConnectionClosed(result string) {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
	m.connectionsTotal.WithLabelValues(result).Inc()
}

// ConnectionRejected counts a connection closed without being handled.
func (m *Metrics) ConnectionRejected() {
	if m == nil {
		return
	}
	m.connectionsTotal.WithLabelValues(ConnRejected).Inc()
}

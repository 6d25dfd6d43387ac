// Package metrics exposes Prometheus metrics for the bookkeeping server and
// its receipt extractor.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zombor/bookkeeping/internal/extraction"
)

const namespace = "bookkeeping"

// Recorder collects request, scan and extraction metrics in its own registry.
// It satisfies both ledger.Metrics and extraction.Observer.
type Recorder struct {
	registry *prometheus.Registry

	requestTotal       *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	scanTotal          *prometheus.CounterVec
	fieldTotal         *prometheus.CounterVec
	extractionDuration prometheus.Histogram
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"method", "route", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	scanTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "receipts",
			Name:      "scans_total",
			Help:      "Total receipt scans by result.",
		},
		[]string{"result"},
	)
	fieldTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "fields_total",
			Help:      "Extracted receipt fields by outcome.",
		},
		[]string{"field", "outcome"},
	)
	extractionDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "duration_seconds",
			Help:      "Time spent extracting fields from receipt text.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		scanTotal,
		fieldTotal,
		extractionDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Recorder{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		scanTotal:          scanTotal,
		fieldTotal:         fieldTotal,
		extractionDuration: extractionDuration,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Recorder) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Recorder) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requestTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Recorder) ObserveScan(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.scanTotal.WithLabelValues(result).Inc()
}

func (m *Recorder) ObserveField(field string, outcome extraction.Outcome) {
	m.fieldTotal.WithLabelValues(field, string(outcome)).Inc()
}

func (m *Recorder) ObserveExtraction(d time.Duration) {
	m.extractionDuration.Observe(d.Seconds())
}

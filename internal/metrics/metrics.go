// Package metrics provides Prometheus metrics for the crawl.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Labels identify the unit a metric belongs to.
type Labels struct {
	API   string
	Group string
}

// Metrics holds all Prometheus metrics for the crawl.
type Metrics struct {
	// Unit metrics
	UnitsProcessed *prometheus.CounterVec
	UnitsFailed    *prometheus.CounterVec
	UnitsSkipped   *prometheus.CounterVec

	// Output metrics
	RowsWritten  *prometheus.CounterVec
	BytesWritten *prometheus.CounterVec

	// Timing metrics
	DownloadDuration *prometheus.HistogramVec
	ConvertDuration  *prometheus.HistogramVec

	// Error metrics by stage ("download" | "convert" | "storage")
	StageErrors *prometheus.CounterVec
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Address string // Address for metrics HTTP server (e.g., ":9090")
}

var defaultMetrics *Metrics

// Init initializes the metrics package with global metrics.
// Call this once at startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "govetl"
	}

	labels := []string{"api", "group"}

	m := &Metrics{
		UnitsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_processed_total",
			Help:      "Endpoint units successfully converted to parquet.",
		}, labels),
		UnitsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_failed_total",
			Help:      "Endpoint units that failed download or conversion.",
		}, labels),
		UnitsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_skipped_total",
			Help:      "Endpoint units skipped (checkpoint, placeholder route, or empty input).",
		}, labels),
		RowsWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows written to parquet output.",
		}, labels),
		BytesWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Compressed parquet bytes written.",
		}, labels),
		DownloadDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Time spent downloading one raw file.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, labels),
		ConvertDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "convert_duration_seconds",
			Help:      "Time spent normalizing and writing one unit.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, labels),
		StageErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Errors by pipeline stage.",
		}, []string{"stage"}),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics, or nil if Init was not called.
func Get() *Metrics {
	return defaultMetrics
}

func (l Labels) values() []string {
	return []string{l.API, l.Group}
}

// IncUnitsProcessed increments the processed counter.
func (m *Metrics) IncUnitsProcessed(l Labels) {
	m.UnitsProcessed.WithLabelValues(l.values()...).Inc()
}

// IncUnitsFailed increments the failed counter.
func (m *Metrics) IncUnitsFailed(l Labels) {
	m.UnitsFailed.WithLabelValues(l.values()...).Inc()
}

// IncUnitsSkipped increments the skipped counter.
func (m *Metrics) IncUnitsSkipped(l Labels) {
	m.UnitsSkipped.WithLabelValues(l.values()...).Inc()
}

// AddRowsWritten records rows written for a unit.
func (m *Metrics) AddRowsWritten(l Labels, rows float64) {
	m.RowsWritten.WithLabelValues(l.values()...).Add(rows)
}

// AddBytesWritten records parquet bytes written for a unit.
func (m *Metrics) AddBytesWritten(l Labels, bytes float64) {
	m.BytesWritten.WithLabelValues(l.values()...).Add(bytes)
}

// ObserveDownloadDuration records one download's elapsed seconds.
func (m *Metrics) ObserveDownloadDuration(l Labels, seconds float64) {
	m.DownloadDuration.WithLabelValues(l.values()...).Observe(seconds)
}

// ObserveConvertDuration records one conversion's elapsed seconds.
func (m *Metrics) ObserveConvertDuration(l Labels, seconds float64) {
	m.ConvertDuration.WithLabelValues(l.values()...).Observe(seconds)
}

// IncStageErrors increments the error counter for a stage.
func (m *Metrics) IncStageErrors(stage string) {
	m.StageErrors.WithLabelValues(stage).Inc()
}

// Serve starts the metrics HTTP server on the configured address.
// It blocks, so run it in a goroutine.
func Serve(cfg Config) error {
	if !cfg.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(cfg.Address, mux)
}

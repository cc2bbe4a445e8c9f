package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Engine metrics
	EngineOperationsTotal   *prometheus.CounterVec
	EngineOperationDuration *prometheus.HistogramVec

	// Publish metrics
	PublishesTotal  *prometheus.CounterVec
	PublishDuration prometheus.Histogram

	// Export metrics
	ExportRunsTotal   *prometheus.CounterVec
	ExportDuration    prometheus.Histogram
	ExportedArtifacts prometheus.Gauge
	ExportedSizeMB    prometheus.Gauge

	// Blob metrics
	BlobOperationsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		EngineOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apilib_engine_operations_total",
				Help: "Total number of engine operations",
			},
			[]string{"operation", "status"},
		),
		EngineOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apilib_engine_operation_duration_seconds",
				Help:    "Engine operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		PublishesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apilib_publishes_total",
				Help: "Total number of maven repository publishes",
			},
			[]string{"status"},
		),
		PublishDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "apilib_publish_duration_seconds",
				Help:    "Maven publish duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		ExportRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apilib_export_runs_total",
				Help: "Total number of catalog export runs",
			},
			[]string{"status"},
		),
		ExportDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "apilib_export_duration_seconds",
				Help:    "Catalog export duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		ExportedArtifacts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "apilib_exported_artifacts",
				Help: "Displayed artifact count in the latest catalog export",
			},
		),
		ExportedSizeMB: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "apilib_exported_size_megabytes",
				Help: "Displayed artifact size in the latest catalog export",
			},
		),
		BlobOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apilib_blob_operations_total",
				Help: "Total number of blob store operations",
			},
			[]string{"operation", "status"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.EngineOperationsTotal,
		m.EngineOperationDuration,
		m.PublishesTotal,
		m.PublishDuration,
		m.ExportRunsTotal,
		m.ExportDuration,
		m.ExportedArtifacts,
		m.ExportedSizeMB,
		m.BlobOperationsTotal,
	)

	return m
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

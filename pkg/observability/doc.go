// Package observability provides structured JSON logging, Prometheus
// metrics, and OpenTelemetry tracing bootstrap for the API library server.
//
// Create a logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("artifact_id", id).Info("artifact published")
//
// Register metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.EngineOperationsTotal.WithLabelValues("update", "ok").Inc()
//
// Tracing is initialized once at startup with InitOTel; the S3 blob
// backend picks up the global tracer provider.
package observability

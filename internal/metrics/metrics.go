package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "mongotable"
	subsystem = "export"
)

// Metrics struct manages all Prometheus metrics.
type Metrics struct {
	// Export metrics.
	exportsTotal   *prometheus.CounterVec
	rowsTotal      *prometheus.CounterVec
	columns        *prometheus.GaugeVec
	exportDuration *prometheus.HistogramVec
	exportErrors   *prometheus.CounterVec

	// Sink metrics.
	loadedItems *prometheus.CounterVec
	loadErrors  *prometheus.CounterVec

	gatherer prometheus.Gatherer

	// HTTP server.
	server *http.Server
}

// NewMetrics creates a new Metrics instance registered on the default registry.
func NewMetrics() *Metrics {
	m := &Metrics{gatherer: prometheus.DefaultGatherer}
	m.initMetricsWithRegistry(prometheus.DefaultRegisterer)
	return m
}

// NewMetricsWithRegistry creates a new Metrics instance (for testing).
func NewMetricsWithRegistry(registry *prometheus.Registry) *Metrics {
	m := &Metrics{gatherer: registry}
	m.initMetricsWithRegistry(registry)
	return m
}

// initMetricsWithRegistry initializes metrics in the specified registry.
func (m *Metrics) initMetricsWithRegistry(registry prometheus.Registerer) {
	m.exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "exports_total",
			Help:      "Total number of collection exports",
		},
		[]string{"collection", "database", "status"},
	)

	m.rowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rows_total",
			Help:      "Number of table rows produced by exports",
		},
		[]string{"collection", "database"},
	)

	m.columns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "columns",
			Help:      "Number of columns in the last exported table",
		},
		[]string{"collection", "database"},
	)

	m.exportDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duration_seconds",
			Help:      "Time taken to export a collection (seconds)",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"collection", "database", "status"},
	)

	m.exportErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors while exporting from MongoDB",
		},
		[]string{"collection", "database", "op"},
	)

	m.loadedItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "loaded_items_total",
			Help:      "Number of table rows written to DynamoDB",
		},
		[]string{"table"},
	)

	m.loadErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "load_errors_total",
			Help:      "Total number of errors while loading rows into DynamoDB",
		},
		[]string{"table", "error_type"},
	)

	// Register all metrics in the specified registry.
	registry.MustRegister(
		m.exportsTotal,
		m.rowsTotal,
		m.columns,
		m.exportDuration,
		m.exportErrors,
		m.loadedItems,
		m.loadErrors,
	)
}

// StartMetricsServer serves /metrics on addr until ctx is cancelled.
func (m *Metrics) StartMetricsServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.GetMetricsHandler())

	m.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Start server in a goroutine.
	errChan := make(chan error, 1)
	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("failed to start metrics server: %w", err)
		}
	}()

	// Wait for context cancellation or server error.
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := m.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown metrics server: %w", err)
		}
		return nil
	case err := <-errChan:
		return err
	}
}

// StopMetricsServer stops the metrics server.
func (m *Metrics) StopMetricsServer() error {
	if m.server != nil {
		if err := m.server.Close(); err != nil {
			return fmt.Errorf("failed to stop metrics server: %w", err)
		}
	}
	return nil
}

// RecordExport records the outcome of one export.
func (m *Metrics) RecordExport(collection, database, status string, rows, columns int, duration time.Duration) {
	m.exportsTotal.WithLabelValues(collection, database, status).Inc()
	m.exportDuration.WithLabelValues(collection, database, status).Observe(duration.Seconds())
	if status == "success" {
		m.rowsTotal.WithLabelValues(collection, database).Add(float64(rows))
		m.columns.WithLabelValues(collection, database).Set(float64(columns))
	}
}

// IncrementExportErrors increments the number of export errors for op.
func (m *Metrics) IncrementExportErrors(collection, database, op string) {
	m.exportErrors.WithLabelValues(collection, database, op).Inc()
}

// AddLoadedItems adds count to the rows written to a DynamoDB table.
func (m *Metrics) AddLoadedItems(table string, count int) {
	m.loadedItems.WithLabelValues(table).Add(float64(count))
}

// IncrementLoadErrors increments the number of DynamoDB load errors.
func (m *Metrics) IncrementLoadErrors(table, errorType string) {
	m.loadErrors.WithLabelValues(table, errorType).Inc()
}

// GetMetricsHandler returns the metrics HTTP handler for this instance's registry.
func (m *Metrics) GetMetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Package prometheus implements the pkg/metrics interfaces on the global
// Prometheus registry.
package prometheus

import (
	"time"

	"github.com/marmos91/simfs/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// consoleMetrics is the Prometheus implementation of metrics.ConsoleMetrics.
type consoleMetrics struct {
	requestsTotal          *prometheus.CounterVec
	requestDuration        *prometheus.HistogramVec
	requestsInFlight       *prometheus.GaugeVec
	activeConnections      prometheus.Gauge
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	rateLimited            prometheus.Counter
}

// NewConsoleMetrics creates a Prometheus-backed ConsoleMetrics.
//
// Returns a no-op implementation if metrics are not enabled.
func NewConsoleMetrics() metrics.ConsoleMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopConsoleMetrics()
	}

	reg := metrics.GetRegistry()

	return &consoleMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "simfs_console_requests_total",
				Help: "Total number of console RPCs by procedure and status",
			},
			[]string{"procedure", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "simfs_console_request_duration_milliseconds",
				Help: "Duration of console RPCs in milliseconds",
				Buckets: []float64{
					0.1,  // 100us
					1,    // 1ms
					10,   // 10ms
					100,  // 100ms
					1000, // 1s
				},
			},
			[]string{"procedure"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "simfs_console_requests_in_flight",
				Help: "Current number of console RPCs being processed",
			},
			[]string{"procedure"},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "simfs_console_active_connections",
				Help: "Current number of active console connections",
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "simfs_console_connections_accepted_total",
				Help: "Total number of console connections accepted",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "simfs_console_connections_closed_total",
				Help: "Total number of console connections closed",
			},
		),
		connectionsForceClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "simfs_console_connections_force_closed_total",
				Help: "Total number of console connections force-closed during shutdown timeout",
			},
		),
		rateLimited: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "simfs_console_rate_limited_total",
				Help: "Total number of console RPCs rejected by the rate limiter",
			},
		),
	}
}

func (m *consoleMetrics) RecordRequest(procedure string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.requestsTotal.WithLabelValues(procedure, status).Inc()
	m.requestDuration.WithLabelValues(procedure).Observe(duration.Seconds() * 1000)
}

func (m *consoleMetrics) RecordRequestStart(procedure string) {
	m.requestsInFlight.WithLabelValues(procedure).Inc()
}

func (m *consoleMetrics) RecordRequestEnd(procedure string) {
	m.requestsInFlight.WithLabelValues(procedure).Dec()
}

func (m *consoleMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *consoleMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *consoleMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *consoleMetrics) RecordConnectionForceClosed() {
	m.connectionsForceClosed.Inc()
}

func (m *consoleMetrics) RecordRateLimited() {
	m.rateLimited.Inc()
}

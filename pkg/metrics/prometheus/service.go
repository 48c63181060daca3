package prometheus

import (
	"time"

	"github.com/marmos91/simfs/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type serviceMetrics struct {
	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	authTotal       *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	notifications   *prometheus.CounterVec
}

// NewServiceMetrics creates a Prometheus-backed ServiceMetrics.
//
// Returns a no-op implementation if metrics are not enabled.
func NewServiceMetrics() metrics.ServiceMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopServiceMetrics()
	}

	reg := metrics.GetRegistry()

	return &serviceMetrics{
		commandsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "simfs_commands_total",
				Help: "Total number of executed commands by verb, status and error code",
			},
			[]string{"verb", "status", "error_code"},
		),
		commandDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "simfs_command_duration_microseconds",
				Help:    "Duration of command execution in microseconds",
				Buckets: []float64{1, 10, 100, 1000, 10000},
			},
			[]string{"verb"},
		),
		authTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "simfs_auth_total",
				Help: "Total number of Authorize/Deauthorize calls by outcome",
			},
			[]string{"operation", "status", "error_code"},
		),
		activeSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "simfs_active_sessions",
				Help: "Current number of registered sessions",
			},
		),
		notifications: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "simfs_notifications_total",
				Help: "Total number of change notifications by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func status(errorCode string) string {
	if errorCode == "" {
		return "success"
	}
	return "error"
}

func (m *serviceMetrics) RecordCommand(verb string, duration time.Duration, errorCode string) {
	m.commandsTotal.WithLabelValues(verb, status(errorCode), errorCode).Inc()
	m.commandDuration.WithLabelValues(verb).Observe(float64(duration.Microseconds()))
}

func (m *serviceMetrics) RecordAuth(operation string, errorCode string) {
	m.authTotal.WithLabelValues(operation, status(errorCode), errorCode).Inc()
}

func (m *serviceMetrics) SetActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

func (m *serviceMetrics) RecordNotification(delivered bool) {
	outcome := "delivered"
	if !delivered {
		outcome = "dropped"
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

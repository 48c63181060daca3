package config

import (
	"github.com/marmos91/simfs/pkg/metrics"
	promMetrics "github.com/marmos91/simfs/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// ConsoleMetrics is never nil; it is a noop when metrics are disabled
	ConsoleMetrics metrics.ConsoleMetrics

	// ServiceMetrics is never nil; it is a noop when metrics are disabled
	ServiceMetrics metrics.ServiceMetrics
}

// InitializeMetrics creates the metrics components. When metrics are enabled
// it initializes the global Prometheus registry before creating collectors,
// so it must run before anything records.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			ConsoleMetrics: metrics.NewNoopConsoleMetrics(),
			ServiceMetrics: metrics.NewNoopServiceMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server:         server,
		ConsoleMetrics: promMetrics.NewConsoleMetrics(),
		ServiceMetrics: promMetrics.NewServiceMetrics(),
	}
}

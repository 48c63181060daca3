// Package metrics defines the metrics interfaces of the simfs components and
// owns the process-wide Prometheus registry.
//
// Metrics are optional. Until InitRegistry is called every constructor in
// pkg/metrics/prometheus returns a no-op implementation, so the console
// adapter and the service can always record unconditionally.
//
// Usage:
//
//	metrics.InitRegistry()
//	consoleMetrics := prometheus.NewConsoleMetrics()
//	serviceMetrics := prometheus.NewServiceMetrics()
//
//	// Or nil for no-op behavior
//	adapter := console.New(cfg, nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry for all simfs metrics
	// Protected by registryOnce for write-once, read-many pattern
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// This must be called before creating any metrics instances. It's safe to call
// multiple times - subsequent calls are ignored.
//
// If it is never called GetRegistry returns nil and the constructors fall
// back to no-op implementations.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry.
//
// Returns nil while metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}

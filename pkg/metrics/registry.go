// Package metrics provides statistics collection for DittoNet servers.
//
// Every server keeps in-memory Stats. Prometheus export is optional: if the
// global registry is not initialized, exporters fall back to no-op
// implementations.
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Create exporter and hand it to the server
//	m := prometheus.NewServerMetrics(nil)
//	srv, _ := server.New(cfg, server.WithMetrics(m))
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	promRegistry *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry. Subsequent calls
// are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		promRegistry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return promRegistry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}

package config

import (
	"github.com/marmos91/dittonet/pkg/metrics"
	promMetrics "github.com/marmos91/dittonet/pkg/metrics/prometheus"
	"github.com/marmos91/dittonet/pkg/registry"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the admin HTTP server (nil if disabled)
	Server *metrics.Server

	// ServerMetrics is the exporter for the accept engine (never nil, noop if disabled)
	ServerMetrics metrics.ServerMetrics
}

// InitializeMetrics creates the metrics components described by cfg.
//
// If metrics are enabled, the global Prometheus registry is initialized and
// an admin server is built around sessions and stats. Either callback may be
// nil. If metrics are disabled, the result carries a nil server and a no-op
// exporter.
func InitializeMetrics(cfg *Config, sessions func() []registry.Info, stats func() metrics.StatsSnapshot) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			ServerMetrics: metrics.NewNoopServerMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port:     cfg.Metrics.Port,
		Sessions: sessions,
		Stats:    stats,
	})

	return &MetricsResult{
		Server:        server,
		ServerMetrics: promMetrics.NewServerMetrics(nil),
	}
}

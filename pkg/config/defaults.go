package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittonet/pkg/event"
	"github.com/marmos91/dittonet/pkg/server"
	"github.com/marmos91/dittonet/pkg/socket"
)

const (
	// DefaultPort is the port the CLI listens on when none is configured.
	DefaultPort = 9000

	// DefaultMetricsPort is the admin server port.
	DefaultMetricsPort = 9090
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults, explicit values are preserved.
// Server fields whose zero value is meaningful (Port, Backlog, MaxInactivity,
// MaxAcceptRate) are left alone. Load supplies DefaultPort when the port is
// absent from every source, so an explicit 0 still selects an ephemeral port.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets accept engine defaults.
func applyServerDefaults(cfg *server.Config) {
	if cfg.KeepAlivePeriod == 0 {
		cfg.KeepAlivePeriod = socket.DefaultKeepAlivePeriod
	}
	if cfg.ReceiveBufferSize == 0 {
		cfg.ReceiveBufferSize = event.DefaultBufferSize
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.AcceptRetryDelay == 0 {
		cfg.AcceptRetryDelay = server.DefaultAcceptRetryDelay
	}
	// CompletionWorkers stays 0 so the server sizes it to the host.
}

// applyMetricsDefaults sets admin server defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for generating sample configuration files, tests and
// documentation.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Server: server.Config{
			Port:               DefaultPort,
			MaxInactivity:      300,
			MetricsLogInterval: 5 * time.Minute,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}

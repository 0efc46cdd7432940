package config

import (
	"testing"
	"time"

	"github.com/marmos91/dittonet/pkg/server"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_NormalizesLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "DEBUG"},
		{"Info", "INFO"},
		{"warn", "WARN"},
		{"ERROR", "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cfg := &Config{Logging: LoggingConfig{Level: tt.input}}
			ApplyDefaults(cfg)

			if cfg.Logging.Level != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, cfg.Logging.Level)
			}
		})
	}
}

func TestApplyDefaults_Server(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.Port != 0 {
		t.Errorf("Expected port 0 to be kept, got %d", cfg.Server.Port)
	}
	if cfg.Server.AcceptRetryDelay != server.DefaultAcceptRetryDelay {
		t.Errorf("Expected accept retry delay %v, got %v", server.DefaultAcceptRetryDelay, cfg.Server.AcceptRetryDelay)
	}
	if cfg.Server.KeepAlivePeriod != 15*time.Second {
		t.Errorf("Expected keep-alive 15s, got %v", cfg.Server.KeepAlivePeriod)
	}
	if cfg.Server.ReceiveBufferSize != 4096 {
		t.Errorf("Expected receive buffer 4096, got %d", cfg.Server.ReceiveBufferSize)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}

	// Zero is meaningful for these and must survive.
	if cfg.Server.Backlog != 0 {
		t.Errorf("Expected backlog 0, got %d", cfg.Server.Backlog)
	}
	if cfg.Server.MaxInactivity != 0 {
		t.Errorf("Expected max inactivity 0, got %d", cfg.Server.MaxInactivity)
	}
	if cfg.Server.CompletionWorkers != 0 {
		t.Errorf("Expected completion workers 0, got %d", cfg.Server.CompletionWorkers)
	}
	if cfg.Server.MaxAcceptRate != 0 {
		t.Errorf("Expected unlimited accept rate, got %v", cfg.Server.MaxAcceptRate)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "DEBUG",
			Format: "json",
			Output: "stderr",
		},
		Server: server.Config{
			Port:              8123,
			KeepAlivePeriod:   time.Minute,
			ReceiveBufferSize: 65536,
			ShutdownTimeout:   5 * time.Second,
		},
		Metrics: MetricsConfig{
			Port: 9555,
		},
	}

	ApplyDefaults(cfg)

	if cfg.Logging.Format != "json" || cfg.Logging.Output != "stderr" {
		t.Errorf("Logging values overwritten: %+v", cfg.Logging)
	}
	if cfg.Server.Port != 8123 {
		t.Errorf("Expected port 8123, got %d", cfg.Server.Port)
	}
	if cfg.Server.KeepAlivePeriod != time.Minute {
		t.Errorf("Expected keep-alive 1m, got %v", cfg.Server.KeepAlivePeriod)
	}
	if cfg.Server.ReceiveBufferSize != 65536 {
		t.Errorf("Expected receive buffer 65536, got %d", cfg.Server.ReceiveBufferSize)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected shutdown timeout 5s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Metrics.Port != 9555 {
		t.Errorf("Expected metrics port 9555, got %d", cfg.Metrics.Port)
	}
}

func TestApplyDefaults_Metrics(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Expected metrics port %d, got %d", DefaultMetricsPort, cfg.Metrics.Port)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
}

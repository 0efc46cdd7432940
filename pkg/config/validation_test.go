package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	err := Validate(cfg)
	if err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_LowercaseLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "debug"

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected lowercase level to pass, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_EmptyLogOutput(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Output = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for empty log output")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("Expected 'required' validation error, got: %v", err)
	}
}

func TestValidate_ServerFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		tag    string
	}{
		{
			name:   "port too large",
			mutate: func(c *Config) { c.Server.Port = 65536 },
			tag:    "max",
		},
		{
			name:   "negative port",
			mutate: func(c *Config) { c.Server.Port = -1 },
			tag:    "min",
		},
		{
			name:   "negative backlog",
			mutate: func(c *Config) { c.Server.Backlog = -1 },
			tag:    "min",
		},
		{
			name:   "negative max inactivity",
			mutate: func(c *Config) { c.Server.MaxInactivity = -1 },
			tag:    "min",
		},
		{
			name:   "negative retry delay",
			mutate: func(c *Config) { c.Server.AcceptRetryDelay = -time.Second },
			tag:    "min",
		},
		{
			name:   "negative accept rate",
			mutate: func(c *Config) { c.Server.MaxAcceptRate = -1 },
			tag:    "min",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.tag) {
				t.Errorf("Expected %q validation error, got: %v", tt.tag, err)
			}
		})
	}
}

func TestValidate_MetricsPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Port = 70000

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid metrics port")
	}
}

func TestValidate_BurstWithoutRate(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.AcceptBurst = 10

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for burst without rate")
	}
	if !strings.Contains(err.Error(), "accept_burst") {
		t.Errorf("Expected accept_burst error, got: %v", err)
	}

	cfg.Server.MaxAcceptRate = 50
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected burst with rate to pass, got: %v", err)
	}
}

func TestValidate_MetricsPortConflict(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = cfg.Server.Port

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for port conflict")
	}
	if !strings.Contains(err.Error(), "already used") {
		t.Errorf("Expected port conflict error, got: %v", err)
	}

	// Same ports are fine while the admin server is off.
	cfg.Metrics.Enabled = false
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected disabled metrics to pass, got: %v", err)
	}
}

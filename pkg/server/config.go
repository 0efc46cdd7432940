package server

import (
	"fmt"
	"net"
	"runtime"
	"strconv"
	"time"

	"github.com/marmos91/dittonet/pkg/event"
	"github.com/marmos91/dittonet/pkg/socket"
)

const (
	// DefaultAcceptRetryDelay is the first delay before re-issuing an accept
	// that failed with a transient error.
	DefaultAcceptRetryDelay = 100 * time.Millisecond

	// MaxAcceptRetryDelay caps the doubling of the retry delay while accepts
	// keep failing.
	MaxAcceptRetryDelay = time.Second
)

// Config holds configuration parameters for the accept engine.
//
// Zero values are replaced with defaults by New, except where zero has a
// meaning of its own (Port, Backlog, MaxInactivity, MaxAcceptRate,
// MetricsLogInterval).
//
// Default values:
//   - Port: 0 (ephemeral, see Server.Port)
//   - Backlog: 0 (largest queue the OS allows)
//   - MaxInactivity: 0 (no idle timeout)
//   - KeepAlivePeriod: 15s
//   - ReceiveBufferSize: 4096
//   - CompletionWorkers: runtime.NumCPU()
//   - AcceptRetryDelay: 100ms
//   - ShutdownTimeout: 30s
type Config struct {
	// Address is the interface to bind. Empty binds every interface, over
	// IPv4 and IPv6 where the host supports both.
	Address string `mapstructure:"address" yaml:"address"`

	// Port is the TCP port to listen on. 0 lets the OS pick one.
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`

	// Backlog is the pending-connection queue length passed to listen(2).
	// 0 requests the maximum; the kernel caps it silently.
	Backlog int `mapstructure:"backlog" yaml:"backlog" validate:"min=0"`

	// MaxInactivity closes a session after this many seconds without
	// receiving data. 0 disables the timeout.
	MaxInactivity int `mapstructure:"max_inactivity" yaml:"max_inactivity" validate:"min=0"`

	// LowLatency keeps 10 accepts per logical CPU outstanding instead of one.
	LowLatency bool `mapstructure:"low_latency" yaml:"low_latency"`

	// KeepAlivePeriod is the idle time before TCP keep-alive probes start on
	// admitted connections.
	KeepAlivePeriod time.Duration `mapstructure:"keep_alive_period" yaml:"keep_alive_period" validate:"min=0"`

	// ReceiveBufferSize is the size of the buffer each session receives into.
	ReceiveBufferSize int `mapstructure:"receive_buffer_size" yaml:"receive_buffer_size" validate:"min=0"`

	// CompletionWorkers is the number of goroutines processing completions.
	CompletionWorkers int `mapstructure:"completion_workers" yaml:"completion_workers" validate:"min=0"`

	// AcceptRetryDelay delays re-issuing an accept after it failed with a
	// transient error. The delay doubles with every consecutive failure up to
	// MaxAcceptRetryDelay and resets once an accept succeeds.
	AcceptRetryDelay time.Duration `mapstructure:"accept_retry_delay" yaml:"accept_retry_delay" validate:"min=0"`

	// MaxAcceptRate limits admissions per second; excess connections are
	// refused like a veto. 0 disables the limit.
	MaxAcceptRate float64 `mapstructure:"max_accept_rate" yaml:"max_accept_rate" validate:"min=0"`

	// AcceptBurst is the number of admissions allowed above MaxAcceptRate in
	// a burst. 0 uses MaxAcceptRate.
	AcceptBurst int `mapstructure:"accept_burst" yaml:"accept_burst" validate:"min=0"`

	// ShutdownTimeout bounds the shutdown performed by Serve.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"min=0"`

	// MetricsLogInterval is the interval at which accept and receive rates
	// are logged. 0 disables periodic logging.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" yaml:"metrics_log_interval" validate:"min=0"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *Config) applyDefaults() {
	if c.KeepAlivePeriod == 0 {
		c.KeepAlivePeriod = socket.DefaultKeepAlivePeriod
	}
	if c.ReceiveBufferSize == 0 {
		c.ReceiveBufferSize = event.DefaultBufferSize
	}
	if c.CompletionWorkers == 0 {
		c.CompletionWorkers = runtime.NumCPU()
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.AcceptRetryDelay == 0 {
		c.AcceptRetryDelay = DefaultAcceptRetryDelay
	}
}

// validate checks the configuration after defaults are applied.
func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.Backlog < 0 {
		return fmt.Errorf("invalid Backlog %d: must be >= 0", c.Backlog)
	}
	if c.MaxInactivity < 0 {
		return fmt.Errorf("invalid MaxInactivity %d: must be >= 0", c.MaxInactivity)
	}
	if c.KeepAlivePeriod < 0 {
		return fmt.Errorf("invalid KeepAlivePeriod %v: must be >= 0", c.KeepAlivePeriod)
	}
	if c.ReceiveBufferSize <= 0 {
		return fmt.Errorf("invalid ReceiveBufferSize %d: must be > 0", c.ReceiveBufferSize)
	}
	if c.CompletionWorkers <= 0 {
		return fmt.Errorf("invalid CompletionWorkers %d: must be > 0", c.CompletionWorkers)
	}
	if c.AcceptRetryDelay < 0 {
		return fmt.Errorf("invalid AcceptRetryDelay %v: must be >= 0", c.AcceptRetryDelay)
	}
	if c.MaxAcceptRate < 0 {
		return fmt.Errorf("invalid MaxAcceptRate %v: must be >= 0", c.MaxAcceptRate)
	}
	if c.AcceptBurst < 0 {
		return fmt.Errorf("invalid AcceptBurst %d: must be >= 0", c.AcceptBurst)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	if c.MetricsLogInterval < 0 {
		return fmt.Errorf("invalid MetricsLogInterval %v: must be >= 0", c.MetricsLogInterval)
	}
	return nil
}

// ListenAddress returns the "host:port" the server binds.
func (c Config) ListenAddress() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// MaxInactivityDuration returns MaxInactivity as a duration.
func (c Config) MaxInactivityDuration() time.Duration {
	return time.Duration(c.MaxInactivity) * time.Second
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const configHeader = `# DittoNet Configuration File
#
# Every key can be overridden with an environment variable: prefix with
# DITTONET_, join nested keys with "_" and upper-case the result.
# Example: DITTONET_SERVER_LOW_LATENCY=true`

// keyComments documents the generated file, keyed by dotted path.
var keyComments = map[string]string{
	"logging":        "Logging configuration",
	"logging.level":  "Minimum level: DEBUG, INFO, WARN, ERROR",
	"logging.format": "Line format: text or json",
	"logging.output": "stdout, stderr or a file path",

	"server":                      "Accept engine configuration",
	"server.address":              "Interface to bind; empty binds every interface",
	"server.port":                 "TCP port; 0 picks an ephemeral port",
	"server.backlog":              "Pending-connection queue length; 0 requests the OS maximum",
	"server.max_inactivity":       "Seconds without data before a session is closed; 0 disables",
	"server.low_latency":          "Keep 10 accepts per logical CPU outstanding instead of 1",
	"server.keep_alive_period":    "Idle time before TCP keep-alive probes start",
	"server.receive_buffer_size":  "Bytes each session receives into",
	"server.completion_workers":   "Completion worker goroutines; 0 uses the CPU count",
	"server.accept_retry_delay":   "First delay before re-issuing a failed accept; doubles per failure up to 1s",
	"server.max_accept_rate":      "Admissions per second; 0 is unlimited",
	"server.accept_burst":         "Admissions allowed above the rate in a burst",
	"server.shutdown_timeout":     "Upper bound for graceful shutdown",
	"server.metrics_log_interval": "Interval of the periodic metrics log line; 0 disables",

	"metrics":         "Admin HTTP server (/metrics, /sessions, /stats, /healthz)",
	"metrics.enabled": "Start the admin server and export Prometheus metrics",
	"metrics.port":    "Admin server port",
}

// InitConfig writes a default configuration file to the default location
// and returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg as YAML with a comment above every
// known key.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var root yaml.Node
	if err := root.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	annotate(&root, "")

	doc := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: configHeader,
		Content:     []*yaml.Node{&root},
	}

	var sb strings.Builder
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	return sb.String(), nil
}

func annotate(node *yaml.Node, prefix string) {
	if node.Kind != yaml.MappingNode {
		return
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]

		path := key.Value
		if prefix != "" {
			path = prefix + "." + key.Value
		}
		if comment, ok := keyComments[path]; ok {
			key.HeadComment = comment
		}

		annotate(value, path)
	}
}

// Package config loads the runtime configuration from a yaml file with
// environment expansion, defaults, and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses yaml values like "30s" or "5m" into a time.Duration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`
	// DSN is the sqlite database path (backend: sqlite).
	DSN string `yaml:"dsn"`
}

// SessionConfig bounds session lifetime.
type SessionConfig struct {
	TTL           Duration `yaml:"ttl"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

// ProposalsConfig bounds proposal lifetime.
type ProposalsConfig struct {
	// PendingTTL discards proposals never confirmed.
	PendingTTL Duration `yaml:"pending_ttl"`
	// Retention removes executed/discarded proposals.
	Retention Duration `yaml:"retention"`
}

// SpecialistConfig declares one A2A target and its timeout budget.
type SpecialistConfig struct {
	Name    string   `yaml:"name"`
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// ObservabilityConfig configures logging, metrics, and tracing.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// MetricsAddr serves Prometheus metrics when non-empty (e.g. ":9090").
	MetricsAddr string `yaml:"metrics_addr"`
	// TraceEndpoint is the OTLP gRPC collector; empty disables tracing.
	TraceEndpoint string `yaml:"trace_endpoint"`
	TraceInsecure bool   `yaml:"trace_insecure"`
}

// Config is the full runtime configuration.
type Config struct {
	Store         StoreConfig         `yaml:"store"`
	Session       SessionConfig       `yaml:"session"`
	Proposals     ProposalsConfig     `yaml:"proposals"`
	Specialists   []SpecialistConfig  `yaml:"specialists"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Backend: "memory"},
		Session: SessionConfig{
			TTL:           Duration(30 * time.Minute),
			SweepInterval: Duration(time.Minute),
		},
		Proposals: ProposalsConfig{
			PendingTTL: Duration(15 * time.Minute),
			Retention:  Duration(24 * time.Hour),
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load reads, env-expands, and validates a yaml configuration file.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot boot.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(c.Store.DSN) == "" {
			return fmt.Errorf("store.dsn is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	seen := map[string]bool{}
	for i, sp := range c.Specialists {
		if strings.TrimSpace(sp.Name) == "" {
			return fmt.Errorf("specialists[%d]: name is required", i)
		}
		if seen[sp.Name] {
			return fmt.Errorf("specialists[%d]: duplicate name %q", i, sp.Name)
		}
		seen[sp.Name] = true
		if strings.TrimSpace(sp.URL) == "" {
			return fmt.Errorf("specialist %q: url is required", sp.Name)
		}
	}
	return nil
}

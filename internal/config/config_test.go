package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stagecraft.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: sqlite
  dsn: /tmp/stagecraft.db
session:
  ttl: 45m
  sweep_interval: 30s
proposals:
  pending_ttl: 10m
  retention: 12h
specialists:
  - name: designer
    url: http://localhost:8081/a2a
    timeout: 20s
observability:
  log_level: debug
  log_format: text
  metrics_addr: ":9090"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.DSN != "/tmp/stagecraft.db" {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Session.TTL.Std() != 45*time.Minute {
		t.Errorf("expected 45m ttl, got %v", cfg.Session.TTL.Std())
	}
	if cfg.Proposals.PendingTTL.Std() != 10*time.Minute {
		t.Errorf("expected 10m pending ttl, got %v", cfg.Proposals.PendingTTL.Std())
	}
	if len(cfg.Specialists) != 1 || cfg.Specialists[0].Timeout.Std() != 20*time.Second {
		t.Errorf("unexpected specialists: %+v", cfg.Specialists)
	}
	if cfg.Observability.LogLevel != "debug" || cfg.Observability.MetricsAddr != ":9090" {
		t.Errorf("unexpected observability: %+v", cfg.Observability)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: memory
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Session.TTL.Std() != 30*time.Minute {
		t.Errorf("expected default session ttl, got %v", cfg.Session.TTL.Std())
	}
	if cfg.Proposals.Retention.Std() != 24*time.Hour {
		t.Errorf("expected default retention, got %v", cfg.Proposals.Retention.Std())
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("STAGECRAFT_TEST_DSN", "/var/data/craft.db")
	path := writeConfig(t, `
store:
  backend: sqlite
  dsn: ${STAGECRAFT_TEST_DSN}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Store.DSN != "/var/data/craft.db" {
		t.Errorf("expected env expansion, got %q", cfg.Store.DSN)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Store.Backend = "postgres" },
			wantErr: true,
		},
		{
			name:    "sqlite requires dsn",
			mutate:  func(c *Config) { c.Store.Backend = "sqlite" },
			wantErr: true,
		},
		{
			name: "specialist needs name",
			mutate: func(c *Config) {
				c.Specialists = []SpecialistConfig{{URL: "http://x"}}
			},
			wantErr: true,
		},
		{
			name: "specialist needs url",
			mutate: func(c *Config) {
				c.Specialists = []SpecialistConfig{{Name: "designer"}}
			},
			wantErr: true,
		},
		{
			name: "duplicate specialist names",
			mutate: func(c *Config) {
				c.Specialists = []SpecialistConfig{
					{Name: "designer", URL: "http://a"},
					{Name: "designer", URL: "http://b"},
				}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "store: [not a map")); err == nil {
		t.Error("expected error for malformed yaml")
	}
	if _, err := Load(writeConfig(t, "session:\n  ttl: banana\n")); err == nil {
		t.Error("expected error for invalid duration")
	}
}

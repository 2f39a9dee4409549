package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CONFIG_FILE", "PORT", "REDIS_URL", "STORE_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != "3000" {
		t.Errorf("expected port 3000, got %s", cfg.Server.Port)
	}
	if cfg.Store.URL != DefaultStoreURL {
		t.Errorf("expected store url %s, got %s", DefaultStoreURL, cfg.Store.URL)
	}
	if !cfg.Store.Defaulted {
		t.Error("expected store url to be marked as defaulted")
	}
	if cfg.Addr() != ":3000" {
		t.Errorf("expected addr :3000, got %s", cfg.Addr())
	}
}

func TestLoadEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("REDIS_URL", "redis://:secret@cache:6380/2")
	t.Setenv("STORE_TIMEOUT", "750ms")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Store.Defaulted {
		t.Error("expected store url not to be defaulted")
	}
	if cfg.Store.OperationTimeout.Duration != 750*time.Millisecond {
		t.Errorf("expected store timeout 750ms, got %s", cfg.Store.OperationTimeout)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("unexpected logging config %+v", cfg.Logging)
	}
	if got := cfg.RedactedStoreURL(); got != "redis://:xxxxx@cache:6380/2" {
		t.Errorf("expected redacted url, got %s", got)
	}
}

func TestLoadInvalidStoreTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_TIMEOUT", "soon")

	if _, err := Load(); err == nil {
		t.Error("expected error for invalid STORE_TIMEOUT")
	}
}

func TestLoadFromJSON(t *testing.T) {
	content := `{
  "server": {"port": "127.0.0.1:9000", "shutdown_timeout": "5s"},
  "store": {"url": "memory://"},
  "metrics": {"collection_interval": "1s"}
}`
	path := filepath.Join(t.TempDir(), "gateway.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	cfg, err := LoadFromJSON(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Addr() != "127.0.0.1:9000" {
		t.Errorf("expected addr 127.0.0.1:9000, got %s", cfg.Addr())
	}
	if cfg.Server.ShutdownTimeout.Duration != 5*time.Second {
		t.Errorf("expected shutdown timeout 5s, got %s", cfg.Server.ShutdownTimeout)
	}
	// untouched fields keep their defaults
	if cfg.Server.MaxBodyBytes != 1<<20 {
		t.Errorf("expected default body limit, got %d", cfg.Server.MaxBodyBytes)
	}
	if cfg.Store.URL != "memory://" {
		t.Errorf("expected memory store, got %s", cfg.Store.URL)
	}
}

func TestLoadFromJSONUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.json")
	if err := os.WriteFile(path, []byte(`{"server": {"hostname": "x"}}`), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	if _, err := LoadFromJSON(path); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "gateway.json")
	if err := os.WriteFile(path, []byte(`{"server": {"port": "4000"}, "store": {"url": "memory://"}}`), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "5000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.Port != "5000" {
		t.Errorf("expected environment to override file, got port %s", cfg.Server.Port)
	}
	if cfg.Store.URL != "memory://" || cfg.Store.Defaulted {
		t.Errorf("expected store url from file, got %s", cfg.Store.URL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"zero body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }},
		{"zero interval", func(c *Config) { c.Metrics.CollectionInterval = Duration{} }},
		{"unknown format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

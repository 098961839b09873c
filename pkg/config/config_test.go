package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dayflow/dayflow/pkg/fault"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dayflow.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default configuration must validate, got %v", err)
	}
}

func TestLoadWithoutPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.Logging.Level)
	}
	if cfg.Queue.Capacity != 100 || !cfg.Queue.Durable {
		t.Errorf("Unexpected queue defaults: %+v", cfg.Queue)
	}
	if cfg.Workday.StartHour != 9 || cfg.Workday.EndHour != 17 {
		t.Errorf("Unexpected workday defaults: %+v", cfg.Workday)
	}
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
proposals:
  ttl: 2h
workday:
  start_hour: 8
  end_hour: 18
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug level from file, got %s", cfg.Logging.Level)
	}
	if cfg.Proposals.TTL.D() != 2*time.Hour {
		t.Errorf("Expected 2h TTL, got %v", cfg.Proposals.TTL)
	}
	if cfg.Workday.StartHour != 8 || cfg.Workday.EndHour != 18 {
		t.Errorf("Expected workday from file, got %+v", cfg.Workday)
	}
	// Untouched sections keep their defaults.
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Expected default retry attempts, got %d", cfg.Retry.MaxAttempts)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Expected error for missing explicit config file")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "logging: [not a mapping")

	_, err := Load(path)
	if !fault.IsValidation(err) {
		t.Fatalf("Expected validation fault, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"zero ttl", func(c *Config) { c.Proposals.TTL = 0 }},
		{"inverted workday", func(c *Config) { c.Workday.StartHour = 18; c.Workday.EndHour = 9 }},
		{"zero queue capacity", func(c *Config) { c.Queue.Capacity = 0 }},
		{"sampling rate above one", func(c *Config) { c.Tracing.SamplingRate = 1.5 }},
		{"otlp without endpoint", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
			c.Tracing.Endpoint = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !fault.IsValidation(err) {
				t.Errorf("Expected validation fault, got %v", err)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "trace")
	t.Setenv(EnvDBPath, "/tmp/test.db")
	t.Setenv(EnvQueueCapacity, "25")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "trace" {
		t.Errorf("Expected env log level, got %s", cfg.Logging.Level)
	}
	if cfg.Store.Path != "/tmp/test.db" {
		t.Errorf("Expected env db path, got %s", cfg.Store.Path)
	}
	if cfg.Queue.Capacity != 25 {
		t.Errorf("Expected env queue capacity, got %d", cfg.Queue.Capacity)
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: warn\n")
	t.Setenv(EnvLogLevel, "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Env override must beat the file, got %s", cfg.Logging.Level)
	}
}

func TestTelemetryMapping(t *testing.T) {
	cfg := Default()
	cfg.Service.Name = "dayflow-test"
	cfg.Logging.Level = "debug"
	cfg.Metrics.Enabled = true

	tc := cfg.Telemetry()
	if tc.ServiceName != "dayflow-test" {
		t.Errorf("Expected service name mapped, got %s", tc.ServiceName)
	}
	if tc.Logging.Level != "debug" {
		t.Errorf("Expected log level mapped, got %s", tc.Logging.Level)
	}
	if !tc.Metrics.Enabled || tc.Metrics.Namespace != "dayflow-test" {
		t.Errorf("Expected metrics mapped with service namespace, got %+v", tc.Metrics)
	}
}

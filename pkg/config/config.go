// Package config loads the dayflow configuration from a YAML file with
// environment-variable overrides, validates it, and supports hot reload of
// the log level via a file watcher.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dayflow/dayflow/pkg/fault"
	"github.com/dayflow/dayflow/pkg/telemetry"
)

// Environment variable overrides, applied after the file is read.
const (
	EnvLogLevel      = "DAYFLOW_LOG_LEVEL"
	EnvLogFormat     = "DAYFLOW_LOG_FORMAT"
	EnvDBPath        = "DAYFLOW_DB_PATH"
	EnvMetricsAddr   = "DAYFLOW_METRICS_ADDR"
	EnvOTLPEndpoint  = "DAYFLOW_OTLP_ENDPOINT"
	EnvQueueCapacity = "DAYFLOW_QUEUE_CAPACITY"
)

// Config is the root configuration.
type Config struct {
	// Service identification, reported in telemetry.
	Service ServiceConfig `yaml:"service"`

	// Logging configures the zerolog logger.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing configures the otel exporter.
	Tracing TracingConfig `yaml:"tracing"`

	// Store configures the sqlite database.
	Store StoreConfig `yaml:"store"`

	// Proposals configures the proposal store lifecycle.
	Proposals ProposalConfig `yaml:"proposals"`

	// Retry configures the service-call retry policy.
	Retry RetryConfig `yaml:"retry"`

	// Queue configures the offline operation queue.
	Queue QueueConfig `yaml:"queue"`

	// Workday bounds the schedulable hours of a day.
	Workday WorkdayConfig `yaml:"workday"`
}

type ServiceConfig struct {
	Name        string `yaml:"name" validate:"required"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment" validate:"oneof=dev staging prod"`
}

type LoggingConfig struct {
	Level        string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format       string `yaml:"format" validate:"oneof=console json"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"`
	Path          string `yaml:"path"`
}

type TracingConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Exporter      string   `yaml:"exporter" validate:"oneof=otlp stdout none"`
	Endpoint      string   `yaml:"endpoint"`
	SamplingRate  float64  `yaml:"sampling_rate" validate:"gte=0,lte=1"`
	ExportTimeout Duration `yaml:"export_timeout"`
	Insecure      bool     `yaml:"insecure"`
}

type StoreConfig struct {
	// Path is the sqlite database file. The parent directory is created
	// on open.
	Path string `yaml:"path" validate:"required"`
}

type ProposalConfig struct {
	// TTL is how long a proposal stays confirmable.
	TTL Duration `yaml:"ttl" validate:"gt=0"`

	// JanitorInterval is how often expired proposals are swept.
	JanitorInterval Duration `yaml:"janitor_interval" validate:"gt=0"`
}

type RetryConfig struct {
	MaxAttempts    int      `yaml:"max_attempts" validate:"gte=1,lte=10"`
	InitialDelay   Duration `yaml:"initial_delay" validate:"gt=0"`
	Multiplier     float64  `yaml:"multiplier" validate:"gte=1"`
	MaxDelay       Duration `yaml:"max_delay" validate:"gt=0"`
	AttemptTimeout Duration `yaml:"attempt_timeout"`
}

type QueueConfig struct {
	// Capacity bounds the offline queue; the oldest entry is evicted
	// beyond it.
	Capacity int `yaml:"capacity" validate:"gte=1"`

	// ReplayCeiling is how many failed replays an entry survives.
	ReplayCeiling int `yaml:"replay_ceiling" validate:"gte=1"`

	// Durable stores the queue in sqlite instead of process memory.
	Durable bool `yaml:"durable"`
}

type WorkdayConfig struct {
	StartHour int `yaml:"start_hour" validate:"gte=0,lte=23"`
	EndHour   int `yaml:"end_hour" validate:"gte=1,lte=24,gtfield=StartHour"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Service: ServiceConfig{
			Name:        "dayflow",
			Version:     "dev",
			Environment: "dev",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			ListenAddress: ":9464",
			Path:          "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:       false,
			Exporter:      "stdout",
			SamplingRate:  1.0,
			ExportTimeout: Duration(10 * time.Second),
		},
		Store: StoreConfig{
			Path: defaultDBPath(),
		},
		Proposals: ProposalConfig{
			TTL:             Duration(4 * time.Hour),
			JanitorInterval: Duration(5 * time.Minute),
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialDelay:   Duration(time.Second),
			Multiplier:     2.0,
			MaxDelay:       Duration(10 * time.Second),
			AttemptTimeout: Duration(15 * time.Second),
		},
		Queue: QueueConfig{
			Capacity:      100,
			ReplayCeiling: 3,
			Durable:       true,
		},
		Workday: WorkdayConfig{
			StartHour: 9,
			EndHour:   17,
		},
	}
}

// Load reads the configuration from path, layering file values and
// environment overrides on top of the defaults. A missing file is not an
// error when path is empty; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fault.NewValidation(fmt.Sprintf("parse config %s", path), err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		c.Metrics.Enabled = true
		c.Metrics.ListenAddress = v
	}
	if v := os.Getenv(EnvOTLPEndpoint); v != "" {
		c.Tracing.Enabled = true
		c.Tracing.Exporter = "otlp"
		c.Tracing.Endpoint = v
	}
	if v := os.Getenv(EnvQueueCapacity); v != "" {
		c.Queue.Capacity = atoiOr(v, c.Queue.Capacity)
	}
}

// Validate checks field constraints and cross-field consistency.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fault.NewValidation(fmt.Sprintf("invalid configuration: %v", err), err)
	}
	if c.Tracing.Enabled && c.Tracing.Exporter == "otlp" && c.Tracing.Endpoint == "" {
		return fault.NewValidation("tracing.endpoint is required for the otlp exporter", nil)
	}
	return nil
}

// Telemetry maps the configuration onto the telemetry package's shape.
func (c Config) Telemetry() telemetry.Config {
	return telemetry.Config{
		ServiceName:    c.Service.Name,
		ServiceVersion: c.Service.Version,
		Environment:    c.Service.Environment,
		Logging: telemetry.LoggingConfig{
			Level:        c.Logging.Level,
			Format:       c.Logging.Format,
			Output:       c.Logging.Output,
			EnableCaller: c.Logging.EnableCaller,
		},
		Metrics: telemetry.MetricsConfig{
			Enabled:       c.Metrics.Enabled,
			ListenAddress: c.Metrics.ListenAddress,
			Path:          c.Metrics.Path,
			Namespace:     c.Service.Name,
		},
		Tracing: telemetry.TracingConfig{
			Enabled:       c.Tracing.Enabled,
			Exporter:      c.Tracing.Exporter,
			Endpoint:      c.Tracing.Endpoint,
			SamplingRate:  c.Tracing.SamplingRate,
			ExportTimeout: c.Tracing.ExportTimeout.D(),
			Insecure:      c.Tracing.Insecure,
		},
	}
}

func defaultDBPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.dayflow/dayflow.db"
	}
	return "dayflow.db"
}

// atoiOr parses s, falling back to def on failure.
func atoiOr(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

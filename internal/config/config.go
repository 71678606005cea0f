// Package config loads the control plane's configuration from a YAML
// file and environment variables, mirroring the recognized configuration options.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	DatabaseURL   string `json:"database_url" yaml:"database_url" env:"DATABASE_URL"`
	QueueURL      string `json:"queue_url" yaml:"queue_url" env:"QUEUE_URL"`
	RemediatorURL string `json:"remediator_url" yaml:"remediator_url" env:"REMEDIATOR_URL"`

	RunnerIntervalSeconds int  `json:"runner_interval_seconds" yaml:"runner_interval_seconds" env:"RUNNER_INTERVAL_SECONDS"`
	RunnerBatchSize       int  `json:"runner_batch_size" yaml:"runner_batch_size" env:"RUNNER_BATCH_SIZE"`
	RunnerEnabled         bool `json:"runner_enabled" yaml:"runner_enabled" env:"RUNNER_ENABLED"`

	MaxConcurrentWorkers    int `json:"max_concurrent_workers" yaml:"max_concurrent_workers" env:"MAX_CONCURRENT_WORKERS"`
	ExecutionTimeoutSeconds int `json:"execution_timeout_seconds" yaml:"execution_timeout_seconds" env:"EXECUTION_TIMEOUT_SECONDS"`
	QueuePollTimeoutSeconds int `json:"queue_poll_timeout_seconds" yaml:"queue_poll_timeout_seconds" env:"QUEUE_POLL_TIMEOUT_SECONDS"`

	RetryMaxAttempts     int     `json:"retry_max_attempts" yaml:"retry_max_attempts" env:"RETRY_MAX_ATTEMPTS"`
	RetryBaseDelayMs     int     `json:"retry_base_delay_ms" yaml:"retry_base_delay_ms" env:"RETRY_BASE_DELAY_MS"`
	RetryMaxDelayMs      int     `json:"retry_max_delay_ms" yaml:"retry_max_delay_ms" env:"RETRY_MAX_DELAY_MS"`
	RetryExponentialBase float64 `json:"retry_exponential_base" yaml:"retry_exponential_base" env:"RETRY_EXPONENTIAL_BASE"`

	BreakerFailureThreshold int `json:"breaker_failure_threshold" yaml:"breaker_failure_threshold" env:"BREAKER_FAILURE_THRESHOLD"`
	BreakerWindowSeconds    int `json:"breaker_window_seconds" yaml:"breaker_window_seconds" env:"BREAKER_WINDOW_SECONDS"`
	BreakerCooldownSeconds  int `json:"breaker_cooldown_seconds" yaml:"breaker_cooldown_seconds" env:"BREAKER_COOLDOWN_SECONDS"`

	ShutdownTimeoutSeconds int `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds" env:"SHUTDOWN_TIMEOUT_SECONDS"`

	LogLevel string `json:"log_level" yaml:"log_level" env:"LOG_LEVEL"`

	HTTPAddr string `json:"http_addr" yaml:"http_addr" env:"HTTP_ADDR"`

	IngestRateLimitPerSecond float64 `json:"ingest_rate_limit_per_second" yaml:"ingest_rate_limit_per_second" env:"INGEST_RATE_LIMIT_PER_SECOND"`
	IngestRateLimitBurst     int     `json:"ingest_rate_limit_burst" yaml:"ingest_rate_limit_burst" env:"INGEST_RATE_LIMIT_BURST"`

	PolicySourcePath string `json:"policy_source_path" yaml:"policy_source_path" env:"POLICY_SOURCE_PATH"`
}

// New returns a Config populated with the documented defaults.
func New() *Config {
	return &Config{
		RunnerIntervalSeconds: 30,
		RunnerBatchSize:       100,
		RunnerEnabled:         true,

		MaxConcurrentWorkers:    5,
		ExecutionTimeoutSeconds: 30,
		QueuePollTimeoutSeconds: 5,

		RetryMaxAttempts:     3,
		RetryBaseDelayMs:     1000,
		RetryMaxDelayMs:      60000,
		RetryExponentialBase: 2.0,

		BreakerFailureThreshold: 5,
		BreakerWindowSeconds:    300,
		BreakerCooldownSeconds:  60,

		ShutdownTimeoutSeconds: 30,

		LogLevel: "INFO",
		HTTPAddr: ":8090",

		IngestRateLimitPerSecond: 50,
		IngestRateLimitBurst:     100,

		PolicySourcePath: "configs/policies.yaml",
	}
}

// Load reads configuration from an optional YAML file (CONFIG_FILE or
// ./configs/config.yaml) over the defaults, then applies environment
// overrides. An optional .env is loaded into the environment first without
// replacing variables that are already set, so its values also override the
// YAML file, and real environment variables override .env.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		path = "configs/config.yaml"
	}
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}

	if err := envdecode.Decode(cfg); err != nil {
		// envdecode errors when no tagged field has a matching env var;
		// treat that as "no overrides" so local runs work unconfigured.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate rejects configurations that would make the dispatcher's retry
// policy ill-defined.
func (c *Config) Validate() error {
	if c.MaxConcurrentWorkers <= 0 {
		return fmt.Errorf("max_concurrent_workers must be positive, got %d", c.MaxConcurrentWorkers)
	}
	if c.RetryMaxAttempts <= 0 {
		return fmt.Errorf("retry_max_attempts must be positive, got %d", c.RetryMaxAttempts)
	}
	if c.RetryExponentialBase <= 1.0 {
		return fmt.Errorf("retry_exponential_base must be > 1.0, got %f", c.RetryExponentialBase)
	}
	return nil
}

func (c *Config) ExecutionTimeout() time.Duration {
	return time.Duration(c.ExecutionTimeoutSeconds) * time.Second
}

func (c *Config) QueuePollTimeout() time.Duration {
	return time.Duration(c.QueuePollTimeoutSeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

func (c *Config) RunnerInterval() time.Duration {
	return time.Duration(c.RunnerIntervalSeconds) * time.Second
}

func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMs) * time.Millisecond
}

func (c *Config) BreakerWindow() time.Duration {
	return time.Duration(c.BreakerWindowSeconds) * time.Second
}

func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.BreakerCooldownSeconds) * time.Second
}

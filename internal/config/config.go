package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Auth     AuthConfig     `yaml:"auth"`
	Queue    QueueConfig    `yaml:"queue"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RateLimitPolicy selects how the analyzer reacts to provider rate limiting.
type RateLimitPolicy string

const (
	// RateLimitWait schedules a delayed retry respecting the retry-after hint.
	RateLimitWait RateLimitPolicy = "wait"
	// RateLimitDefer falls back to the heuristic immediately and defers the
	// remote attempt to the offline queue.
	RateLimitDefer RateLimitPolicy = "defer"
)

// ExhaustionPolicy selects what happens when the retry budget is spent.
type ExhaustionPolicy string

const (
	// ExhaustionFallback returns the heuristic analysis as the final answer.
	ExhaustionFallback ExhaustionPolicy = "fallback"
	// ExhaustionDefer returns the heuristic analysis for display but queues
	// the entry for a later remote attempt.
	ExhaustionDefer ExhaustionPolicy = "defer"
)

// AnalysisConfig contains analysis provider settings.
type AnalysisConfig struct {
	APIKey          string           `yaml:"-"` // env-only, never in YAML
	Model           string           `yaml:"model"`
	Enabled         bool             `yaml:"enabled"`
	CallTimeout     Duration         `yaml:"call_timeout"`
	MaxAttempts     int              `yaml:"max_attempts"`
	InitialBackoff  Duration         `yaml:"initial_backoff"`
	MaxBackoff      Duration         `yaml:"max_backoff"`
	RateLimitPolicy RateLimitPolicy  `yaml:"rate_limit_policy"`
	OnExhaustion    ExhaustionPolicy `yaml:"on_exhaustion"`
	MaxConcurrent   int              `yaml:"max_concurrent"`
	RefillInterval  Duration         `yaml:"refill_interval"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// QueueConfig contains offline queue drain settings.
type QueueConfig struct {
	DrainInterval Duration `yaml:"drain_interval"`
	MaxAttempts   int      `yaml:"max_attempts"`
	BatchSize     int      `yaml:"batch_size"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("SPIRAL_CONFIG_PATH", "config/spiral.yaml")

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDatabaseConfig loads only the database section, skipping validation.
// Used by CLI subcommands that operate on the store without running the
// server.
func LoadDatabaseConfig() (*DatabaseConfig, error) {
	cfg := newDefaults()

	configPath := getEnv("SPIRAL_CONFIG_PATH", "config/spiral.yaml")
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	return &cfg.Database, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/spiral.db",
		},
		Analysis: AnalysisConfig{
			Model:           "gpt-4o-mini",
			Enabled:         true,
			CallTimeout:     Duration(20 * time.Second),
			MaxAttempts:     3,
			InitialBackoff:  Duration(500 * time.Millisecond),
			MaxBackoff:      Duration(8 * time.Second),
			RateLimitPolicy: RateLimitDefer,
			OnExhaustion:    ExhaustionFallback,
			MaxConcurrent:   4,
			RefillInterval:  Duration(250 * time.Millisecond),
		},
		Queue: QueueConfig{
			DrainInterval: Duration(1 * time.Minute),
			MaxAttempts:   5,
			BatchSize:     20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("SPIRAL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SPIRAL_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("SPIRAL_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("SPIRAL_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Database
	if v := os.Getenv("SPIRAL_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Analysis (OPENAI_API_KEY is industry convention)
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Analysis.APIKey = v
	}
	if v := os.Getenv("SPIRAL_ANALYSIS_MODEL"); v != "" {
		cfg.Analysis.Model = v
	}
	if v := os.Getenv("SPIRAL_ANALYSIS_ENABLED"); v != "" {
		cfg.Analysis.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SPIRAL_ANALYSIS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Analysis.CallTimeout = Duration(d)
		}
	}
	if v := os.Getenv("SPIRAL_ANALYSIS_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.MaxAttempts = n
		}
	}
	if v := os.Getenv("SPIRAL_ANALYSIS_RATE_LIMIT_POLICY"); v != "" {
		cfg.Analysis.RateLimitPolicy = RateLimitPolicy(v)
	}
	if v := os.Getenv("SPIRAL_ANALYSIS_ON_EXHAUSTION"); v != "" {
		cfg.Analysis.OnExhaustion = ExhaustionPolicy(v)
	}
	if v := os.Getenv("SPIRAL_ANALYSIS_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.MaxConcurrent = n
		}
	}

	// Auth
	if v := os.Getenv("SPIRAL_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Queue
	if v := os.Getenv("SPIRAL_QUEUE_DRAIN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Queue.DrainInterval = Duration(d)
		}
	}
	if v := os.Getenv("SPIRAL_QUEUE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.MaxAttempts = n
		}
	}
	if v := os.Getenv("SPIRAL_QUEUE_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.BatchSize = n
		}
	}

	// Log
	if v := os.Getenv("SPIRAL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SPIRAL_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that required configuration values are set.
// In dev mode (SPIRAL_DEV_MODE=true), API key validation is skipped.
func (c *Config) validate() error {
	switch c.Analysis.RateLimitPolicy {
	case RateLimitWait, RateLimitDefer:
	default:
		return fmt.Errorf("invalid rate_limit_policy %q", c.Analysis.RateLimitPolicy)
	}
	switch c.Analysis.OnExhaustion {
	case ExhaustionFallback, ExhaustionDefer:
	default:
		return fmt.Errorf("invalid on_exhaustion policy %q", c.Analysis.OnExhaustion)
	}
	if c.Analysis.MaxAttempts < 1 {
		return errors.New("analysis max_attempts must be at least 1")
	}
	if c.Queue.MaxAttempts < 1 {
		return errors.New("queue max_attempts must be at least 1")
	}

	// Dev mode bypasses API key validation
	if os.Getenv("SPIRAL_DEV_MODE") == "true" {
		return nil
	}

	if c.Analysis.Enabled && c.Analysis.APIKey == "" {
		return errors.New("OPENAI_API_KEY is required when analysis is enabled")
	}
	if c.Auth.APIKey == "" {
		return errors.New("SPIRAL_API_KEY is required")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

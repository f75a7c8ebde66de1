package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Focus    FocusConfig    `yaml:"focus"`
	Worker   WorkerConfig   `yaml:"worker"`
	Lock     LockConfig     `yaml:"lock"`
	Events   EventsConfig   `yaml:"events"`
	Reports  ReportsConfig  `yaml:"reports"`
	Signals  SignalsConfig  `yaml:"signals"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	Path   string `yaml:"path"`
	URL    string `yaml:"-"` // env-only, carries credentials
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey     string `yaml:"-"` // env-only, never in YAML
	CronSecret string `yaml:"-"` // env-only, never in YAML
}

// FocusConfig contains daily focus defaults.
type FocusConfig struct {
	Limit                      int `yaml:"limit"`
	ExcludeContactedWithinDays int `yaml:"exclude_contacted_within_days"`
}

// WorkerConfig contains background sweep settings.
// A zero interval leaves that sweep to an external scheduler.
type WorkerConfig struct {
	RescoreInterval  Duration `yaml:"rescore_interval"`
	FocusInterval    Duration `yaml:"focus_interval"`
	SweepConcurrency int      `yaml:"sweep_concurrency"`
}

// LockConfig contains per-lead lock settings.
// An empty RedisURL selects the in-process locker.
type LockConfig struct {
	RedisURL string   `yaml:"redis_url"`
	TTL      Duration `yaml:"ttl"`
	Wait     Duration `yaml:"wait"`
}

// EventsConfig contains broker settings. An empty AMQPURL disables publishing.
type EventsConfig struct {
	AMQPURL  string `yaml:"-"` // env-only, carries credentials
	Exchange string `yaml:"exchange"`
}

// ReportsConfig contains S3-compatible storage settings for sweep reports.
// An empty Bucket disables archiving.
type ReportsConfig struct {
	Bucket    string   `yaml:"bucket"`
	Endpoint  string   `yaml:"endpoint"`
	Region    string   `yaml:"region"`
	UseSSL    *bool    `yaml:"use_ssl"`
	AccessKey string   `yaml:"-"` // env-only
	SecretKey string   `yaml:"-"` // env-only
	Prefix    string   `yaml:"prefix"`
	URLExpiry Duration `yaml:"url_expiry"`
}

// SignalsConfig contains settings for the signal-type classifier.
// An empty APIKey disables classification.
type SignalsConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
	Model  string `yaml:"model"`
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

	configPath := getEnv("PROSPECTOR_CONFIG_PATH", "config/prospector.yaml")

	// Missing file is not an error
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
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
			WriteTimeout:    Duration(5 * time.Minute),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "data/prospector.db",
		},
		Focus: FocusConfig{
			Limit:                      5,
			ExcludeContactedWithinDays: 7,
		},
		Worker: WorkerConfig{
			SweepConcurrency: 1,
		},
		Lock: LockConfig{
			TTL:  Duration(30 * time.Second),
			Wait: Duration(10 * time.Second),
		},
		Events: EventsConfig{
			Exchange: "prospector.events",
		},
		Reports: ReportsConfig{
			Prefix:    "sweeps",
			URLExpiry: Duration(15 * time.Minute),
		},
		Signals: SignalsConfig{
			Model: "gpt-4o-mini",
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
	if v := os.Getenv("PROSPECTOR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	envDuration("PROSPECTOR_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("PROSPECTOR_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("PROSPECTOR_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	if v := os.Getenv("PROSPECTOR_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}

	// Database
	if v := os.Getenv("PROSPECTOR_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("PROSPECTOR_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("PROSPECTOR_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}

	// Auth
	if v := os.Getenv("PROSPECTOR_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("PROSPECTOR_CRON_SECRET"); v != "" {
		cfg.Auth.CronSecret = v
	}

	// Focus
	envInt("PROSPECTOR_FOCUS_LIMIT", &cfg.Focus.Limit)
	envInt("PROSPECTOR_FOCUS_EXCLUDE_DAYS", &cfg.Focus.ExcludeContactedWithinDays)

	// Worker
	envDuration("PROSPECTOR_RESCORE_INTERVAL", &cfg.Worker.RescoreInterval)
	envDuration("PROSPECTOR_FOCUS_INTERVAL", &cfg.Worker.FocusInterval)
	envInt("PROSPECTOR_SWEEP_CONCURRENCY", &cfg.Worker.SweepConcurrency)

	// Lock
	if v := os.Getenv("PROSPECTOR_REDIS_URL"); v != "" {
		cfg.Lock.RedisURL = v
	}
	envDuration("PROSPECTOR_LOCK_TTL", &cfg.Lock.TTL)
	envDuration("PROSPECTOR_LOCK_WAIT", &cfg.Lock.Wait)

	// Events
	if v := os.Getenv("PROSPECTOR_AMQP_URL"); v != "" {
		cfg.Events.AMQPURL = v
	}
	if v := os.Getenv("PROSPECTOR_EVENTS_EXCHANGE"); v != "" {
		cfg.Events.Exchange = v
	}

	// Reports
	if v := os.Getenv("PROSPECTOR_REPORT_BUCKET"); v != "" {
		cfg.Reports.Bucket = v
	}
	if v := os.Getenv("PROSPECTOR_S3_ENDPOINT"); v != "" {
		cfg.Reports.Endpoint = v
	}
	if v := os.Getenv("PROSPECTOR_S3_REGION"); v != "" {
		cfg.Reports.Region = v
	}
	if v := os.Getenv("PROSPECTOR_S3_ACCESS_KEY"); v != "" {
		cfg.Reports.AccessKey = v
	}
	if v := os.Getenv("PROSPECTOR_S3_SECRET_KEY"); v != "" {
		cfg.Reports.SecretKey = v
	}
	if v := os.Getenv("PROSPECTOR_S3_USE_SSL"); v != "" {
		b := v == "true" || v == "1"
		cfg.Reports.UseSSL = &b
	}
	envDuration("PROSPECTOR_S3_URL_EXPIRY", &cfg.Reports.URLExpiry)

	// Signals (OPENAI_API_KEY is industry convention)
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Signals.APIKey = v
	}
	if v := os.Getenv("PROSPECTOR_SIGNALS_MODEL"); v != "" {
		cfg.Signals.Model = v
	}

	// Log
	if v := os.Getenv("PROSPECTOR_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PROSPECTOR_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that configuration values are usable.
// In dev mode (PROSPECTOR_DEV_MODE=true), secret validation is skipped.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("PROSPECTOR_DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Focus.Limit < 1 {
		return fmt.Errorf("focus.limit must be at least 1, got %d", c.Focus.Limit)
	}
	if c.Focus.ExcludeContactedWithinDays < 1 {
		return fmt.Errorf("focus.exclude_contacted_within_days must be at least 1, got %d", c.Focus.ExcludeContactedWithinDays)
	}
	if c.Worker.SweepConcurrency < 1 {
		return fmt.Errorf("worker.sweep_concurrency must be at least 1, got %d", c.Worker.SweepConcurrency)
	}

	// Dev mode bypasses secret validation
	if DevMode() {
		return nil
	}

	if c.Auth.APIKey == "" {
		return errors.New("PROSPECTOR_API_KEY is required")
	}
	if c.Auth.CronSecret == "" {
		return errors.New("PROSPECTOR_CRON_SECRET is required")
	}
	return nil
}

// DevMode reports whether PROSPECTOR_DEV_MODE is enabled.
func DevMode() bool {
	return os.Getenv("PROSPECTOR_DEV_MODE") == "true"
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Package config loads the static server configuration from file,
// environment, and defaults. Dynamic state (users, files, quotas) lives in
// the database and is managed through the REST API.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/filegate/filegate/pkg/api"
	"github.com/filegate/filegate/pkg/blob"
	"github.com/filegate/filegate/pkg/store"
)

// Config represents the FileGate configuration.
//
// Configuration sources (in order of precedence):
//  1. Well-known environment variables (DATABASE_URL, REDIS_URL, S3_*, JWT_*)
//  2. Prefixed environment variables (FILEGATE_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Env is the deployment environment: dev or prod.
	// prod forces Secure demo cookies.
	Env string `mapstructure:"env" validate:"omitempty,oneof=dev prod" yaml:"env"`

	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Database configures the metadata database (SQLite or PostgreSQL).
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// Redis configures the connection backing the scan queue and the rate
	// limiter.
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`

	// S3 configures the blob store clients go through with presigned URLs.
	S3 S3Config `mapstructure:"s3" yaml:"s3"`

	// Metrics contains Prometheus metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains REST API server configuration
	API api.APIConfig `mapstructure:"api" yaml:"api"`

	// Upload contains presign lifetimes for the upload lifecycle
	Upload UploadConfig `mapstructure:"upload" yaml:"upload"`

	// Worker contains scan worker configuration
	Worker WorkerConfig `mapstructure:"worker" yaml:"worker"`
}

// IsProd reports whether the deployment environment is prod.
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`

	// Debug forces the DEBUG level regardless of Level.
	// Override: APP_DEBUG
	Debug bool `mapstructure:"debug" yaml:"debug,omitempty"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector
// (e.g., Jaeger, Tempo, or any OTLP receiver).
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures Prometheus metrics.
// When Enabled is false, no metrics are collected (zero overhead) and
// GET /metrics serves 404.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// DatabaseConfig configures the metadata database.
type DatabaseConfig struct {
	// URL is the database connection string. A postgres:// or postgresql://
	// URL selects the PostgreSQL backend; anything else is treated as a
	// SQLite path. Empty selects SQLite at the default state path.
	// Override: DATABASE_URL
	URL string `mapstructure:"url" yaml:"url"`

	// MaxOpenConns caps the PostgreSQL connection pool.
	// Default: 25
	MaxOpenConns int `mapstructure:"max_open_conns" yaml:"max_open_conns,omitempty"`

	// MaxIdleConns is the number of idle PostgreSQL connections retained.
	// Default: 5
	MaxIdleConns int `mapstructure:"max_idle_conns" yaml:"max_idle_conns,omitempty"`
}

// StoreConfig converts the connection string into a store configuration.
func (c DatabaseConfig) StoreConfig() *store.Config {
	cfg := &store.Config{}
	switch {
	case strings.HasPrefix(c.URL, "postgres://"), strings.HasPrefix(c.URL, "postgresql://"):
		cfg.Type = store.DatabaseTypePostgres
		cfg.Postgres.URL = c.URL
		cfg.Postgres.MaxOpenConns = c.MaxOpenConns
		cfg.Postgres.MaxIdleConns = c.MaxIdleConns
	default:
		cfg.Type = store.DatabaseTypeSQLite
		cfg.SQLite.Path = c.URL
	}
	cfg.ApplyDefaults()
	return cfg
}

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	// URL is a redis:// connection string.
	// Override: REDIS_URL
	// Default: redis://localhost:6379/0
	URL string `mapstructure:"url" yaml:"url"`
}

// Options parses the URL into client options.
func (c RedisConfig) Options() (*redis.Options, error) {
	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return opts, nil
}

// S3Config configures the S3-compatible blob store.
type S3Config struct {
	// Endpoint is the internal endpoint used for server-side HEAD/GET.
	// Override: S3_ENDPOINT
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// PublicEndpoint is the endpoint baked into presigned URLs returned to
	// clients. Falls back to Endpoint when empty.
	// Override: S3_PUBLIC_ENDPOINT
	PublicEndpoint string `mapstructure:"public_endpoint" yaml:"public_endpoint,omitempty"`

	// Override: S3_REGION
	Region string `mapstructure:"region" yaml:"region"`

	// Override: S3_ACCESS_KEY_ID
	AccessKeyID string `mapstructure:"access_key_id" yaml:"access_key_id"`

	// Override: S3_SECRET_ACCESS_KEY
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`

	// Override: S3_BUCKET
	Bucket string `mapstructure:"bucket" yaml:"bucket"`

	// ForcePathStyle is required for MinIO and most S3-compatible stores.
	// Default: true
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style"`

	// AutoCreateBucket ensures the bucket exists at startup.
	AutoCreateBucket bool `mapstructure:"auto_create_bucket" yaml:"auto_create_bucket"`
}

// BlobConfig converts into the blob store configuration.
func (c S3Config) BlobConfig() blob.S3Config {
	return blob.S3Config{
		Endpoint:         c.Endpoint,
		PublicEndpoint:   c.PublicEndpoint,
		Region:           c.Region,
		AccessKeyID:      c.AccessKeyID,
		SecretAccessKey:  c.SecretAccessKey,
		Bucket:           c.Bucket,
		ForcePathStyle:   c.ForcePathStyle,
		AutoCreateBucket: c.AutoCreateBucket,
	}
}

// UploadConfig contains presign lifetimes for the upload lifecycle.
type UploadConfig struct {
	// PresignTTLSeconds is the lifetime of presigned PUT URLs and of the
	// upload window itself.
	// Override: UPLOAD_PRESIGN_TTL_SECONDS
	// Default: 900
	PresignTTLSeconds int `mapstructure:"presign_ttl_seconds" yaml:"presign_ttl_seconds"`

	// DownloadPresignTTLSeconds is the lifetime of presigned GET URLs.
	// Override: DOWNLOAD_PRESIGN_TTL_SECONDS
	// Default: 300
	DownloadPresignTTLSeconds int `mapstructure:"download_presign_ttl_seconds" yaml:"download_presign_ttl_seconds"`
}

// PresignTTL returns the upload presign lifetime.
func (c UploadConfig) PresignTTL() time.Duration {
	return time.Duration(c.PresignTTLSeconds) * time.Second
}

// DownloadPresignTTL returns the download presign lifetime.
func (c UploadConfig) DownloadPresignTTL() time.Duration {
	return time.Duration(c.DownloadPresignTTLSeconds) * time.Second
}

// WorkerConfig configures the scan worker pool.
type WorkerConfig struct {
	// Concurrency is the number of concurrent scan workers.
	// Default: 4
	Concurrency int `mapstructure:"concurrency" validate:"omitempty,min=1" yaml:"concurrency"`

	// PollInterval is the idle sleep between empty queue polls.
	// Default: 1s
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`

	// JobTimeout is the soft wall-clock limit per scan job.
	// Default: 10m
	JobTimeout time.Duration `mapstructure:"job_timeout" yaml:"job_timeout"`
}

// envBindings maps config keys to the well-known un-prefixed environment
// variables deployments set. These take precedence over the config file.
var envBindings = map[string]string{
	"env":                                 "ENV",
	"logging.debug":                       "APP_DEBUG",
	"database.url":                        "DATABASE_URL",
	"redis.url":                           "REDIS_URL",
	"s3.endpoint":                         "S3_ENDPOINT",
	"s3.public_endpoint":                  "S3_PUBLIC_ENDPOINT",
	"s3.region":                           "S3_REGION",
	"s3.access_key_id":                    "S3_ACCESS_KEY_ID",
	"s3.secret_access_key":                "S3_SECRET_ACCESS_KEY",
	"s3.bucket":                           "S3_BUCKET",
	"api.jwt.secret":                      "JWT_SECRET",
	"api.jwt.algorithm":                   "JWT_ALGORITHM",
	"upload.presign_ttl_seconds":          "UPLOAD_PRESIGN_TTL_SECONDS",
	"upload.download_presign_ttl_seconds": "DOWNLOAD_PRESIGN_TTL_SECONDS",
}

// boundKeys are the remaining keys viper must know about so FILEGATE_*
// variables reach Unmarshal even without a config file.
var boundKeys = []string{
	"shutdown_timeout",
	"logging.level",
	"logging.format",
	"logging.output",
	"telemetry.enabled",
	"telemetry.endpoint",
	"telemetry.insecure",
	"telemetry.sample_rate",
	"telemetry.profiling.enabled",
	"telemetry.profiling.endpoint",
	"metrics.enabled",
	"api.port",
	"api.read_timeout",
	"api.write_timeout",
	"api.idle_timeout",
	"api.secure_cookies",
	"api.jwt.access_token_duration",
	"database.max_open_conns",
	"database.max_idle_conns",
	"s3.force_path_style",
	"s3.auto_create_bucket",
	"worker.concurrency",
	"worker.poll_interval",
	"worker.job_timeout",
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Unmarshal into config struct with custom decode hooks
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to the specified file path.
// The configuration is saved in YAML format using proper yaml tags.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600 because the config may carry credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Prefixed environment variables cover every key
	// Example: FILEGATE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("FILEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Well-known un-prefixed variables for the common deployment knobs
	for key, envVar := range envBindings {
		_ = v.BindEnv(key, "FILEGATE_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), envVar)
	}
	for _, key := range boundKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/filegate/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file
// is fine: environment variables and defaults carry a full configuration.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "filegate")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "filegate")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the
// init command).
func GetConfigDir() string {
	return getConfigDir()
}

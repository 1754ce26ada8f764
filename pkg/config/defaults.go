package config

import (
	"strings"
	"time"

	"github.com/filegate/filegate/pkg/scan"
	"github.com/filegate/filegate/pkg/upload"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and
// environment variables to fill in any missing values with sensible
// defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	if cfg.Env == "" {
		cfg.Env = "dev"
	}

	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Redis.URL == "" {
		cfg.Redis.URL = "redis://localhost:6379/0"
	}

	applyUploadDefaults(&cfg.Upload)
	applyWorkerDefaults(&cfg.Worker)

	// Demo cookies go Secure whenever we run behind TLS terminators.
	if cfg.IsProd() {
		cfg.API.SecureCookies = true
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if cfg.Debug {
		cfg.Level = "DEBUG"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)

	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	// Default endpoint is localhost:4040 (standard Pyroscope port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyUploadDefaults sets presign lifetime defaults.
func applyUploadDefaults(cfg *UploadConfig) {
	if cfg.PresignTTLSeconds == 0 {
		cfg.PresignTTLSeconds = int(upload.DefaultUploadTTL.Seconds())
	}
	if cfg.DownloadPresignTTLSeconds == 0 {
		cfg.DownloadPresignTTLSeconds = int(upload.DefaultDownloadTTL.Seconds())
	}
}

// applyWorkerDefaults sets scan worker defaults.
func applyWorkerDefaults(cfg *WorkerConfig) {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 4
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = scan.DefaultPollInterval
	}
	if cfg.JobTimeout == 0 {
		cfg.JobTimeout = scan.DefaultJobTimeout
	}
}

// GetDefaultConfig returns a configuration populated entirely from defaults.
// Used by the init command as the starting point for a fresh config file.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)

	// A local development stack out of the box.
	cfg.Database.URL = "filegate.db"
	cfg.S3.Endpoint = "http://localhost:9000"
	cfg.S3.Region = "us-east-1"
	cfg.S3.Bucket = "uploads"
	cfg.S3.ForcePathStyle = true
	cfg.S3.AutoCreateBucket = true

	return cfg
}

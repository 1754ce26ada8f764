package commands

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/filegate/filegate/internal/logger"
	"github.com/filegate/filegate/internal/telemetry"
	"github.com/filegate/filegate/pkg/blob"
	"github.com/filegate/filegate/pkg/config"
	"github.com/filegate/filegate/pkg/metrics"
	"github.com/filegate/filegate/pkg/store"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadConfig loads and validates the configuration, then initializes the
// logger from it. Most commands start here.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, err
	}
	if err := InitLogger(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// initTelemetry initializes tracing and profiling from configuration and
// returns a shutdown function that flushes both.
func initTelemetry(ctx context.Context, cfg *config.Config) (func(), error) {
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "filegate",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "filegate",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize profiling: %w", err)
	}

	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled",
			logger.KeyEndpoint, cfg.Telemetry.Endpoint,
			"sample_rate", cfg.Telemetry.SampleRate,
		)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("profiling enabled", logger.KeyEndpoint, cfg.Telemetry.Profiling.Endpoint)
	}

	return func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.KeyError, err.Error())
		}
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err.Error())
		}
	}, nil
}

// initMetrics creates the process-wide Prometheus registry when metrics are
// enabled. Recording interfaces stay nil otherwise.
func initMetrics(cfg *config.Config) {
	if !cfg.Metrics.Enabled {
		logger.Info("metrics collection disabled")
		return
	}
	metrics.InitRegistry()
	logger.Info("metrics enabled", logger.KeyRoute, "/metrics")
}

// openStore connects to the metadata database and runs migrations.
func openStore(cfg *config.Config) (*store.GORMStore, error) {
	storeCfg := cfg.Database.StoreConfig()
	st, err := store.New(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metadata store: %w", err)
	}
	return st, nil
}

// openRedis builds a Redis client from configuration and verifies
// connectivity.
func openRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opts, err := cfg.Redis.Options()
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// openBlob connects to the blob store, creating the bucket when configured.
func openBlob(ctx context.Context, cfg *config.Config) (*blob.S3Store, error) {
	bs, err := blob.NewS3Store(ctx, cfg.S3.BlobConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}
	return bs, nil
}

package commands

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/filegate/filegate/internal/logger"
	"github.com/filegate/filegate/pkg/api"
	"github.com/filegate/filegate/pkg/audit"
	prometheusmetrics "github.com/filegate/filegate/pkg/metrics/prometheus"
	"github.com/filegate/filegate/pkg/queue"
	"github.com/filegate/filegate/pkg/quota"
	"github.com/filegate/filegate/pkg/scan"
	"github.com/filegate/filegate/pkg/upload"
)

var startNoWorker bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the filegate server",
	Long: `Start the filegate API server.

By default the process also runs the scan workers that drive uploaded files
from SCANNING to a terminal state. Use --no-worker to run the API alone and
scale workers separately with "filegate worker".

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/filegate/config.yaml.

Examples:
  # Start API and embedded scan workers
  filegate start

  # Start the API only
  filegate start --no-worker

  # Start with custom config file
  filegate start --config /etc/filegate/config.yaml

  # Start with environment variable overrides
  FILEGATE_LOGGING_LEVEL=DEBUG filegate start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVar(&startNoWorker, "no-worker", false, "Do not run embedded scan workers")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))

	telemetryShutdown, err := initTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer telemetryShutdown()

	initMetrics(cfg)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	bs, err := openBlob(ctx, cfg)
	if err != nil {
		return err
	}

	q := queue.New(rdb)
	recorder := audit.NewRecorder(st)
	quotas := quota.NewService(st)

	// The constructors return nil when the registry is disabled, which
	// turns every recording call into a no-op.
	var (
		uploadMetrics    = prometheusmetrics.NewUploadMetrics()
		scanMetrics      = prometheusmetrics.NewScanMetrics()
		rateLimitMetrics = prometheusmetrics.NewRateLimitMetrics()
	)

	coordinator := upload.NewCoordinator(upload.Config{
		Store:       st,
		Blob:        bs,
		Queue:       q,
		Quota:       quotas,
		Audit:       recorder,
		Metrics:     uploadMetrics,
		UploadTTL:   cfg.Upload.PresignTTL(),
		DownloadTTL: cfg.Upload.DownloadPresignTTL(),
	})

	server, err := api.NewServer(cfg.API, api.Deps{
		Coordinator:      coordinator,
		Users:            st,
		DB:               st,
		Redis:            rdb,
		RateLimitMetrics: rateLimitMetrics,
	})
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if !startNoWorker {
		worker := scan.NewWorker(scan.Config{
			Store:        st,
			Blob:         bs,
			Queue:        q,
			Quota:        quotas,
			Audit:        recorder,
			Metrics:      scanMetrics,
			PollInterval: cfg.Worker.PollInterval,
			JobTimeout:   cfg.Worker.JobTimeout,
		})
		for i := 0; i < cfg.Worker.Concurrency; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = worker.Run(ctx)
			}()
		}
		logger.Info("embedded scan workers started", "concurrency", cfg.Worker.Concurrency)
	}

	logger.Info("API server starting",
		logger.KeyComponent, "api",
		"port", cfg.API.Port,
	)

	err = server.Start(ctx)
	stop()
	wg.Wait()
	if err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}

package commands

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/filegate/filegate/internal/logger"
	"github.com/filegate/filegate/pkg/audit"
	prometheusmetrics "github.com/filegate/filegate/pkg/metrics/prometheus"
	"github.com/filegate/filegate/pkg/queue"
	"github.com/filegate/filegate/pkg/quota"
	"github.com/filegate/filegate/pkg/scan"
)

var workerConcurrency int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run scan workers without the API server",
	Long: `Run the scan worker pool on its own.

Workers consume the scan queue and drive files uploaded through the API from
SCANNING to ACTIVE or QUARANTINED. The API server enqueues jobs; any number
of worker processes may consume them concurrently.

Examples:
  # Run workers with configured concurrency
  filegate worker

  # Override concurrency
  filegate worker --concurrency 16`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "Number of concurrent workers (default: from config)")
}

func runWorker(cmd *cobra.Command, args []string) error {
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

	concurrency := cfg.Worker.Concurrency
	if workerConcurrency > 0 {
		concurrency = workerConcurrency
	}

	worker := scan.NewWorker(scan.Config{
		Store:        st,
		Blob:         bs,
		Queue:        queue.New(rdb),
		Quota:        quota.NewService(st),
		Audit:        audit.NewRecorder(st),
		Metrics:      prometheusmetrics.NewScanMetrics(),
		PollInterval: cfg.Worker.PollInterval,
		JobTimeout:   cfg.Worker.JobTimeout,
	})

	logger.Info("scan worker pool starting",
		logger.KeyComponent, "worker",
		"concurrency", concurrency,
	)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = worker.Run(ctx)
		}()
	}

	<-ctx.Done()
	wg.Wait()

	logger.Info("worker pool stopped")
	return nil
}

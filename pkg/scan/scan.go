// Package scan implements the background worker that finishes the upload
// lifecycle: it consumes the scan queue, re-verifies each SCANNING file
// against the blob store and the file-type policy, admits it against the
// owner's quota and promotes it to ACTIVE, or quarantines it.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/filegate/filegate/internal/logger"
	"github.com/filegate/filegate/internal/telemetry"
	"github.com/filegate/filegate/pkg/audit"
	"github.com/filegate/filegate/pkg/blob"
	"github.com/filegate/filegate/pkg/metrics"
	"github.com/filegate/filegate/pkg/models"
	"github.com/filegate/filegate/pkg/policy"
	"github.com/filegate/filegate/pkg/queue"
	"github.com/filegate/filegate/pkg/sniff"
)

// Outcome classifies one processed job.
type Outcome string

const (
	// OutcomeMissing means the file row no longer exists.
	OutcomeMissing Outcome = "missing"

	// OutcomeSkip means the file was not in SCANNING; duplicate deliveries
	// and retries after a concurrent completion land here.
	OutcomeSkip Outcome = "skip"

	// OutcomeActive means the file passed and was promoted to ACTIVE.
	OutcomeActive Outcome = "active"

	// OutcomeQuarantined means a policy or quota check failed.
	OutcomeQuarantined Outcome = "quarantined"
)

// DefaultPollInterval is the idle sleep between empty queue polls.
const DefaultPollInterval = time.Second

// DefaultJobTimeout is the soft wall-clock limit per job. A job hitting it
// returns an error and goes back through the queue's retry policy.
const DefaultJobTimeout = 10 * time.Minute

// MetadataStore is the persistence surface the worker needs.
// *store.GORMStore satisfies this.
type MetadataStore interface {
	GetFile(ctx context.Context, id string) (*models.FileObject, error)
	TransitionFile(ctx context.Context, id string, from, to models.FileState, updates map[string]any) error
}

// QuotaService admits activations against the owner's ceilings.
type QuotaService interface {
	IncrementOnActive(ctx context.Context, ownerID string, sizeBytes int64) error
	DecrementOnDelete(ctx context.Context, ownerID string, sizeBytes int64) error
}

// JobQueue is the consuming side of the scan queue.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Ack(ctx context.Context, job *queue.Job) error
	Retry(ctx context.Context, job *queue.Job) (bool, error)
}

// AuditRecorder appends audit events, best-effort.
type AuditRecorder interface {
	Record(ctx context.Context, ev audit.Event)
}

// Worker pulls scan jobs and drives SCANNING files to a terminal decision.
// Multiple workers may run concurrently; the queue keeps one delivery in
// flight per file and the state guard makes reprocessing a no-op.
type Worker struct {
	store   MetadataStore
	blob    blob.Store
	queue   JobQueue
	quota   QuotaService
	audit   AuditRecorder
	metrics metrics.ScanMetrics

	pollInterval time.Duration
	jobTimeout   time.Duration
}

// Config assembles a Worker.
type Config struct {
	Store MetadataStore
	Blob  blob.Store
	Queue JobQueue
	Quota QuotaService
	Audit AuditRecorder

	// Metrics may be nil; recording is then skipped.
	Metrics metrics.ScanMetrics

	PollInterval time.Duration
	JobTimeout   time.Duration
}

// NewWorker creates a scan worker.
func NewWorker(cfg Config) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	return &Worker{
		store:        cfg.Store,
		blob:         cfg.Blob,
		queue:        cfg.Queue,
		quota:        cfg.Quota,
		audit:        cfg.Audit,
		metrics:      cfg.Metrics,
		pollInterval: cfg.PollInterval,
		jobTimeout:   cfg.JobTimeout,
	}
}

// Run consumes the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	logger.Info("scan worker started", logger.KeyQueue, queue.Name)
	for {
		if err := ctx.Err(); err != nil {
			logger.Info("scan worker stopping", logger.KeyQueue, queue.Name)
			return err
		}

		job, err := w.queue.Dequeue(ctx)
		if errors.Is(err, queue.ErrEmpty) {
			w.sleep(ctx)
			continue
		}
		if err != nil {
			logger.Error("failed to dequeue scan job", logger.KeyError, err.Error())
			w.sleep(ctx)
			continue
		}

		w.handle(ctx, job)
	}
}

func (w *Worker) handle(ctx context.Context, job *queue.Job) {
	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	outcome, err := w.Process(jobCtx, job.FileID)
	cancel()

	if err != nil {
		rescheduled, rerr := w.queue.Retry(ctx, job)
		if rerr != nil {
			logger.Error("failed to reschedule scan job",
				logger.KeyError, rerr.Error(),
				logger.KeyFileID, job.FileID,
			)
			return
		}
		logger.Warn("scan job failed",
			logger.KeyError, err.Error(),
			logger.KeyFileID, job.FileID,
			logger.KeyAttempt, job.Attempt,
			"rescheduled", rescheduled,
		)
		return
	}

	if err := w.queue.Ack(ctx, job); err != nil {
		logger.Error("failed to ack scan job",
			logger.KeyError, err.Error(),
			logger.KeyFileID, job.FileID,
		)
	}
	logger.Info("scan job finished",
		logger.KeyFileID, job.FileID,
		"outcome", string(outcome),
	)
}

func (w *Worker) sleep(ctx context.Context) {
	t := time.NewTimer(w.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Process scans one file. Policy and quota failures quarantine the file and
// are not errors; a returned error means an unexpected failure that the
// queue should retry, with a SCAN_FAIL audit event already recorded.
func (w *Worker) Process(ctx context.Context, fileID string) (Outcome, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanScanProcess,
		trace.WithAttributes(telemetry.FileID(fileID)))
	defer span.End()

	start := time.Now()
	outcome, err := w.process(ctx, fileID)
	if outcome != "" {
		telemetry.SetAttributes(ctx, telemetry.ScanOutcome(string(outcome)))
	}
	if err != nil {
		telemetry.RecordError(ctx, err)
	}
	if w.metrics != nil {
		label := string(outcome)
		if err != nil {
			label = "error"
		}
		w.metrics.RecordScan(label, time.Since(start).Seconds())
	}
	if err != nil {
		w.audit.Record(ctx, audit.Event{
			Action:  models.ActionScanFail,
			FileID:  fileID,
			Details: models.JSONMap{"error": err.Error()},
		})
		logger.Error("scan failed",
			logger.KeyError, err.Error(),
			logger.KeyFileID, fileID,
		)
	}
	return outcome, err
}

func (w *Worker) process(ctx context.Context, fileID string) (Outcome, error) {
	file, err := w.store.GetFile(ctx, fileID)
	if err != nil {
		if errors.Is(err, models.ErrFileNotFound) {
			logger.Warn("scan job for unknown file", logger.KeyFileID, fileID)
			return OutcomeMissing, nil
		}
		return "", err
	}
	if file.State != models.StateScanning {
		logger.Debug("scan skipped, file not in scanning state",
			logger.KeyFileID, fileID,
			logger.KeyState, string(file.State),
		)
		return OutcomeSkip, nil
	}

	// The complete handler already verified the object; a missing object
	// here is state drift worth retrying, not a policy decision.
	size, err := w.blob.Head(ctx, file.Bucket, file.ObjectKey)
	if err != nil {
		return "", fmt.Errorf("failed to stat object %s/%s: %w", file.Bucket, file.ObjectKey, err)
	}

	sample, err := w.blob.GetRange(ctx, file.Bucket, file.ObjectKey, 0, sniff.SampleSize-1)
	if err != nil {
		return "", fmt.Errorf("failed to fetch sniff sample: %w", err)
	}
	sniffed := sniff.MIMEType(sample)

	result := policy.Validate(policy.Input{
		OriginalFilename:    file.OriginalFilename,
		DeclaredContentType: file.DeclaredContentType,
		SniffedContentType:  sniffed,
		SizeBytes:           size,
		SizeKnown:           true,
		SampleBytes:         sample,
	})
	if !result.OK {
		return w.quarantine(ctx, file, result, size, sniffed)
	}

	if policy.IsOfficeExtension(file.OriginalFilename) {
		ok, err := w.officeArchiveValid(ctx, file)
		if err != nil {
			return "", fmt.Errorf("failed to verify office archive: %w", err)
		}
		if !ok {
			return w.quarantine(ctx, file, policy.Result{
				Reason:  policy.ReasonOfficeZipInvalid,
				Details: map[string]any{"filename": file.OriginalFilename},
			}, size, sniffed)
		}
	}

	if err := w.quota.IncrementOnActive(ctx, file.OwnerID, size); err != nil {
		if errors.Is(err, models.ErrQuotaExceeded) {
			return w.quarantine(ctx, file, policy.Result{
				Reason:  "quota_exceeded",
				Details: map[string]any{"size": size},
			}, size, sniffed)
		}
		return "", fmt.Errorf("failed to admit quota: %w", err)
	}

	err = w.store.TransitionFile(ctx, file.ID, models.StateScanning, models.StateActive, map[string]any{
		"size_bytes":           size,
		"sniffed_content_type": nullableString(sniffed),
	})
	if err != nil {
		if errors.Is(err, models.ErrStaleState) {
			// Another writer moved the row after admission; release the
			// quota we just took.
			if derr := w.quota.DecrementOnDelete(ctx, file.OwnerID, size); derr != nil {
				logger.Error("failed to release quota after stale transition",
					logger.KeyError, derr.Error(),
					logger.KeyFileID, file.ID,
				)
			}
			return OutcomeSkip, nil
		}
		return "", err
	}

	w.audit.Record(ctx, audit.Event{
		ActorUserID: file.OwnerID,
		Action:      models.ActionScanPass,
		FileID:      file.ID,
		Details:     models.JSONMap{"size": size, "sniffed": sniffed},
	})
	logger.Info("file activated",
		logger.KeyFileID, file.ID,
		logger.KeySize, size,
		logger.KeySniffedType, sniffed,
	)
	return OutcomeActive, nil
}

// quarantine demotes a SCANNING file with the structured failure reason.
func (w *Worker) quarantine(
	ctx context.Context,
	file *models.FileObject,
	result policy.Result,
	size int64,
	sniffed string,
) (Outcome, error) {
	err := w.store.TransitionFile(ctx, file.ID, models.StateScanning, models.StateQuarantined, map[string]any{
		"size_bytes":           size,
		"sniffed_content_type": nullableString(sniffed),
	})
	if err != nil {
		if errors.Is(err, models.ErrStaleState) {
			return OutcomeSkip, nil
		}
		return "", err
	}

	details := models.JSONMap{"reason": result.Reason}
	for k, v := range result.Details {
		details[k] = v
	}
	w.audit.Record(ctx, audit.Event{
		ActorUserID: file.OwnerID,
		Action:      models.ActionScanQuarantined,
		FileID:      file.ID,
		Details:     details,
	})
	logger.Info("file quarantined",
		logger.KeyFileID, file.ID,
		logger.KeyReason, result.Reason,
	)
	return OutcomeQuarantined, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

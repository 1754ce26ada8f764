package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/filegate/filegate/internal/logger"
	"github.com/filegate/filegate/internal/telemetry"
	"github.com/filegate/filegate/pkg/audit"
	"github.com/filegate/filegate/pkg/blob"
	"github.com/filegate/filegate/pkg/metrics"
	"github.com/filegate/filegate/pkg/models"
	"github.com/filegate/filegate/pkg/policy"
	"github.com/filegate/filegate/pkg/sniff"
)

// Coordinator drives the upload lifecycle. All collaborators are injected
// as interfaces; tests substitute in-memory implementations.
type Coordinator struct {
	store   MetadataStore
	blob    blob.Store
	queue   Enqueuer
	quota   QuotaService
	audit   AuditRecorder
	metrics metrics.UploadMetrics

	uploadTTL   time.Duration
	downloadTTL time.Duration
	now         func() time.Time
}

// Config assembles a Coordinator.
type Config struct {
	Store MetadataStore
	Blob  blob.Store
	Queue Enqueuer
	Quota QuotaService
	Audit AuditRecorder

	// Metrics may be nil; recording is then skipped.
	Metrics metrics.UploadMetrics

	UploadTTL   time.Duration
	DownloadTTL time.Duration

	// Now is an injectable clock; defaults to time.Now.
	Now func() time.Time
}

// NewCoordinator creates the upload coordinator.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.UploadTTL <= 0 {
		cfg.UploadTTL = DefaultUploadTTL
	}
	if cfg.DownloadTTL <= 0 {
		cfg.DownloadTTL = DefaultDownloadTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Coordinator{
		store:       cfg.Store,
		blob:        cfg.Blob,
		queue:       cfg.Queue,
		quota:       cfg.Quota,
		audit:       cfg.Audit,
		metrics:     cfg.Metrics,
		uploadTTL:   cfg.UploadTTL,
		downloadTTL: cfg.DownloadTTL,
		now:         cfg.Now,
	}
}

// Init reserves a FileObject row in INITIATED and mints a presigned PUT URL
// for the client to upload through.
func (c *Coordinator) Init(ctx context.Context, caller Caller, req InitRequest) (*InitResponse, error) {
	ctx, span := telemetry.StartUploadSpan(ctx, telemetry.SpanUploadInit, "",
		telemetry.Filename(req.OriginalFilename),
		telemetry.DeclaredType(req.ContentType),
	)
	defer span.End()

	if strings.TrimSpace(req.OriginalFilename) == "" {
		return nil, fmt.Errorf("%w: original_filename is required", ErrInvalidInput)
	}
	if req.ContentType == "" {
		return nil, fmt.Errorf("%w: content_type is required", ErrInvalidInput)
	}
	checksum := strings.ToLower(strings.TrimSpace(req.ChecksumSHA256))
	if len(checksum) != 64 || !isHex(checksum) {
		return nil, fmt.Errorf("%w: checksum_sha256 must be 64 hex characters", ErrInvalidInput)
	}

	ownerID := caller.UserID
	var demoID *string
	if caller.IsDemo() {
		if req.SizeBytes != nil && *req.SizeBytes > policy.DemoMaxSizeBytes {
			return nil, fmt.Errorf("%w: demo uploads are capped at %d bytes", ErrInvalidInput, policy.DemoMaxSizeBytes)
		}
		user, err := c.store.EnsureDemoUser(ctx, caller.DemoID)
		if err != nil {
			return nil, fmt.Errorf("failed to provision demo user: %w", err)
		}
		ownerID = user.ID
		d := caller.DemoID
		demoID = &d
	} else {
		if err := c.quota.EnforceInit(ctx, ownerID); err != nil {
			return nil, err
		}
	}

	objectKey := uuid.New().String() + "_" + objectKeyFilename(req.OriginalFilename)
	expiresAt := c.now().Add(c.uploadTTL)

	file := &models.FileObject{
		OwnerID:             ownerID,
		DemoID:              demoID,
		Bucket:              c.blob.Bucket(),
		ObjectKey:           objectKey,
		OriginalFilename:    req.OriginalFilename,
		DeclaredContentType: req.ContentType,
		ChecksumSHA256:      checksum,
		SizeBytes:           req.SizeBytes,
		State:               models.StateInitiated,
		UploadExpiresAt:     &expiresAt,
	}
	fileID, err := c.store.CreateFile(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}
	telemetry.SetAttributes(ctx, telemetry.FileID(fileID))

	presigned, err := c.blob.PresignPut(ctx, objectKey, req.ContentType, c.uploadTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	c.audit.Record(ctx, audit.Event{
		ActorUserID: ownerID,
		Action:      models.ActionFileInit,
		FileID:      fileID,
		IP:          caller.IP,
		UserAgent:   caller.UserAgent,
		Details: models.JSONMap{
			"filename":     req.OriginalFilename,
			"content_type": req.ContentType,
			"object_key":   objectKey,
		},
	})

	if c.metrics != nil {
		kind := "user"
		if caller.IsDemo() {
			kind = "demo"
		}
		c.metrics.RecordInit(kind)
	}

	return &InitResponse{
		FileID:           fileID,
		ObjectKey:        objectKey,
		UploadURL:        presigned.URL,
		ExpiresIn:        int(c.uploadTTL.Seconds()),
		HeadersToInclude: presigned.Headers,
	}, nil
}

// Complete finalizes an upload: verifies the object landed in the blob
// store, recomputes the checksum, sniffs the content, runs the file-type
// policy, and either enqueues a scan (SCANNING) or parks the file in a
// terminal failure state.
func (c *Coordinator) Complete(ctx context.Context, caller Caller, fileID string) (*CompleteResponse, error) {
	ctx, span := telemetry.StartUploadSpan(ctx, telemetry.SpanUploadComplete, fileID)
	defer span.End()

	start := time.Now()
	resp, err := c.complete(ctx, caller, fileID)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	telemetry.SetAttributes(ctx, telemetry.FileState(string(resp.State)))
	if c.metrics != nil {
		c.metrics.RecordComplete(string(resp.State), time.Since(start).Seconds())
	}
	return resp, nil
}

func (c *Coordinator) complete(ctx context.Context, caller Caller, fileID string) (*CompleteResponse, error) {
	file, err := c.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := authorize(caller, file); err != nil {
		return nil, err
	}
	if file.State != models.StateInitiated {
		return nil, ErrBadState
	}
	if file.UploadExpired(c.now()) {
		return nil, ErrExpired
	}

	size, err := c.blob.Head(ctx, file.Bucket, file.ObjectKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, ErrObjectNotUploaded
		}
		return nil, fmt.Errorf("failed to stat uploaded object: %w", err)
	}

	if file.IsDemo() && size > policy.DemoMaxSizeBytes {
		return c.failComplete(ctx, caller, file, models.StateQuarantined, models.ActionUploadQuarantined,
			policy.Result{Reason: "demo_size_limit", Details: map[string]any{"size": size, "max": policy.DemoMaxSizeBytes}},
			map[string]any{"size_bytes": size})
	}

	digest, err := c.computeChecksum(ctx, file.Bucket, file.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to compute checksum: %w", err)
	}
	if digest != file.ChecksumSHA256 {
		return c.failComplete(ctx, caller, file, models.StateRejected, models.ActionUploadRejected,
			policy.Result{Reason: "checksum_mismatch", Details: map[string]any{"expected": file.ChecksumSHA256, "actual": digest}},
			map[string]any{"size_bytes": size, "checksum_verified": false})
	}

	sample, err := c.blob.GetRange(ctx, file.Bucket, file.ObjectKey, 0, sniff.SampleSize-1)
	if err != nil && !errors.Is(err, blob.ErrNotFound) {
		return nil, fmt.Errorf("failed to fetch sniff sample: %w", err)
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
		return c.failComplete(ctx, caller, file, models.StateQuarantined, models.ActionUploadQuarantined, result,
			map[string]any{
				"size_bytes":           size,
				"checksum_verified":    true,
				"sniffed_content_type": nullableString(sniffed),
			})
	}

	err = c.store.TransitionFile(ctx, file.ID, models.StateInitiated, models.StateScanning, map[string]any{
		"size_bytes":           size,
		"checksum_verified":    true,
		"sniffed_content_type": nullableString(sniffed),
	})
	if err != nil {
		if errors.Is(err, models.ErrStaleState) {
			return nil, ErrBadState
		}
		return nil, err
	}

	// Enqueue only after the row commit so the worker always observes
	// SCANNING on first read.
	if err := c.queue.Enqueue(ctx, file.ID); err != nil {
		logger.Error("failed to enqueue scan job",
			logger.KeyError, err.Error(),
			logger.KeyFileID, file.ID,
		)
		return nil, fmt.Errorf("failed to enqueue scan: %w", err)
	}

	c.audit.Record(ctx, audit.Event{
		ActorUserID: file.OwnerID,
		Action:      models.ActionUploadEnqueued,
		FileID:      file.ID,
		IP:          caller.IP,
		UserAgent:   caller.UserAgent,
		Details:     models.JSONMap{"sniffed": sniffed, "size": size},
	})

	return &CompleteResponse{State: models.StateScanning, SniffedContentType: sniffed}, nil
}

// failComplete transitions the file to a terminal failure state and emits
// the single audit event carrying the reason.
func (c *Coordinator) failComplete(
	ctx context.Context,
	caller Caller,
	file *models.FileObject,
	to models.FileState,
	action string,
	result policy.Result,
	updates map[string]any,
) (*CompleteResponse, error) {
	err := c.store.TransitionFile(ctx, file.ID, models.StateInitiated, to, updates)
	if err != nil {
		if errors.Is(err, models.ErrStaleState) {
			return nil, ErrBadState
		}
		return nil, err
	}

	details := models.JSONMap{"reason": result.Reason}
	for k, v := range result.Details {
		details[k] = v
	}
	c.audit.Record(ctx, audit.Event{
		ActorUserID: file.OwnerID,
		Action:      action,
		FileID:      file.ID,
		IP:          caller.IP,
		UserAgent:   caller.UserAgent,
		Details:     details,
	})

	logger.Info("upload finalization failed",
		logger.KeyFileID, file.ID,
		logger.KeyToState, string(to),
		logger.KeyReason, result.Reason,
	)
	return &CompleteResponse{State: to}, nil
}

// computeChecksum streams the object in chunks and returns the lowercase
// hex SHA-256. No database transaction is held while this runs.
func (c *Coordinator) computeChecksum(ctx context.Context, bucket, key string) (string, error) {
	rc, err := c.blob.Open(ctx, bucket, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	h := sha256.New()
	buf := make([]byte, blob.DefaultChunkSize)
	if _, err := io.CopyBuffer(h, rc, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DownloadURL mints a presigned GET URL for an ACTIVE file. Admins may mint
// URLs in any state.
func (c *Coordinator) DownloadURL(ctx context.Context, caller Caller, fileID string) (*DownloadResponse, error) {
	ctx, span := telemetry.StartUploadSpan(ctx, telemetry.SpanUploadDownloadURL, fileID)
	defer span.End()

	file, err := c.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := authorize(caller, file); err != nil {
		return nil, err
	}
	if file.State != models.StateActive && !caller.IsAdmin {
		return nil, ErrNotAvailable
	}

	url, err := c.blob.PresignGet(ctx, file.ObjectKey, c.downloadTTL, contentDisposition(file.OriginalFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to presign download: %w", err)
	}

	c.audit.Record(ctx, audit.Event{
		ActorUserID: actorFor(caller, file),
		Action:      models.ActionDownloadURLIssued,
		FileID:      file.ID,
		IP:          caller.IP,
		UserAgent:   caller.UserAgent,
		Details:     models.JSONMap{"state": string(file.State)},
	})

	return &DownloadResponse{
		DownloadURL: url,
		ExpiresIn:   int(c.downloadTTL.Seconds()),
	}, nil
}

// Get returns a file visible to the caller.
func (c *Coordinator) Get(ctx context.Context, caller Caller, fileID string) (*models.FileObject, error) {
	file, err := c.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := authorize(caller, file); err != nil {
		return nil, err
	}
	return file, nil
}

// List returns the caller's files, newest first.
func (c *Coordinator) List(ctx context.Context, caller Caller) ([]models.FileObject, error) {
	ownerID := caller.UserID
	if caller.IsDemo() {
		ownerID = caller.DemoID
	}
	return c.store.ListFilesByOwner(ctx, ownerID, 0, 0)
}

// authorize checks ownership: admins pass, demo callers must match the
// record's demo id, users must own the row. Non-owners get forbidden, not
// not-found: the file id itself is unguessable.
func authorize(caller Caller, file *models.FileObject) error {
	if caller.IsAdmin {
		return nil
	}
	if caller.IsDemo() {
		if file.DemoID != nil && *file.DemoID == caller.DemoID {
			return nil
		}
		return ErrForbidden
	}
	if caller.UserID != "" && caller.UserID == file.OwnerID {
		return nil
	}
	return ErrForbidden
}

func actorFor(caller Caller, file *models.FileObject) string {
	if caller.UserID != "" {
		return caller.UserID
	}
	return file.OwnerID
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}

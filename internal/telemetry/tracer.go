package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for upload lifecycle operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// Client attributes
	// ========================================================================
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.address"

	// ========================================================================
	// Identity attributes
	// ========================================================================
	AttrUserID = "user.id"
	AttrDemoID = "demo.id"
	AttrRole   = "user.role"

	// ========================================================================
	// Upload lifecycle attributes
	// ========================================================================
	AttrFileID       = "file.id"
	AttrFilename     = "file.name"
	AttrFileState    = "file.state"
	AttrFileSize     = "file.size"
	AttrDeclaredType = "file.declared_type"
	AttrSniffedType  = "file.sniffed_type"
	AttrReason       = "upload.reason"
	AttrChecksum     = "upload.checksum"

	// ========================================================================
	// Scan attributes
	// ========================================================================
	AttrScanOutcome = "scan.outcome"
	AttrScanAttempt = "scan.attempt"

	// ========================================================================
	// Storage backend attributes
	// ========================================================================
	AttrBucket = "storage.bucket"
	AttrKey    = "storage.key"
	AttrRegion = "storage.region"

	// ========================================================================
	// Queue attributes
	// ========================================================================
	AttrQueueName = "queue.name"
)

// Span names for operations.
// Format: <component>.<operation>
const (
	SpanUploadInit        = "upload.init"
	SpanUploadComplete    = "upload.complete"
	SpanUploadDownloadURL = "upload.download_url"

	SpanScanProcess = "scan.process"

	SpanBlobHead       = "blob.head"
	SpanBlobGetRange   = "blob.get_range"
	SpanBlobOpen       = "blob.open"
	SpanBlobPresignPut = "blob.presign_put"
	SpanBlobPresignGet = "blob.presign_get"

	SpanQueueEnqueue = "queue.enqueue"
	SpanQueueDequeue = "queue.dequeue"
)

// ClientIP returns an attribute for client IP address
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// ClientAddr returns an attribute for full client address
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// UserID returns an attribute for the authenticated user ID
func UserID(id string) attribute.KeyValue {
	return attribute.String(AttrUserID, id)
}

// DemoID returns an attribute for a demo session ID
func DemoID(id string) attribute.KeyValue {
	return attribute.String(AttrDemoID, id)
}

// FileID returns an attribute for a file object ID
func FileID(id string) attribute.KeyValue {
	return attribute.String(AttrFileID, id)
}

// Filename returns an attribute for the declared filename
func Filename(name string) attribute.KeyValue {
	return attribute.String(AttrFilename, name)
}

// FileState returns an attribute for a lifecycle state
func FileState(state string) attribute.KeyValue {
	return attribute.String(AttrFileState, state)
}

// FileSize returns an attribute for object size in bytes
func FileSize(size int64) attribute.KeyValue {
	return attribute.Int64(AttrFileSize, size)
}

// DeclaredType returns an attribute for the declared content type
func DeclaredType(ct string) attribute.KeyValue {
	return attribute.String(AttrDeclaredType, ct)
}

// SniffedType returns an attribute for the sniffed content type
func SniffedType(ct string) attribute.KeyValue {
	return attribute.String(AttrSniffedType, ct)
}

// Reason returns an attribute for a rejection or quarantine reason code
func Reason(code string) attribute.KeyValue {
	return attribute.String(AttrReason, code)
}

// ScanOutcome returns an attribute for a scan job outcome
func ScanOutcome(outcome string) attribute.KeyValue {
	return attribute.String(AttrScanOutcome, outcome)
}

// ScanAttempt returns an attribute for a delivery attempt number
func ScanAttempt(n int) attribute.KeyValue {
	return attribute.Int(AttrScanAttempt, n)
}

// Bucket returns an attribute for S3 bucket name
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for S3 object key
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// Region returns an attribute for cloud region
func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

// QueueName returns an attribute for a queue name
func QueueName(name string) attribute.KeyValue {
	return attribute.String(AttrQueueName, name)
}

// StartUploadSpan starts a span for an upload lifecycle operation.
// This is a convenience function that sets common attributes.
func StartUploadSpan(ctx context.Context, name, fileID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	if fileID != "" {
		allAttrs = append(allAttrs, FileID(fileID))
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}

// StartBlobSpan starts a span for a blob store operation.
func StartBlobSpan(ctx context.Context, name, bucket, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Bucket(bucket),
		StorageKey(key),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}

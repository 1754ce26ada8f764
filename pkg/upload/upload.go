// Package upload implements the upload lifecycle engine: the two-phase
// init/complete protocol, the content-validation pipeline that drives
// INITIATED into SCANNING or a terminal failure state, and download URL
// minting gated on ACTIVE.
package upload

import (
	"context"
	"errors"
	"time"

	"github.com/filegate/filegate/pkg/audit"
	"github.com/filegate/filegate/pkg/models"
)

// Request-level failures surfaced to the HTTP layer. Policy failures are
// not errors: they recover locally into a terminal state.
var (
	ErrBadState          = errors.New("file is not awaiting completion")
	ErrExpired           = errors.New("upload window has expired")
	ErrObjectNotUploaded = errors.New("object has not been uploaded")
	ErrForbidden         = errors.New("forbidden")
	ErrNotAvailable      = errors.New("file is not available for download")
	ErrInvalidInput      = errors.New("invalid input")
)

// Caller identifies who is driving an operation: an authenticated user or
// an anonymous demo session.
type Caller struct {
	UserID  string
	DemoID  string
	IsAdmin bool

	// Request attribution for audit events.
	IP        string
	UserAgent string
}

// IsDemo reports whether the caller is an anonymous demo session.
func (c Caller) IsDemo() bool {
	return c.DemoID != ""
}

// MetadataStore is the persistence surface the coordinator needs.
// *store.GORMStore satisfies this.
type MetadataStore interface {
	CreateFile(ctx context.Context, file *models.FileObject) (string, error)
	GetFile(ctx context.Context, id string) (*models.FileObject, error)
	ListFilesByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.FileObject, error)
	TransitionFile(ctx context.Context, id string, from, to models.FileState, updates map[string]any) error
	EnsureDemoUser(ctx context.Context, demoID string) (*models.User, error)
}

// QuotaService gates init admission.
type QuotaService interface {
	EnforceInit(ctx context.Context, ownerID string) error
}

// Enqueuer hands completed files to the scan queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, fileID string) error
}

// AuditRecorder appends audit events, best-effort. *audit.Recorder
// satisfies this.
type AuditRecorder interface {
	Record(ctx context.Context, ev audit.Event)
}

// InitRequest is the client payload starting an upload.
type InitRequest struct {
	OriginalFilename string
	ContentType      string
	ChecksumSHA256   string
	SizeBytes        *int64
}

// InitResponse carries everything the client needs to PUT directly to the
// blob store.
type InitResponse struct {
	FileID           string            `json:"file_id"`
	ObjectKey        string            `json:"object_key"`
	UploadURL        string            `json:"upload_url"`
	ExpiresIn        int               `json:"expires_in"`
	HeadersToInclude map[string]string `json:"headers_to_include"`
}

// CompleteResponse reports the post-finalization state.
type CompleteResponse struct {
	State              models.FileState `json:"state"`
	SniffedContentType string           `json:"sniffed_content_type,omitempty"`
}

// DownloadResponse carries a minted presigned GET URL.
type DownloadResponse struct {
	DownloadURL string `json:"download_url"`
	ExpiresIn   int    `json:"expires_in"`
}

// Defaults for presign lifetimes, overridable through configuration.
const (
	DefaultUploadTTL   = 15 * time.Minute
	DefaultDownloadTTL = 5 * time.Minute
)

// Package blob provides a thin capability layer over an S3-compatible object
// store: presigned URL minting, HEAD, streaming reads and range reads. The
// service itself never proxies upload bytes; clients talk to the store
// directly through presigned URLs.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// DefaultChunkSize is the read chunk size used when streaming objects for
// checksum computation.
const DefaultChunkSize = 1024 * 1024

// PresignedUpload is a presigned PUT URL plus the headers the client must
// send verbatim for the signature to verify.
type PresignedUpload struct {
	URL     string
	Headers map[string]string
}

// Store is the blob store capability used by the upload coordinator and the
// scan worker. Implementations must be safe for concurrent use.
type Store interface {
	// Bucket returns the bucket objects are written to.
	Bucket() string

	// PresignPut mints a presigned PUT URL binding bucket, key and
	// content type.
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (*PresignedUpload, error)

	// PresignGet mints a presigned GET URL. A non-empty disposition is
	// bound into the signature as response-content-disposition.
	PresignGet(ctx context.Context, key string, ttl time.Duration, disposition string) (string, error)

	// Head returns the object's content length, or ErrNotFound.
	Head(ctx context.Context, bucket, key string) (int64, error)

	// Open returns a streaming reader over the full object. The caller
	// must close it.
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// GetRange fetches bytes [start, end] inclusive. Returns ErrNotFound
	// when the object does not exist. A short result is not an error when
	// the object is smaller than the range.
	GetRange(ctx context.Context, bucket, key string, start, end int64) ([]byte, error)
}

package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/filegate/filegate/internal/logger"
	"github.com/filegate/filegate/internal/telemetry"
)

// S3Config contains the settings for the S3-backed blob store.
type S3Config struct {
	// Endpoint is the internal endpoint used for server-to-store HEAD/GET.
	Endpoint string

	// PublicEndpoint is the endpoint baked into presigned URLs returned to
	// clients. Falls back to Endpoint when empty. Separate because the
	// signature encodes the host.
	PublicEndpoint string

	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string

	// ForcePathStyle is required for MinIO and most S3-compatible stores.
	ForcePathStyle bool

	// AutoCreateBucket ensures the bucket exists at startup.
	AutoCreateBucket bool
}

// S3Store implements Store against an S3-compatible endpoint. It holds two
// client handles: internal for server-side reads, public for signing URLs
// handed to clients.
type S3Store struct {
	internal *s3.Client
	presign  *s3.PresignClient
	bucket   string
}

// newS3Client creates an S3 client from static credentials and an optional
// custom endpoint.
func newS3Client(ctx context.Context, cfg S3Config, endpoint string) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // session token (empty for static credentials)
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return client, nil
}

// NewS3Store builds the dual-endpoint store and, when configured, ensures
// the bucket exists.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	internal, err := newS3Client(ctx, cfg, cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	publicEndpoint := cfg.PublicEndpoint
	if publicEndpoint == "" {
		publicEndpoint = cfg.Endpoint
	}
	public, err := newS3Client(ctx, cfg, publicEndpoint)
	if err != nil {
		return nil, err
	}

	store := &S3Store{
		internal: internal,
		presign:  s3.NewPresignClient(public),
		bucket:   cfg.Bucket,
	}

	if cfg.AutoCreateBucket {
		if err := store.ensureBucket(ctx); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// ensureBucket HEADs the bucket and creates it when missing. A create
// failure after a failed HEAD is tolerated: a concurrent instance may have
// won the race.
func (s *S3Store) ensureBucket(ctx context.Context) error {
	_, err := s.internal.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	_, createErr := s.internal.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if createErr != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(createErr, &owned) || errors.As(createErr, &exists) {
			return nil
		}
		// Re-check: the bucket may exist but HEAD failed on permissions.
		if _, headErr := s.internal.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); headErr == nil {
			return nil
		}
		return fmt.Errorf("failed to ensure bucket %q: %w", s.bucket, createErr)
	}
	logger.Info("created blob store bucket", logger.KeyBucket, s.bucket)
	return nil
}

func (s *S3Store) Bucket() string {
	return s.bucket
}

func (s *S3Store) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (*PresignedUpload, error) {
	ctx, span := telemetry.StartBlobSpan(ctx, telemetry.SpanBlobPresignPut, s.bucket, key)
	defer span.End()

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to presign PUT for %q: %w", key, err)
	}
	return &PresignedUpload{
		URL:     req.URL,
		Headers: map[string]string{"Content-Type": contentType},
	}, nil
}

func (s *S3Store) PresignGet(ctx context.Context, key string, ttl time.Duration, disposition string) (string, error) {
	ctx, span := telemetry.StartBlobSpan(ctx, telemetry.SpanBlobPresignGet, s.bucket, key)
	defer span.End()

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if disposition != "" {
		input.ResponseContentDisposition = aws.String(disposition)
	}
	req, err := s.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign GET for %q: %w", key, err)
	}
	return req.URL, nil
}

func (s *S3Store) Head(ctx context.Context, bucket, key string) (int64, error) {
	ctx, span := telemetry.StartBlobSpan(ctx, telemetry.SpanBlobHead, bucket, key)
	defer span.End()

	out, err := s.internal.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to HEAD %s/%s: %w", bucket, key, err)
	}
	if out.ContentLength == nil {
		return 0, nil
	}
	return *out.ContentLength, nil
}

func (s *S3Store) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	ctx, span := telemetry.StartBlobSpan(ctx, telemetry.SpanBlobOpen, bucket, key)
	defer span.End()

	out, err := s.internal.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to GET %s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}

func (s *S3Store) GetRange(ctx context.Context, bucket, key string, start, end int64) ([]byte, error) {
	ctx, span := telemetry.StartBlobSpan(ctx, telemetry.SpanBlobGetRange, bucket, key)
	defer span.End()

	out, err := s.internal.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		// A ranged GET against a zero-byte object returns 416. Empty
		// content is a policy decision, not an infrastructure error.
		if isInvalidRange(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to GET range %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// isNotFound matches the S3 error shapes for a missing object. HeadObject
// reports types.NotFound while GetObject reports types.NoSuchKey.
func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}

// isInvalidRange matches the InvalidRange API error code. The SDK has no
// modeled type for it, so it is matched by code.
func isInvalidRange(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange"
}

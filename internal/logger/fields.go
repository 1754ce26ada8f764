package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so log aggregation
// and querying work across the API, the scan worker, and the CLI.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// HTTP Request
	// ========================================================================
	KeyRequestID = "request_id" // Per-request ID from chi middleware
	KeyRoute     = "route"      // Matched route pattern
	KeyMethod    = "method"     // HTTP method
	KeyStatus    = "status"     // HTTP response status code
	KeyClientIP  = "client_ip"  // Client IP address
	KeyUserAgent = "user_agent" // Client User-Agent header

	// ========================================================================
	// Identity
	// ========================================================================
	KeyUserID = "user_id" // Authenticated user ID
	KeyEmail  = "email"   // User email
	KeyDemoID = "demo_id" // Demo session ID, when acting anonymously
	KeyRole   = "role"    // User role

	// ========================================================================
	// Upload Lifecycle
	// ========================================================================
	KeyFileID       = "file_id"       // File object ID
	KeyFilename     = "filename"      // Original filename as declared by the client
	KeyState        = "state"         // Current lifecycle state
	KeyFromState    = "from_state"    // Transition source state
	KeyToState      = "to_state"      // Transition target state
	KeyReason       = "reason"        // Rejection/quarantine reason code
	KeySize         = "size"          // Object size in bytes
	KeyDeclaredType = "declared_type" // Declared content type
	KeySniffedType  = "sniffed_type"  // Sniffed content type
	KeyChecksum     = "checksum"      // SHA-256 digest, lowercase hex

	// ========================================================================
	// Blob Storage
	// ========================================================================
	KeyBucket   = "bucket"   // Bucket name
	KeyKey      = "key"      // Object key
	KeyEndpoint = "endpoint" // S3 endpoint in use
	KeyRegion   = "region"   // S3 region

	// ========================================================================
	// Queue & Worker
	// ========================================================================
	KeyQueue      = "queue"       // Queue name
	KeyAttempt    = "attempt"     // Delivery attempt number
	KeyMaxRetries = "max_retries" // Maximum delivery attempts
	KeyDelay      = "delay"       // Retry delay

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyComponent  = "component"   // Subsystem name: api, worker, store, blob
	KeyAddr       = "addr"        // Listen address
)

// ============================================================================
// Field constructors for type safety
// These functions provide type-safe construction of slog.Attr values.
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// RequestID returns a slog.Attr for the per-request ID
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// Route returns a slog.Attr for the matched route pattern
func Route(pattern string) slog.Attr {
	return slog.String(KeyRoute, pattern)
}

// Method returns a slog.Attr for the HTTP method
func Method(m string) slog.Attr {
	return slog.String(KeyMethod, m)
}

// Status returns a slog.Attr for the HTTP response status
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// ClientIP returns a slog.Attr for client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// UserAgent returns a slog.Attr for the client User-Agent
func UserAgent(ua string) slog.Attr {
	return slog.String(KeyUserAgent, ua)
}

// UserID returns a slog.Attr for the authenticated user ID
func UserID(id string) slog.Attr {
	return slog.String(KeyUserID, id)
}

// Email returns a slog.Attr for a user email
func Email(email string) slog.Attr {
	return slog.String(KeyEmail, email)
}

// DemoID returns a slog.Attr for a demo session ID
func DemoID(id string) slog.Attr {
	return slog.String(KeyDemoID, id)
}

// Role returns a slog.Attr for a user role
func Role(role string) slog.Attr {
	return slog.String(KeyRole, role)
}

// FileID returns a slog.Attr for a file object ID
func FileID(id string) slog.Attr {
	return slog.String(KeyFileID, id)
}

// Filename returns a slog.Attr for the declared filename
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// State returns a slog.Attr for a lifecycle state
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// FromState returns a slog.Attr for a transition source state
func FromState(s string) slog.Attr {
	return slog.String(KeyFromState, s)
}

// ToState returns a slog.Attr for a transition target state
func ToState(s string) slog.Attr {
	return slog.String(KeyToState, s)
}

// Reason returns a slog.Attr for a rejection or quarantine reason code
func Reason(code string) slog.Attr {
	return slog.String(KeyReason, code)
}

// Size returns a slog.Attr for object size in bytes
func Size(n int64) slog.Attr {
	return slog.Int64(KeySize, n)
}

// DeclaredType returns a slog.Attr for the declared content type
func DeclaredType(ct string) slog.Attr {
	return slog.String(KeyDeclaredType, ct)
}

// SniffedType returns a slog.Attr for the sniffed content type
func SniffedType(ct string) slog.Attr {
	return slog.String(KeySniffedType, ct)
}

// Checksum returns a slog.Attr for a SHA-256 digest in lowercase hex
func Checksum(hex string) slog.Attr {
	return slog.String(KeyChecksum, hex)
}

// Bucket returns a slog.Attr for a bucket name
func Bucket(name string) slog.Attr {
	return slog.String(KeyBucket, name)
}

// Key returns a slog.Attr for an object key
func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

// Endpoint returns a slog.Attr for the S3 endpoint
func Endpoint(url string) slog.Attr {
	return slog.String(KeyEndpoint, url)
}

// Region returns a slog.Attr for the S3 region
func Region(r string) slog.Attr {
	return slog.String(KeyRegion, r)
}

// Queue returns a slog.Attr for a queue name
func Queue(name string) slog.Attr {
	return slog.String(KeyQueue, name)
}

// Attempt returns a slog.Attr for a delivery attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for maximum delivery attempts
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// Delay returns a slog.Attr for a retry delay in seconds
func Delay(seconds int) slog.Attr {
	return slog.Int(KeyDelay, seconds)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Component returns a slog.Attr for a subsystem name
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Addr returns a slog.Attr for a listen address
func Addr(addr string) slog.Attr {
	return slog.String(KeyAddr, addr)
}

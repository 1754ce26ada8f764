package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filegate/filegate/pkg/api/auth"
	"github.com/filegate/filegate/pkg/audit"
	"github.com/filegate/filegate/pkg/blob"
	"github.com/filegate/filegate/pkg/demo"
	"github.com/filegate/filegate/pkg/models"
	"github.com/filegate/filegate/pkg/queue"
	"github.com/filegate/filegate/pkg/quota"
	"github.com/filegate/filegate/pkg/ratelimit"
	"github.com/filegate/filegate/pkg/scan"
	"github.com/filegate/filegate/pkg/store"
	"github.com/filegate/filegate/pkg/upload"
)

const testJWTSecret = "router-test-secret-0123456789abcdef"

// apiEnv wires the full HTTP surface against SQLite, an in-memory blob
// store, and miniredis.
type apiEnv struct {
	router http.Handler
	blob   *blob.MemoryStore
	worker *scan.Worker
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	mem := blob.NewMemoryStore("uploads")
	q := queue.New(rdb)
	rec := audit.NewRecorder(st)
	quotas := quota.NewService(st)

	coordinator := upload.NewCoordinator(upload.Config{
		Store: st,
		Blob:  mem,
		Queue: q,
		Quota: quotas,
		Audit: rec,
	})

	jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: testJWTSecret})
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		JWTService:  jwtService,
		DemoSigner:  demo.NewSigner(testJWTSecret),
		Limiter:     ratelimit.NewLimiter(rdb),
		Coordinator: coordinator,
		Users:       st,
		DB:          st,
		Redis:       rdb,
	})

	worker := scan.NewWorker(scan.Config{
		Store: st,
		Blob:  mem,
		Queue: q,
		Quota: quotas,
		Audit: rec,
	})

	return &apiEnv{router: router, blob: mem, worker: worker}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) {
		r.AddCookie(c)
	}
}

func withRemoteAddr(addr string) func(*http.Request) {
	return func(r *http.Request) {
		r.RemoteAddr = addr
	}
}

func (e *apiEnv) register(t *testing.T, email string) string {
	t.Helper()

	rr := e.do(t, http.MethodPost, "/auth/register", map[string]string{
		"email":    email,
		"password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tok))
	require.Equal(t, "bearer", tok.TokenType)
	require.NotEmpty(t, tok.AccessToken)
	return tok.AccessToken
}

// initUpload drives POST /files/init and drops the body into the blob store
// as if the client had PUT it through the presigned URL.
func (e *apiEnv) initUpload(t *testing.T, filename, contentType string, body []byte, opts ...func(*http.Request)) string {
	t.Helper()

	sum := sha256.Sum256(body)
	rr := e.do(t, http.MethodPost, "/files/init", map[string]any{
		"original_filename": filename,
		"content_type":      contentType,
		"checksum_sha256":   hex.EncodeToString(sum[:]),
	}, opts...)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp upload.InitResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.FileID)
	require.NotEmpty(t, resp.UploadURL)

	e.blob.Put(resp.ObjectKey, body)
	return resp.FileID
}

func TestHealthEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	rr := env.do(t, http.MethodGet, "/health/live", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ready))
	assert.Equal(t, "ok", ready.Status)
	assert.Equal(t, "ok", ready.Checks["database"])
	assert.Equal(t, "ok", ready.Checks["redis"])
}

func TestRegisterAndLogin(t *testing.T) {
	env := newAPIEnv(t)

	env.register(t, "alice@example.com")

	t.Run("duplicate email", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/auth/register", map[string]string{
			"email":    "alice@example.com",
			"password": "correct-horse-battery",
		})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "already registered")
	})

	t.Run("login", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/auth/login", map[string]string{
			"email":    "alice@example.com",
			"password": "correct-horse-battery",
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Contains(t, rr.Body.String(), "access_token")
	})

	t.Run("wrong password", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/auth/login", map[string]string{
			"email":    "alice@example.com",
			"password": "not-her-password",
		})
		require.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "Invalid email or password")
	})
}

func TestFilesRequireAuthentication(t *testing.T) {
	env := newAPIEnv(t)

	rr := env.do(t, http.MethodPost, "/files/init", map[string]any{
		"original_filename": "a.txt",
		"content_type":      "text/plain",
		"checksum_sha256":   "00",
	})
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodGet, "/files", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUploadLifecycleOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	token := env.register(t, "uploader@example.com")
	body := []byte("plain text payload for the lifecycle test\n")

	fileID := env.initUpload(t, "notes.txt", "text/plain", body, withBearer(token))

	// Download before completion is refused.
	rr := env.do(t, http.MethodPost, "/files/"+fileID+"/download-url", nil, withBearer(token))
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, http.MethodPost, "/files/"+fileID+"/complete", nil, withBearer(token))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var completed upload.CompleteResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &completed))
	assert.Equal(t, models.StateScanning, completed.State)
	assert.Equal(t, "text/plain", completed.SniffedContentType)

	// Completing twice is a client error.
	rr = env.do(t, http.MethodPost, "/files/"+fileID+"/complete", nil, withBearer(token))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// Still scanning, so no download URL yet.
	rr = env.do(t, http.MethodPost, "/files/"+fileID+"/download-url", nil, withBearer(token))
	require.Equal(t, http.StatusForbidden, rr.Code)

	outcome, err := env.worker.Process(t.Context(), fileID)
	require.NoError(t, err)
	require.Equal(t, scan.OutcomeActive, outcome)

	rr = env.do(t, http.MethodGet, "/files/"+fileID, nil, withBearer(token))
	require.Equal(t, http.StatusOK, rr.Code)

	var detail struct {
		State            string `json:"state"`
		SizeBytes        *int64 `json:"size_bytes"`
		ChecksumVerified bool   `json:"checksum_verified"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	assert.Equal(t, string(models.StateActive), detail.State)
	require.NotNil(t, detail.SizeBytes)
	assert.Equal(t, int64(len(body)), *detail.SizeBytes)
	assert.True(t, detail.ChecksumVerified)

	rr = env.do(t, http.MethodPost, "/files/"+fileID+"/download-url", nil, withBearer(token))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var dl upload.DownloadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dl))
	assert.NotEmpty(t, dl.DownloadURL)
	assert.Equal(t, int(upload.DefaultDownloadTTL.Seconds()), dl.ExpiresIn)

	rr = env.do(t, http.MethodGet, "/files", nil, withBearer(token))
	require.Equal(t, http.StatusOK, rr.Code)

	var list []json.RawMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestCompleteObjectNotUploaded(t *testing.T) {
	env := newAPIEnv(t)
	token := env.register(t, "early@example.com")

	sum := sha256.Sum256([]byte("never uploaded"))
	rr := env.do(t, http.MethodPost, "/files/init", map[string]any{
		"original_filename": "ghost.txt",
		"content_type":      "text/plain",
		"checksum_sha256":   hex.EncodeToString(sum[:]),
	}, withBearer(token))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp upload.InitResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	rr = env.do(t, http.MethodPost, "/files/"+resp.FileID+"/complete", nil, withBearer(token))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "has not been uploaded")
}

func TestQuarantineReportedInState(t *testing.T) {
	env := newAPIEnv(t)
	token := env.register(t, "mime@example.com")

	// Declared as PDF, actually plain text. Complete quarantines but the
	// HTTP call itself succeeds.
	body := []byte("this is not a pdf at all")
	fileID := env.initUpload(t, "report.pdf", "application/pdf", body, withBearer(token))

	rr := env.do(t, http.MethodPost, "/files/"+fileID+"/complete", nil, withBearer(token))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var completed upload.CompleteResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &completed))
	assert.Equal(t, models.StateQuarantined, completed.State)
}

func TestDemoSession(t *testing.T) {
	env := newAPIEnv(t)

	rr := env.do(t, http.MethodPost, "/demo/start", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())

	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "demo" {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "demo cookie not set")
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 7200, cookie.MaxAge)

	body := []byte("demo upload body\n")
	fileID := env.initUpload(t, "demo.txt", "text/plain", body, withCookie(cookie))

	rr = env.do(t, http.MethodPost, "/files/"+fileID+"/complete", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/files", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), fileID)

	t.Run("detail view needs a full account", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/files/"+fileID, nil, withCookie(cookie))
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("other demo session is forbidden", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/demo/start", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var other *http.Cookie
		for _, c := range rr.Result().Cookies() {
			if c.Name == "demo" {
				other = c
			}
		}
		require.NotNil(t, other)

		rr = env.do(t, http.MethodPost, "/files/"+fileID+"/complete", nil, withCookie(other))
		require.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestRegisterRateLimit(t *testing.T) {
	env := newAPIEnv(t)

	for i := 0; i < int(ratelimit.LimitAuthRegister.Max); i++ {
		rr := env.do(t, http.MethodPost, "/auth/register", map[string]string{
			"email":    fmt.Sprintf("user%d@example.com", i),
			"password": "correct-horse-battery",
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	rr := env.do(t, http.MethodPost, "/auth/register", map[string]string{
		"email":    "late@example.com",
		"password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "rate limit exceeded")

	// A different client IP has its own budget.
	rr = env.do(t, http.MethodPost, "/auth/register", map[string]string{
		"email":    "elsewhere@example.com",
		"password": "correct-horse-battery",
	}, withRemoteAddr("198.51.100.7:4000"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/filegate/filegate/internal/logger"
	"github.com/filegate/filegate/pkg/api/auth"
	"github.com/filegate/filegate/pkg/api/handlers"
	apiMiddleware "github.com/filegate/filegate/pkg/api/middleware"
	"github.com/filegate/filegate/pkg/demo"
	"github.com/filegate/filegate/pkg/metrics"
	"github.com/filegate/filegate/pkg/ratelimit"
	"github.com/filegate/filegate/pkg/upload"
)

// RouterConfig carries the collaborators the routes dispatch to.
type RouterConfig struct {
	JWTService  *auth.JWTService
	DemoSigner  *demo.Signer
	Limiter     *ratelimit.Limiter
	Coordinator *upload.Coordinator
	Users       handlers.UserStore
	DB          handlers.Pinger
	Redis       redis.UniversalClient

	// RateLimitMetrics may be nil.
	RateLimitMetrics metrics.RateLimitMetrics

	SecureCookies bool
}

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - POST /auth/register - Account creation
//   - POST /auth/login - User authentication
//   - POST /demo/start - Anonymous demo session cookie
//   - POST /files/init - Reserve an upload and mint a presigned PUT URL
//   - POST /files/{id}/complete - Finalize an upload
//   - GET /files - List the caller's files
//   - GET /files/{id} - File detail (registered users only)
//   - POST /files/{id}/download-url - Mint a presigned GET URL
//   - GET /health/live - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /metrics - Prometheus metrics (404 when disabled)
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	// Root redirect to the liveness probe for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health/live", http.StatusTemporaryRedirect)
	})

	r.Handle("/metrics", metrics.Handler())

	authHandler := handlers.NewAuthHandler(cfg.Users, cfg.JWTService)
	demoHandler := handlers.NewDemoHandler(cfg.DemoSigner, cfg.SecureCookies)
	filesHandler := handlers.NewFilesHandler(cfg.Coordinator)

	limit := func(l ratelimit.Limit) func(http.Handler) http.Handler {
		return apiMiddleware.RateLimit(cfg.Limiter, l, cfg.RateLimitMetrics)
	}

	// Auth routes - unauthenticated, keyed by client IP
	r.Route("/auth", func(r chi.Router) {
		r.With(limit(ratelimit.LimitAuthRegister)).Post("/register", authHandler.Register)
		r.With(limit(ratelimit.LimitAuthLogin)).Post("/login", authHandler.Login)
	})

	// Demo session bootstrap - unauthenticated, keyed by client IP
	r.With(limit(ratelimit.LimitDemoStart)).Post("/demo/start", demoHandler.Start)

	r.Route("/files", func(r chi.Router) {
		// Registered users and demo sessions share the upload lifecycle.
		// Rate limits run after authentication so they key on identity.
		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.DemoOrJWT(cfg.JWTService, cfg.DemoSigner))

			r.With(limit(ratelimit.LimitFilesInit)).Post("/init", filesHandler.Init)
			r.With(limit(ratelimit.LimitFilesComplete)).Post("/{id}/complete", filesHandler.Complete)
			r.With(limit(ratelimit.LimitFilesDownloadURL)).Post("/{id}/download-url", filesHandler.DownloadURL)
			r.Get("/", filesHandler.List)
		})

		// Detail view requires a full account
		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.JWTAuth(cfg.JWTService))
			r.Get("/{id}", filesHandler.Get)
		})
	})

	return r
}

// isQuietPath returns true for endpoints polled by orchestrators and
// scrapers, which log at DEBUG to reduce noise.
func isQuietPath(path string) bool {
	return path == "/metrics" || path == "/health" || strings.HasPrefix(path, "/health/")
}

// requestLogger is a custom middleware that logs requests using the internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
//   - Health and metrics requests are logged at DEBUG level to reduce noise
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			logger.KeyRequestID, requestID,
			logger.KeyMethod, r.Method,
			logger.KeyRoute, r.URL.Path,
			logger.KeyClientIP, r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logArgs := []any{
			logger.KeyRequestID, requestID,
			logger.KeyMethod, r.Method,
			logger.KeyRoute, r.URL.Path,
			logger.KeyStatus, ww.Status(),
			logger.KeyDurationMs, float64(time.Since(start).Microseconds()) / 1000.0,
		}

		if isQuietPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}

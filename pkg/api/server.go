package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/filegate/filegate/internal/logger"
	"github.com/filegate/filegate/pkg/api/auth"
	"github.com/filegate/filegate/pkg/api/handlers"
	"github.com/filegate/filegate/pkg/demo"
	"github.com/filegate/filegate/pkg/metrics"
	"github.com/filegate/filegate/pkg/ratelimit"
	"github.com/filegate/filegate/pkg/upload"
)

// Deps carries the collaborators the API server routes to.
type Deps struct {
	Coordinator *upload.Coordinator
	Users       handlers.UserStore
	DB          handlers.Pinger
	Redis       redis.UniversalClient

	// RateLimitMetrics may be nil.
	RateLimitMetrics metrics.RateLimitMetrics
}

// Server provides an HTTP server for the REST API.
//
// The server exposes the upload lifecycle, authentication, demo sessions,
// health probes, and the Prometheus metrics endpoint. It supports graceful
// shutdown with configurable timeout.
type Server struct {
	server       *http.Server
	config       APIConfig
	shutdownOnce sync.Once
}

// NewServer creates a new API HTTP server.
//
// The server is created in a stopped state. Call Start() to begin serving
// requests.
//
// The JWT service and demo cookie signer are created internally from the
// config. The JWT secret must be configured via config.JWT.Secret or the
// JWT_SECRET environment variable; the same secret signs demo cookies.
//
// Returns a configured but not yet started Server, or an error if JWT
// configuration is invalid.
func NewServer(config APIConfig, deps Deps) (*Server, error) {
	config.applyDefaults()

	// Get JWT secret from config (prefers env var)
	jwtSecret := config.GetJWTSecret()
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("JWT secret must be at least 32 characters; set via %s env var or config", EnvJWTSecret)
	}

	jwtService, err := auth.NewJWTService(auth.JWTConfig{
		Secret:              jwtSecret,
		Algorithm:           config.JWT.Algorithm,
		AccessTokenDuration: config.JWT.AccessTokenDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	router := NewRouter(RouterConfig{
		JWTService:       jwtService,
		DemoSigner:       demo.NewSigner(jwtSecret),
		Limiter:          ratelimit.NewLimiter(deps.Redis),
		Coordinator:      deps.Coordinator,
		Users:            deps.Users,
		DB:               deps.DB,
		Redis:            deps.Redis,
		RateLimitMetrics: deps.RateLimitMetrics,
		SecureCookies:    config.SecureCookies,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server: server,
		config: config,
	}, nil
}

// Start starts the API HTTP server and blocks until the context is cancelled
// or an error occurs.
//
// When the context is cancelled, Start initiates graceful shutdown and
// returns nil on success.
func (s *Server) Start(ctx context.Context) error {
	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.config.Port)
		logger.Debug("API endpoints available",
			"live", fmt.Sprintf("http://localhost:%d/health/live", s.config.Port),
			"ready", fmt.Sprintf("http://localhost:%d/health/ready", s.config.Port),
			"metrics", fmt.Sprintf("http://localhost:%d/metrics", s.config.Port),
		)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// Create new context with timeout for graceful shutdown
		// Don't use the cancelled ctx as it would cause immediate shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the API server.
//
// Stop is safe to call multiple times and safe to call concurrently with
// Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", logger.KeyError, err.Error())
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}

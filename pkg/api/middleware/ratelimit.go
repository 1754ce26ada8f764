package middleware

import (
	"net"
	"net/http"

	"github.com/filegate/filegate/pkg/metrics"
	"github.com/filegate/filegate/pkg/ratelimit"
)

// RateLimit enforces the given per-route budget. Authenticated callers are
// keyed by user id, demo sessions by demo id, and anonymous callers by
// client IP. Must run after the authentication middleware on routes that
// have one. m may be nil.
func RateLimit(limiter *ratelimit.Limiter, limit ratelimit.Limit, m metrics.RateLimitMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope, identity := callerIdentity(r, limit)
			if !limiter.Allow(r.Context(), scope, identity, limit) {
				if m != nil {
					m.RecordRejection(limit.Route)
				}
				writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerIdentity(r *http.Request, limit ratelimit.Limit) (scope, identity string) {
	if limit.Scope == ratelimit.ScopeUser {
		if claims := GetClaimsFromContext(r.Context()); claims != nil {
			return ratelimit.ScopeUser, claims.UserID
		}
		if demoID := GetDemoIDFromContext(r.Context()); demoID != "" {
			return ratelimit.ScopeUser, demoID
		}
		// User-scoped budget without a user context: still counted under
		// the user scope, keyed by address.
		return ratelimit.ScopeUser, "ip-" + clientIP(r)
	}
	return ratelimit.ScopeIP, clientIP(r)
}

// clientIP strips the port when RemoteAddr still carries one. Behind the
// RealIP middleware it is already a bare address.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

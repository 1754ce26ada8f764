// Package middleware provides HTTP middleware for the filegate API:
// JWT bearer authentication, demo-cookie session resolution and per-route
// rate limiting.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/filegate/filegate/pkg/api/auth"
	"github.com/filegate/filegate/pkg/demo"
)

type contextKey string

const (
	claimsContextKey contextKey = "jwt_claims"
	demoContextKey   contextKey = "demo_id"
)

// GetClaimsFromContext returns the JWT claims stored by JWTAuth or DemoOrJWT,
// or nil when the request carried no bearer token.
func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, ok := ctx.Value(claimsContextKey).(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}

// GetDemoIDFromContext returns the verified demo session id, or "".
func GetDemoIDFromContext(ctx context.Context) string {
	id, ok := ctx.Value(demoContextKey).(string)
	if !ok {
		return ""
	}
	return id
}

// extractBearerToken pulls the token out of the Authorization header.
// The scheme match is case-insensitive.
func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := parts[1]
	if token == "" {
		return "", false
	}
	return token, true
}

// JWTAuth requires a valid bearer access token and stores the claims in the
// request context.
func JWTAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				writeUnauthorized(w, "Missing authentication token")
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DemoOrJWT accepts either a bearer access token or a signed demo cookie.
// The bearer token wins when both are present; a present-but-invalid
// credential of either kind is rejected rather than falling through.
func DemoOrJWT(jwtService *auth.JWTService, signer *demo.Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := extractBearerToken(r); ok {
				claims, err := jwtService.ValidateToken(token)
				if err != nil {
					writeUnauthorized(w, "Invalid or expired token")
					return
				}
				ctx := context.WithValue(r.Context(), claimsContextKey, claims)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if cookie, err := r.Cookie(demo.CookieName); err == nil {
				demoID, err := signer.Verify(cookie.Value)
				if err != nil {
					writeUnauthorized(w, "Invalid demo session")
					return
				}
				ctx := context.WithValue(r.Context(), demoContextKey, demoID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			writeUnauthorized(w, "Missing authentication token")
		})
	}
}

// writeUnauthorized writes a 401 problem response. The middleware package
// keeps its own writer to avoid importing the handlers package.
func writeUnauthorized(w http.ResponseWriter, detail string) {
	writeProblem(w, http.StatusUnauthorized, "Unauthorized", detail)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  title,
		"status": status,
		"detail": detail,
	})
}

package handlers

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/filegate/filegate/pkg/api/middleware"
	"github.com/filegate/filegate/pkg/upload"
)

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is
// written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// callerFromRequest builds the upload caller identity from whatever the
// authentication middleware resolved.
func callerFromRequest(r *http.Request) upload.Caller {
	caller := upload.Caller{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil {
		caller.UserID = claims.UserID
		caller.IsAdmin = claims.IsAdmin()
		return caller
	}
	caller.DemoID = middleware.GetDemoIDFromContext(r.Context())
	return caller
}

// clientIP strips the port when RemoteAddr still carries one. Behind the
// RealIP middleware it is already a bare address.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

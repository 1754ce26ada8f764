package handlers

import (
	"net/http"

	"github.com/filegate/filegate/pkg/demo"
)

// DemoHandler starts anonymous demo sessions.
type DemoHandler struct {
	signer *demo.Signer

	// secureCookies marks the cookie Secure; enabled outside dev.
	secureCookies bool
}

// NewDemoHandler creates a new DemoHandler.
func NewDemoHandler(signer *demo.Signer, secureCookies bool) *DemoHandler {
	return &DemoHandler{
		signer:        signer,
		secureCookies: secureCookies,
	}
}

// Start handles POST /demo/start.
// Mints a signed demo session cookie valid for two hours.
func (h *DemoHandler) Start(w http.ResponseWriter, r *http.Request) {
	demoID := demo.NewSessionID()
	token := h.signer.Mint(demoID, demo.MaxAge)

	http.SetCookie(w, &http.Cookie{
		Name:     demo.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(demo.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	WriteJSONOK(w, map[string]bool{"ok": true})
}

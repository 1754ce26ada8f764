// Package demo implements anonymous demo sessions: a signed opaque cookie
// conveying an ephemeral owner identity, bounded in lifetime and per-file
// size.
package demo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CookieName is the cookie carrying the demo session token.
const CookieName = "demo"

// MaxAge bounds the lifetime of a demo session.
const MaxAge = 2 * time.Hour

var (
	ErrMalformedToken = errors.New("malformed demo token")
	ErrBadSignature   = errors.New("invalid demo token signature")
	ErrExpiredToken   = errors.New("expired demo token")
)

// Signer mints and verifies demo session tokens. The token value, after
// base64url decoding, is "<demo_id>.<issued_at>.<ttl>.<hex_hmac>" with the
// HMAC-SHA256 computed over "<demo_id>.<issued_at>.<ttl>".
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a token signer with the given secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

// NewSignerWithClock creates a signer with an injectable clock for tests.
func NewSignerWithClock(secret string, now func() time.Time) *Signer {
	return &Signer{secret: []byte(secret), now: now}
}

// NewSessionID mints a fresh demo session identifier.
func NewSessionID() string {
	return uuid.New().String()
}

// Mint creates a signed token for the demo id with the given lifetime.
func (s *Signer) Mint(demoID string, ttl time.Duration) string {
	issued := s.now().Unix()
	ttlSecs := int64(ttl.Seconds())
	payload := fmt.Sprintf("%s.%d.%d", demoID, issued, ttlSecs)
	sig := s.sign(payload)
	return base64.RawURLEncoding.EncodeToString([]byte(payload + "." + sig))
}

// Verify checks the token's signature and lifetime and returns the demo id.
// The signature comparison is constant-time.
func (s *Signer) Verify(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		// Tolerate padded encodings from older clients.
		raw, err = base64.URLEncoding.DecodeString(token)
		if err != nil {
			return "", ErrMalformedToken
		}
	}

	parts := strings.Split(string(raw), ".")
	if len(parts) != 4 {
		return "", ErrMalformedToken
	}
	demoID, issuedStr, ttlStr, sig := parts[0], parts[1], parts[2], parts[3]

	payload := demoID + "." + issuedStr + "." + ttlStr
	expected := s.sign(payload)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", ErrBadSignature
	}

	issued, err := strconv.ParseInt(issuedStr, 10, 64)
	if err != nil {
		return "", ErrMalformedToken
	}
	ttl, err := strconv.ParseInt(ttlStr, 10, 64)
	if err != nil {
		return "", ErrMalformedToken
	}
	if s.now().Unix() > issued+ttl {
		return "", ErrExpiredToken
	}
	return demoID, nil
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

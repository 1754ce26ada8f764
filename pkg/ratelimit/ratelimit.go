// Package ratelimit implements a fixed-window request limiter over Redis.
// Counters are keyed per scope, identity, route and window; the first
// increment in a window sets the TTL so abandoned keys expire on their own.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/filegate/filegate/internal/logger"
)

// Scopes for limiter identities.
const (
	ScopeIP   = "ip"
	ScopeUser = "user"
)

// Limit describes one route's budget within a window. Scope selects how
// callers are identified; an empty Scope counts as ScopeIP.
type Limit struct {
	Route  string
	Scope  string
	Max    int
	Window time.Duration
}

// Per-route budgets. IP-scoped limits guard unauthenticated routes;
// user-scoped limits guard the upload lifecycle.
var (
	LimitAuthRegister     = Limit{Route: "auth_register", Scope: ScopeIP, Max: 3, Window: time.Minute}
	LimitAuthLogin        = Limit{Route: "auth_login", Scope: ScopeIP, Max: 5, Window: time.Minute}
	LimitDemoStart        = Limit{Route: "demo_start", Scope: ScopeIP, Max: 10, Window: time.Minute}
	LimitFilesInit        = Limit{Route: "files_init", Scope: ScopeUser, Max: 10, Window: time.Minute}
	LimitFilesComplete    = Limit{Route: "files_complete", Scope: ScopeUser, Max: 20, Window: time.Minute}
	LimitFilesDownloadURL = Limit{Route: "files_download_url", Scope: ScopeUser, Max: 30, Window: time.Minute}
)

// Limiter counts requests in fixed windows backed by Redis.
type Limiter struct {
	rdb redis.UniversalClient
	now func() time.Time
}

// NewLimiter creates a limiter over the given Redis client.
func NewLimiter(rdb redis.UniversalClient) *Limiter {
	return &Limiter{rdb: rdb, now: time.Now}
}

// NewLimiterWithClock creates a limiter with an injectable clock for tests.
func NewLimiterWithClock(rdb redis.UniversalClient, now func() time.Time) *Limiter {
	return &Limiter{rdb: rdb, now: now}
}

// Allow increments the counter for (scope, identity, route) in the current
// window and reports whether the request is within budget. A Redis outage
// fails open: limiting is a protection layer, not a correctness layer.
func (l *Limiter) Allow(ctx context.Context, scope, identity string, limit Limit) bool {
	window := int64(limit.Window.Seconds())
	if window <= 0 {
		window = 60
	}
	bucket := l.now().Unix() / window
	key := fmt.Sprintf("rl:%s:%s:%s:%d", scope, identity, limit.Route, bucket)

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		logger.Warn("rate limiter unavailable, allowing request",
			logger.KeyError, err.Error(),
			logger.KeyRoute, limit.Route,
		)
		return true
	}
	if count == 1 {
		// TTL is garbage collection only; rollover is keyed by the
		// bucket number.
		if err := l.rdb.Expire(ctx, key, limit.Window).Err(); err != nil {
			logger.Warn("failed to set rate limit key TTL", logger.KeyError, err.Error())
		}
	}
	return count <= int64(limit.Max)
}

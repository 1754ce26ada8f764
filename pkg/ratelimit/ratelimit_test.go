package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	now := time.Unix(1_700_000_000, 0)
	limiter := NewLimiterWithClock(rdb, func() time.Time { return now })
	return limiter, mr, &now
}

func TestAllowWithinBudget(t *testing.T) {
	limiter, _, _ := newTestLimiter(t)
	ctx := context.Background()

	limit := Limit{Route: "auth_login", Max: 5, Window: time.Minute}
	for i := 0; i < 5; i++ {
		if !limiter.Allow(ctx, ScopeIP, "203.0.113.9", limit) {
			t.Fatalf("request %d unexpectedly limited", i+1)
		}
	}
	if limiter.Allow(ctx, ScopeIP, "203.0.113.9", limit) {
		t.Error("sixth request should be limited")
	}
}

func TestSeparateIdentities(t *testing.T) {
	limiter, _, _ := newTestLimiter(t)
	ctx := context.Background()

	limit := Limit{Route: "auth_register", Max: 3, Window: time.Minute}
	for i := 0; i < 3; i++ {
		limiter.Allow(ctx, ScopeIP, "10.0.0.1", limit)
	}
	if limiter.Allow(ctx, ScopeIP, "10.0.0.1", limit) {
		t.Error("expected first identity to be limited")
	}
	if !limiter.Allow(ctx, ScopeIP, "10.0.0.2", limit) {
		t.Error("second identity must have its own budget")
	}
}

func TestSeparateScopes(t *testing.T) {
	limiter, _, _ := newTestLimiter(t)
	ctx := context.Background()

	limit := Limit{Route: "files_init", Max: 1, Window: time.Minute}
	limiter.Allow(ctx, ScopeUser, "user-1", limit)
	if limiter.Allow(ctx, ScopeUser, "user-1", limit) {
		t.Error("expected user scope limited")
	}
	if !limiter.Allow(ctx, ScopeIP, "user-1", limit) {
		t.Error("ip scope must count separately")
	}
}

func TestWindowRollover(t *testing.T) {
	limiter, _, now := newTestLimiter(t)
	ctx := context.Background()

	limit := Limit{Route: "auth_login", Max: 1, Window: time.Minute}
	if !limiter.Allow(ctx, ScopeIP, "10.0.0.1", limit) {
		t.Fatal("first request should pass")
	}
	if limiter.Allow(ctx, ScopeIP, "10.0.0.1", limit) {
		t.Fatal("second request in window should be limited")
	}

	*now = now.Add(time.Minute)
	if !limiter.Allow(ctx, ScopeIP, "10.0.0.1", limit) {
		t.Error("request in next window should pass")
	}
}

func TestKeyTTL(t *testing.T) {
	limiter, mr, _ := newTestLimiter(t)
	ctx := context.Background()

	limit := Limit{Route: "demo_start", Max: 10, Window: time.Minute}
	limiter.Allow(ctx, ScopeIP, "10.0.0.1", limit)

	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected 1 key, got %v", keys)
	}
	ttl := mr.TTL(keys[0])
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("expected TTL within the window, got %v", ttl)
	}
}

func TestFailOpenOnRedisOutage(t *testing.T) {
	limiter, mr, _ := newTestLimiter(t)
	ctx := context.Background()
	mr.Close()

	limit := Limit{Route: "auth_login", Max: 1, Window: time.Minute}
	if !limiter.Allow(ctx, ScopeIP, "10.0.0.1", limit) {
		t.Error("limiter must fail open when redis is down")
	}
}

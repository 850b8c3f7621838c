package throttle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, window time.Duration, max int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLimiter(client, "tst", window, max), mr
}

func TestAllowWithinBudget(t *testing.T) {
	limiter, _ := newTestLimiter(t, time.Minute, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := limiter.Allow(ctx, "203.0.113.9"); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	retryAfter, err := limiter.Allow(ctx, "203.0.113.9")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Fatalf("retryAfter = %v", retryAfter)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t, time.Minute, 1)
	ctx := context.Background()

	if _, err := limiter.Allow(ctx, "a"); err != nil {
		t.Fatalf("a: %v", err)
	}
	if _, err := limiter.Allow(ctx, "b"); err != nil {
		t.Fatalf("b must not inherit a's count: %v", err)
	}
}

func TestWindowResets(t *testing.T) {
	limiter, mr := newTestLimiter(t, time.Minute, 1)
	ctx := context.Background()

	if _, err := limiter.Allow(ctx, "a"); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := limiter.Allow(ctx, "a"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := limiter.Allow(ctx, "a"); err != nil {
		t.Fatalf("after window: %v", err)
	}
}

func TestReset(t *testing.T) {
	limiter, _ := newTestLimiter(t, time.Minute, 1)
	ctx := context.Background()

	if _, err := limiter.Allow(ctx, "a"); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := limiter.Reset(ctx, "a"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := limiter.Allow(ctx, "a"); err != nil {
		t.Fatalf("after reset: %v", err)
	}
}

// Package throttle implements a fixed-window attempt counter keyed by
// source address. It runs before any credential check so unauthenticated
// callers cannot grind passwords or farm lockouts.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned when the window is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable wraps Redis failures.
	ErrUnavailable = errors.New("throttle backend unavailable")
)

// Limiter counts attempts per key in a fixed window.
type Limiter struct {
	client      redis.UniversalClient
	prefix      string
	window      time.Duration
	maxAttempts int
}

// NewLimiter builds a Limiter allowing maxAttempts per window.
func NewLimiter(client redis.UniversalClient, prefix string, window time.Duration, maxAttempts int) *Limiter {
	if prefix == "" {
		prefix = "ag"
	}
	return &Limiter{client: client, prefix: prefix, window: window, maxAttempts: maxAttempts}
}

func (l *Limiter) key(id string) string {
	return l.prefix + ":lt:" + id
}

// Allow consumes one attempt for id. When the window is exhausted it
// returns ErrRateLimited along with the time until the window resets.
//
// The counter key gets its TTL on the first increment of a window, so a
// burst that spans the expiry starts a clean window rather than
// inheriting a stale count.
func (l *Limiter) Allow(ctx context.Context, id string) (time.Duration, error) {
	key := l.key(id)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if count <= int64(l.maxAttempts) {
		return 0, nil
	}

	ttl, err := l.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl < 0 {
		// Counter lost its TTL somehow. Reset instead of locking the
		// key out forever.
		if err := l.client.Del(ctx, key).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return l.window, ErrRateLimited
	}
	return ttl, ErrRateLimited
}

// Reset clears the counter for id. Called after a successful login so a
// legitimate user does not stay penalized for earlier typos.
func (l *Limiter) Reset(ctx context.Context, id string) error {
	if err := l.client.Del(ctx, l.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Package revocation tracks invalidated token IDs until their natural
// expiry. Entries are keyed by jti and carry a TTL equal to the
// remaining token lifetime, so the registry never outgrows the set of
// tokens that could still be presented.
package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps backend failures so callers can treat the
// registry being down differently from a clean "not revoked".
var ErrUnavailable = errors.New("revocation registry unavailable")

// Registry stores revoked token IDs in Redis.
type Registry struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRegistry builds a Registry. prefix namespaces the keys so several
// deployments can share one Redis.
func NewRegistry(client redis.UniversalClient, prefix string) *Registry {
	if prefix == "" {
		prefix = "ag"
	}
	return &Registry{client: client, prefix: prefix, now: time.Now}
}

func (r *Registry) key(jti string) string {
	return r.prefix + ":rvk:" + jti
}

// Revoke marks jti invalid until expiresAt. Revoking an already-expired
// token is a no-op because the verifier rejects it anyway.
func (r *Registry) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return nil
	}
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether jti is in the registry.
func (r *Registry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// Sweep removes registry entries that lost their TTL, which can happen
// after a PERSIST issued by an operator or a partial restore. Redis
// expiry handles the normal case; this is a periodic safety net.
// It returns the number of entries removed.
func (r *Registry) Sweep(ctx context.Context) (int, error) {
	var removed int
	var cursor uint64
	pattern := r.prefix + ":rvk:*"

	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		for _, key := range keys {
			ttl, err := r.client.TTL(ctx, key).Result()
			if err != nil {
				return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			if ttl == -1 {
				if err := r.client.Del(ctx, key).Err(); err != nil {
					return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
				}
				removed++
			}
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

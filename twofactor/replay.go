package twofactor

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayGuard remembers which TOTP time steps an account has already
// redeemed, so a captured code cannot be accepted a second time inside
// the skew window. Entries expire on their own once the window has
// passed.
type ReplayGuard struct {
	client redis.UniversalClient
	prefix string
}

// NewReplayGuard builds a guard over the shared Redis client.
func NewReplayGuard(client redis.UniversalClient, prefix string) *ReplayGuard {
	return &ReplayGuard{client: client, prefix: prefix}
}

// Claim marks counter as used for the account. It returns false when
// the same counter was already claimed.
func (g *ReplayGuard) Claim(ctx context.Context, accountID string, counter int64, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("%s:otp:%s:%d", g.prefix, accountID, counter)
	fresh, err := g.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("twofactor: claim counter: %w", err)
	}
	return fresh, nil
}

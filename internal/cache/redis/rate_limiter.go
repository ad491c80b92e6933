package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

// RateLimiter is the API request budget shared by every server replica. Each
// key holds a sorted set of request timestamps trimmed to the window.
type RateLimiter struct {
	rdb    *redis.Client
	script *redis.Script
	now    func() time.Time
}

// NewRateLimiter creates a RateLimiter on c.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		rdb:    c.Underlying(),
		script: redis.NewScript(slidingWindowLua),
		now:    time.Now,
	}
}

// Allow counts one request against key and reports whether it fits within
// limit per window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	allowed, _, err := rl.AllowRemaining(ctx, key, limit, window)
	return allowed, err
}

// AllowRemaining is Allow that also returns the requests left in the window
// after this one. Denied requests report zero.
func (rl *RateLimiter) AllowRemaining(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	reply, err := rl.script.Run(ctx, rl.rdb,
		[]string{"ratelimit:" + key},
		rl.now().UnixMicro(), window.Microseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	if len(reply) != 2 {
		return false, 0, fmt.Errorf("redis: rate limit %s: unexpected result length %d", key, len(reply))
	}
	return reply[0] == 1, int(reply[1]), nil
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)

package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

// releaseLua drops the lock only while it still carries the releasing
// holder's token.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// releaseTimeout bounds the release call, which runs on a fresh context.
const releaseTimeout = 5 * time.Second

// LockManager serializes watchlist refreshes across processes. The lock
// value names the holding host and process so a stuck refresh can be traced
// with a plain GET.
type LockManager struct {
	rdb     *redis.Client
	release *redis.Script
	owner   string
}

// NewLockManager creates a LockManager on c.
func NewLockManager(c *Client) *LockManager {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &LockManager{
		rdb:     c.Underlying(),
		release: redis.NewScript(releaseLua),
		owner:   host + ":" + strconv.Itoa(os.Getpid()),
	}
}

// Acquire takes the lock on key for ttl. A held lock yields
// domain.ErrLockHeld with the time left on it. The returned release func is
// idempotent.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lk := "lock:" + key
	token := lm.owner + "/" + uuid.NewString()

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		if left, err := lm.rdb.PTTL(ctx, lk).Result(); err == nil && left > 0 {
			return nil, fmt.Errorf("redis: acquire lock %s: expires in %s: %w", key, left.Round(time.Second), domain.ErrLockHeld)
		}
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, domain.ErrLockHeld)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			defer cancel()
			_ = lm.release.Run(rctx, lm.rdb, []string{lk}, token).Err()
		})
	}, nil
}

// Compile-time interface check.
var _ domain.LockManager = (*LockManager)(nil)

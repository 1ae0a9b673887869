package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"vidiwise/internal/domain"
)

// Locker guards a key for the duration of one operation.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// SubmitLock keeps two gateway replicas from submitting the same video at
// once. Keys are namespaced under submit_lock:.
type SubmitLock struct {
	cli   *redis.Client
	tries int
	wait  time.Duration
}

func NewSubmitLock(c *Client) *SubmitLock {
	return &SubmitLock{cli: c.cli, tries: 5, wait: 50 * time.Millisecond}
}

func lockKey(key string) string { return "submit_lock:" + key }

func (l *SubmitLock) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	for i := 0; i < l.tries; i++ {
		ok, err := l.cli.SetNX(ctx, lockKey(key), token, ttl).Result()
		if err == nil && ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.wait):
		}
	}
	return "", domain.ErrAlreadyInFlight
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *SubmitLock) Unlock(ctx context.Context, key, token string) error {
	return luaUnlock.Run(ctx, l.cli, []string{lockKey(key)}, token).Err()
}

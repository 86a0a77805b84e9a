package locks

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	appErrors "github.com/straywatch/straywatch-api/pkg/errors"
)

// Locker serialises transitions on a single entity. Acquire blocks for at most
// the configured wait and fails with BUSY instead of queuing indefinitely.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

const pollInterval = 20 * time.Millisecond

// RedisLocker implements Locker on top of Redis SET NX with a TTL so a crashed
// holder cannot wedge an entity forever.
type RedisLocker struct {
	client *redis.Client
	wait   time.Duration
	ttl    time.Duration
}

// NewRedisLocker constructs a Redis-backed locker.
func NewRedisLocker(client *redis.Client, wait, ttl time.Duration) *RedisLocker {
	if wait <= 0 {
		wait = 2 * time.Second
	}
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &RedisLocker{client: client, wait: wait, ttl: ttl}
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0`)

// Acquire takes the entity lock or fails with BUSY after the bounded wait.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := randomToken()
	redisKey := "lock:" + key
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, appErrors.Clone(appErrors.ErrBusy, fmt.Sprintf("entity %s is locked", key))
		}
		select {
		case <-ctx.Done():
			return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrBusy.Code, appErrors.ErrBusy.Status, "lock wait cancelled")
		case <-time.After(pollInterval):
		}
	}
}

// MemoryLocker is an in-process Locker for tests and single-node deployments.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
	wait time.Duration
}

// NewMemoryLocker constructs an in-memory locker.
func NewMemoryLocker(wait time.Duration) *MemoryLocker {
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &MemoryLocker{held: make(map[string]struct{}), wait: wait}
}

// Acquire takes the entity lock or fails with BUSY after the bounded wait.
func (l *MemoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	deadline := time.Now().Add(l.wait)
	for {
		l.mu.Lock()
		if _, taken := l.held[key]; !taken {
			l.held[key] = struct{}{}
			l.mu.Unlock()
			return func() {
				l.mu.Lock()
				delete(l.held, key)
				l.mu.Unlock()
			}, nil
		}
		l.mu.Unlock()

		if time.Now().After(deadline) {
			return nil, appErrors.Clone(appErrors.ErrBusy, fmt.Sprintf("entity %s is locked", key))
		}
		select {
		case <-ctx.Done():
			return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrBusy.Code, appErrors.ErrBusy.Status, "lock wait cancelled")
		case <-time.After(pollInterval):
		}
	}
}

func randomToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("token-%d", time.Now().UnixNano())
}

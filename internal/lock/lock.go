// Package lock serialises work on a single key (a transaction reference or a
// wallet) across goroutines and, with Redis, across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrNotObtained = errors.New("lock: not obtained")

// Release gives the lock back. Calling it more than once is harmless.
type Release func()

type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

type RedisLocker struct {
	client *redis.Client
	retry  time.Duration
	log    *zap.Logger
}

func NewRedisLocker(client *redis.Client, log *zap.Logger) *RedisLocker {
	return &RedisLocker{client: client, retry: 50 * time.Millisecond, log: log}
}

// Obtain polls SET NX until it wins or ctx is done.
func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	redisKey := "lock:" + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
		case <-time.After(l.retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			n, err := l.client.Eval(ctx, releaseScript, []string{redisKey}, token).Int()
			if err != nil {
				l.log.Warn("lock release failed", zap.String("key", key), zap.Error(err))
				return
			}
			if n == 0 {
				l.log.Warn("lock expired before release", zap.String("key", key), zap.Duration("ttl", ttl))
			}
		})
	}, nil
}

// LocalLocker is an in-process Locker for single instance deployments and tests.
// The ttl is ignored.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]chan struct{})}
}

func (l *LocalLocker) Obtain(ctx context.Context, key string, _ time.Duration) (Release, error) {
	for {
		l.mu.Lock()
		wait, busy := l.held[key]
		if !busy {
			done := make(chan struct{})
			l.held[key] = done
			l.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, key)
					l.mu.Unlock()
					close(done)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
		case <-wait:
		}
	}
}

package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lms-assessment/internal/cache"
	"lms-assessment/internal/domain"
	"lms-assessment/internal/logger"
	"lms-assessment/internal/util"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLockTimeout is returned when a lock could not be acquired in time.
var ErrLockTimeout = errors.New("lock wait timed out")

const lockRetryInterval = 50 * time.Millisecond

// releaseScript deletes the lock only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisAttemptLocker serializes writers across processes with SET NX locks.
type RedisAttemptLocker struct {
	client   redis.UniversalClient
	ttl      time.Duration
	wait     time.Duration
	newToken func() string
}

// NewRedisAttemptLocker creates a locker. ttl bounds how long a crashed holder
// blocks others; wait bounds how long Lock retries.
func NewRedisAttemptLocker(client redis.UniversalClient, ttl, wait time.Duration) *RedisAttemptLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisAttemptLocker{client: client, ttl: ttl, wait: wait, newToken: util.NewULID}
}

var _ domain.AttemptLocker = (*RedisAttemptLocker)(nil)

func (l *RedisAttemptLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := cache.LockKey(key)
	token := l.newToken()

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(waitCtx, redisKey, token, l.ttl).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", redisKey, err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, redisKey)
		case <-ticker.C:
		}
	}
}

func (l *RedisAttemptLocker) releaser(redisKey, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled; release regardless.
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
				logger.Get().Warn("Failed to release lock", zap.String("key", redisKey), zap.Error(err))
			}
		})
	}
}

// MemoryAttemptLocker serializes writers inside one process.
type MemoryAttemptLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func NewMemoryAttemptLocker() *MemoryAttemptLocker {
	return &MemoryAttemptLocker{slots: make(map[string]*lockSlot)}
}

var _ domain.AttemptLocker = (*MemoryAttemptLocker)(nil)

func (l *MemoryAttemptLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.unref(key, slot)
		})
	}, nil
}

func (l *MemoryAttemptLocker) unref(key string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

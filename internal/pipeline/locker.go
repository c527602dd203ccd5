package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Locker guards a task against concurrent runs. TryLock never blocks: it
// returns ok=false when another holder owns the task.
type Locker interface {
	TryLock(ctx context.Context, task string) (unlock func(), ok bool, err error)
}

// LocalLocker serializes runs within one process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

func (l *LocalLocker) TryLock(_ context.Context, task string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[task] {
		return nil, false, nil
	}
	l.held[task] = true
	return func() {
		l.mu.Lock()
		delete(l.held, task)
		l.mu.Unlock()
	}, true, nil
}

// RedisLocker extends non-reentrancy across replicas sharing one Redis.
// The local lock is taken first so a single process never races itself.
type RedisLocker struct {
	local  *LocalLocker
	client *redislock.Client
	prefix string
	ttl    time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisLocker{
		local:  NewLocalLocker(),
		client: redislock.New(rdb),
		prefix: "intellistock:task-lock:",
		ttl:    ttl,
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, task string) (func(), bool, error) {
	unlockLocal, ok, _ := l.local.TryLock(ctx, task)
	if !ok {
		return nil, false, nil
	}

	lock, err := l.client.Obtain(ctx, l.prefix+task, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		unlockLocal()
		return nil, false, nil
	}
	if err != nil {
		unlockLocal()
		return nil, false, fmt.Errorf("obtain lock for %s: %w", task, err)
	}

	return func() {
		defer unlockLocal()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logLockRelease(task, err)
		}
	}, true, nil
}

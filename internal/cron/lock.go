package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
)

const defaultLockTTL = 50 * time.Minute

// Lock coordinates exclusive cron runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// RedisLock implements Lock on top of redislock, so only the owning token can
// release the key.
type RedisLock struct {
	client locker
	key    string
	ttl    time.Duration

	mu   sync.Mutex
	held *redislock.Lock
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client *redislock.Client, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis lock client required")
	}
	return newRedisLock(client, key, ttl)
}

func newRedisLock(client locker, key string, ttl time.Duration) (*RedisLock, error) {
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire tries to own the lock for the configured TTL. A lock held by
// another worker is reported as (false, nil).
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	lock, err := l.client.Obtain(ctx, l.key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("obtain lock: %w", err)
	}
	l.mu.Lock()
	l.held = lock
	l.mu.Unlock()
	return true, nil
}

// Release frees the lock if this instance still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	lock := l.held
	l.held = nil
	l.mu.Unlock()
	if lock == nil {
		return nil
	}
	if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

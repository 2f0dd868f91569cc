package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bsm/redislock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocker struct {
	err error
	key string
	ttl time.Duration
}

func (f *fakeLocker) Obtain(_ context.Context, key string, ttl time.Duration, _ *redislock.Options) (*redislock.Lock, error) {
	f.key = key
	f.ttl = ttl
	return nil, f.err
}

func TestRedisLockReportsContention(t *testing.T) {
	locker := &fakeLocker{err: redislock.ErrNotObtained}
	lock, err := newRedisLock(locker, "vf:lock:cron", 0)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, defaultLockTTL, locker.ttl)
	assert.NoError(t, lock.Release(context.Background()), "releasing an unheld lock is a no-op")
}

func TestRedisLockSurfacesBackendErrors(t *testing.T) {
	lock, err := newRedisLock(&fakeLocker{err: errors.New("connection refused")}, "vf:lock:cron", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	assert.False(t, ok)
	assert.ErrorContains(t, err, "connection refused")
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "key", time.Minute)
	assert.Error(t, err)
	_, err = newRedisLock(&fakeLocker{}, "", time.Minute)
	assert.Error(t, err)
}

package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memoryLocks mimics the redis SET NX PX plus owner-checked delete.
type memoryLocks struct {
	owners   map[string]string
	ttls     map[string]time.Duration
	acquires int
	err      error
}

func newMemoryLocks() *memoryLocks {
	return &memoryLocks{owners: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryLocks) AcquireLock(_ context.Context, name, owner string, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.acquires++
	if _, held := m.owners[name]; held {
		return false, nil
	}
	m.owners[name] = owner
	m.ttls[name] = ttl
	return true, nil
}

func (m *memoryLocks) ReleaseLock(_ context.Context, name, owner string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.owners[name] != owner {
		return false, nil
	}
	delete(m.owners, name)
	return true, nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLocks()
	first, err := NewRedisLock(store, "cron-worker", 2*time.Hour)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "cron-worker", 2*time.Hour)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2*time.Hour, store.ttls["cron-worker"])

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, second.Release(ctx))
	require.Contains(t, store.owners, "cron-worker", "non-owner release must not free the lock")

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisLockReacquireWhileHoldingKeepsToken(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLocks()
	lock, err := NewRedisLock(store, "cron-worker", 0)
	require.NoError(t, err)
	require.Equal(t, defaultLockTTL, lock.ttl)

	for range 2 {
		ok, err := lock.Acquire(ctx)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Equal(t, 1, store.acquires)
}

func TestRedisLockReleaseAfterHandover(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLocks()
	lock, err := NewRedisLock(store, "cron-worker", time.Minute)
	require.NoError(t, err)
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	store.owners["cron-worker"] = "someone-else"
	require.NoError(t, lock.Release(ctx))
	require.Equal(t, "someone-else", store.owners["cron-worker"])
}

func TestRedisLockErrors(t *testing.T) {
	_, err := NewRedisLock(nil, "x", time.Minute)
	require.ErrorIs(t, err, errNilLockStore)
	_, err = NewRedisLock(newMemoryLocks(), "", time.Minute)
	require.ErrorIs(t, err, errNoLockName)

	store := newMemoryLocks()
	store.err = errors.New("redis down")
	lock, err := NewRedisLock(store, "cron-worker", time.Minute)
	require.NoError(t, err)
	_, err = lock.Acquire(context.Background())
	require.ErrorContains(t, err, "redis down")
}

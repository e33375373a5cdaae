package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/artisancrate/billing-engine/pkg/redis"
)

const defaultLockTTL = time.Hour

var (
	errNilLockStore = errors.New("cron lock needs a lock store")
	errNoLockName   = errors.New("cron lock needs a name")
)

// Lock coordinates exclusive cron runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisLock is a Lock over a shared redis.LockStore. Every successful
// Acquire holds a fresh owner token until Release; the TTL bounds how long a
// crashed holder can block later cycles.
type RedisLock struct {
	store redis.LockStore
	name  string
	ttl   time.Duration

	mu    sync.Mutex
	owner string
}

func NewRedisLock(store redis.LockStore, name string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errNilLockStore
	case name == "":
		return nil, errNoLockName
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, name: name, ttl: ttl}, nil
}

// Acquire reports true when this instance now holds the lock. Calling it
// again while holding is a no-op that keeps the current token.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner != "" {
		return true, nil
	}

	token := uuid.NewString()
	ok, err := l.store.AcquireLock(ctx, l.name, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.name, err)
	}
	if ok {
		l.owner = token
	}
	return ok, nil
}

// Release frees the lock if this instance still owns it. A lock that expired
// and passed to another worker is left alone.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	token := l.owner
	l.owner = ""
	l.mu.Unlock()
	if token == "" {
		return nil
	}

	if _, err := l.store.ReleaseLock(ctx, l.name, token); err != nil {
		return fmt.Errorf("release lock %s: %w", l.name, err)
	}
	return nil
}

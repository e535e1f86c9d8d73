package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/avollmer/propsync-backend/pkg/redis"
)

// Sized so a crashed worker cannot block the hourly cadence for long.
const defaultRunnerLockTTL = 2 * time.Hour

// Lock coordinates exclusive worker cycles across replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RunnerLock is a non-blocking Redis lock. A cycle that finds the lock held
// is skipped, not queued; the next tick tries again.
type RunnerLock struct {
	store redis.LockStore
	key   string
	ttl   time.Duration
	owner string
}

// NewRunnerLock builds a lock scoped to the named worker.
func NewRunnerLock(store redis.LockStore, name string, ttl time.Duration) (*RunnerLock, error) {
	if store == nil {
		return nil, errors.New("lock store required")
	}
	if name == "" {
		return nil, errors.New("lock name required")
	}
	if ttl <= 0 {
		ttl = defaultRunnerLockTTL
	}
	return &RunnerLock{store: store, key: store.LockKey("cron", name), ttl: ttl}, nil
}

// Acquire tries to own the lock for the configured TTL.
func (l *RunnerLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release frees the lock only while this runner still owns it. A lock that
// expired and was taken by another replica is left alone.
func (l *RunnerLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	value, err := l.store.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != l.owner {
		return nil
	}
	if err := l.store.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.owner = ""
	return nil
}

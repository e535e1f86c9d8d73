package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	pkgerrors "github.com/avollmer/propsync-backend/pkg/errors"
	"github.com/avollmer/propsync-backend/pkg/redis"
)

const (
	defaultLockTTL   = 5 * time.Minute
	defaultLockWait  = 30 * time.Second
	lockPollInterval = 250 * time.Millisecond
)

var errLockHeld = errors.New("deal lock held elsewhere")

// DealLock hands out per-deal mutual exclusion backed by Redis SETNX + TTL.
// Reconciliation rewrites a deal's product rows non-atomically, so replicas
// working the same deal must take turns.
type DealLock struct {
	store redis.LockStore
	ttl   time.Duration
	wait  time.Duration
	poll  time.Duration
}

// NewDealLock constructs the lock factory. The TTL must outlast the worst
// reconciliation; the wait bounds how long an acquire may queue.
func NewDealLock(store redis.LockStore, ttl, wait time.Duration) (*DealLock, error) {
	if store == nil {
		return nil, errors.New("lock store is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &DealLock{store: store, ttl: ttl, wait: wait, poll: lockPollInterval}, nil
}

// Acquire blocks until the deal's lock is owned or the wait budget runs out.
func (l *DealLock) Acquire(ctx context.Context, dealID int64) (*DealLease, error) {
	if dealID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deal id must be positive")
	}

	key := l.store.LockKey("deal", strconv.FormatInt(dealID, 10))
	owner := uuid.NewString()

	b := retry.WithMaxDuration(l.wait, retry.NewConstant(l.poll))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		ok, err := l.store.SetNX(ctx, key, owner, l.ttl)
		if err != nil {
			return fmt.Errorf("setnx: %w", err)
		}
		if !ok {
			return retry.RetryableError(errLockHeld)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errLockHeld) {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "timed out waiting for deal lock").
				WithDetails(map[string]any{"deal_id": dealID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire deal lock")
	}

	return &DealLease{store: l.store, key: key, owner: owner}, nil
}

// DealLease is one held deal lock.
type DealLease struct {
	store redis.LockStore
	key   string
	owner string
}

// Release frees the lock only while this lease still owns it. An expired or
// stolen lock is left alone.
func (l *DealLease) Release(ctx context.Context) error {
	if l == nil || l.owner == "" {
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

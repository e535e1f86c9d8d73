package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/avollmer/propsync-backend/pkg/redis"
)

const dedupScope = "proposal-webhook"

// Deduplicator gates repeat webhook deliveries.
type Deduplicator interface {
	ShouldProcess(ctx context.Context, deliveryID string) (bool, error)
	MarkProcessed(ctx context.Context, deliveryID string) error
}

// RedisDeduplicator remembers processed deliveries in the shared idempotency
// store. Checking and marking are separate on purpose: a delivery is written
// only after the whole sync succeeded, so failed attempts stay eligible for
// the sender's retry.
type RedisDeduplicator struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewRedisDeduplicator(store redis.IdempotencyStore, ttl time.Duration) (*RedisDeduplicator, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("dedup ttl must be positive")
	}
	return &RedisDeduplicator{store: store, ttl: ttl}, nil
}

func (d *RedisDeduplicator) ShouldProcess(ctx context.Context, deliveryID string) (bool, error) {
	if deliveryID == "" {
		return false, errors.New("delivery id is required")
	}
	key := d.store.IdempotencyKey(dedupScope, deliveryID)
	if _, err := d.store.Get(ctx, key); err != nil {
		if errors.Is(err, redislib.Nil) {
			return true, nil
		}
		return false, fmt.Errorf("read idempotency key: %w", err)
	}
	return false, nil
}

func (d *RedisDeduplicator) MarkProcessed(ctx context.Context, deliveryID string) error {
	if deliveryID == "" {
		return errors.New("delivery id is required")
	}
	key := d.store.IdempotencyKey(dedupScope, deliveryID)
	if _, err := d.store.SetNX(ctx, key, "1", d.ttl); err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	return nil
}

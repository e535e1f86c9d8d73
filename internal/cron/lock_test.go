package cron

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

type fakeLockStore struct {
	values map[string]string
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{values: map[string]string{}}
}

func (f *fakeLockStore) Get(_ context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", redislib.Nil
	}
	return value, nil
}

func (f *fakeLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = fmt.Sprint(value)
	return true, nil
}

func (f *fakeLockStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeLockStore) LockKey(parts ...string) string {
	return "ps:lock:" + strings.Join(parts, ":")
}

func TestRunnerLockAcquireRelease(t *testing.T) {
	store := newFakeLockStore()
	lock, err := NewRunnerLock(store, "worker", 0)
	if err != nil {
		t.Fatalf("NewRunnerLock: %v", err)
	}
	ctx := context.Background()

	ok, err := lock.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if _, held := store.values["ps:lock:cron:worker"]; !held {
		t.Fatal("expected lock key to be set")
	}

	second, _ := NewRunnerLock(store, "worker", 0)
	ok, err = second.Acquire(ctx)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatal("expected second acquire to be refused while held")
	}

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestRunnerLockReleaseLeavesStolenLock(t *testing.T) {
	store := newFakeLockStore()
	lock, err := NewRunnerLock(store, "worker", 0)
	if err != nil {
		t.Fatalf("NewRunnerLock: %v", err)
	}
	ctx := context.Background()
	if ok, err := lock.Acquire(ctx); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}

	// TTL expired and another replica took the key.
	store.values["ps:lock:cron:worker"] = "someone-else"

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["ps:lock:cron:worker"] != "someone-else" {
		t.Fatal("expected the new holder's lock to survive release")
	}
}

func TestNewRunnerLockValidation(t *testing.T) {
	if _, err := NewRunnerLock(nil, "worker", 0); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewRunnerLock(newFakeLockStore(), "", 0); err == nil {
		t.Fatal("expected error for empty name")
	}
}

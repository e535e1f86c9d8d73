package sync

import (
	"context"
	stdsync "sync"
	"sync/atomic"
	"testing"
	"time"

	pkgerrors "github.com/avollmer/propsync-backend/pkg/errors"
)

func newTestDealLock(t *testing.T, store *memStore, wait time.Duration) *DealLock {
	t.Helper()

	locks, err := NewDealLock(store, time.Minute, wait)
	if err != nil {
		t.Fatalf("NewDealLock: %v", err)
	}
	locks.poll = time.Millisecond
	return locks
}

func TestAcquireAndRelease(t *testing.T) {
	store := newMemStore()
	locks := newTestDealLock(t, store, time.Second)

	lease, err := locks.Acquire(context.Background(), 42)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, ok := store.get("ps:lock:deal:42"); !ok {
		t.Fatalf("expected lock key to be set")
	}

	if err := lease.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok := store.get("ps:lock:deal:42"); ok {
		t.Fatalf("expected lock key to be gone after release")
	}
}

func TestAcquireWaitsForHolder(t *testing.T) {
	store := newMemStore()
	locks := newTestDealLock(t, store, time.Second)

	first, err := locks.Acquire(context.Background(), 7)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	released := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = first.Release(context.Background())
		close(released)
	}()

	second, err := locks.Acquire(context.Background(), 7)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	<-released
	if err := second.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestAcquireTimesOutWhenHeld(t *testing.T) {
	store := newMemStore()
	locks := newTestDealLock(t, store, 30*time.Millisecond)

	holder, err := locks.Acquire(context.Background(), 9)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer func() { _ = holder.Release(context.Background()) }()

	_, err = locks.Acquire(context.Background(), 9)
	if pkgerrors.As(err).Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestReleaseLeavesStolenLock(t *testing.T) {
	store := newMemStore()
	locks := newTestDealLock(t, store, time.Second)

	lease, err := locks.Acquire(context.Background(), 11)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Simulate TTL expiry followed by another replica taking the lock.
	store.set("ps:lock:deal:11", "other-owner")

	if err := lease.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if value, _ := store.get("ps:lock:deal:11"); value != "other-owner" {
		t.Fatalf("release must not remove another owner's lock, got %q", value)
	}
}

func TestAcquireValidatesDealID(t *testing.T) {
	locks := newTestDealLock(t, newMemStore(), time.Second)

	_, err := locks.Acquire(context.Background(), 0)
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLockSerializesCriticalSections(t *testing.T) {
	store := newMemStore()
	locks := newTestDealLock(t, store, 2*time.Second)

	var active, overlaps int32
	var wg stdsync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			lease, err := locks.Acquire(context.Background(), 42)
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			if atomic.AddInt32(&active, 1) > 1 {
				atomic.AddInt32(&overlaps, 1)
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			_ = lease.Release(context.Background())
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&overlaps); n != 0 {
		t.Fatalf("critical section overlapped %d times", n)
	}
}

package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avollmer/propsync-backend/pkg/logger"
)

func TestSyncLogRetentionJobPrunesHistory(t *testing.T) {
	pruner := &fakeSyncLogPruner{removed: 12}
	job := newSyncLogRetentionJob(t, pruner, 45*24*time.Hour)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pruner.retention != 45*24*time.Hour {
		t.Fatalf("expected retention 45d, got %s", pruner.retention)
	}
	if pruner.called != 1 {
		t.Fatalf("expected pruner called once, got %d", pruner.called)
	}
}

func TestSyncLogRetentionJobDefaultsRetention(t *testing.T) {
	pruner := &fakeSyncLogPruner{}
	job := newSyncLogRetentionJob(t, pruner, 0)

	if job.retention != defaultSyncLogRetention {
		t.Fatalf("expected default retention %s, got %s", defaultSyncLogRetention, job.retention)
	}
}

func TestSyncLogRetentionJobPropagatesError(t *testing.T) {
	pruner := &fakeSyncLogPruner{err: errors.New("boom")}
	job := newSyncLogRetentionJob(t, pruner, time.Hour)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newSyncLogRetentionJob(t *testing.T, pruner *fakeSyncLogPruner, retention time.Duration) *syncLogRetentionJob {
	t.Helper()
	jobIface, err := NewSyncLogRetentionJob(SyncLogRetentionJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Pruner:    pruner,
		Retention: retention,
	})
	if err != nil {
		t.Fatalf("NewSyncLogRetentionJob: %v", err)
	}
	job, ok := jobIface.(*syncLogRetentionJob)
	if !ok {
		t.Fatalf("expected syncLogRetentionJob, got %T", jobIface)
	}
	return job
}

type fakeSyncLogPruner struct {
	retention time.Duration
	removed   int64
	called    int
	err       error
}

func (f *fakeSyncLogPruner) Prune(_ context.Context, retention time.Duration) (int64, error) {
	f.called++
	f.retention = retention
	if f.err != nil {
		return 0, f.err
	}
	return f.removed, nil
}

package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/avollmer/propsync-backend/pkg/logger"
)

const defaultSyncLogRetention = 90 * 24 * time.Hour

// syncLogPruner deletes sync history older than the retention window.
type syncLogPruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// SyncLogRetentionJobParams configure the sync history retention job.
type SyncLogRetentionJobParams struct {
	Logger    *logger.Logger
	Pruner    syncLogPruner
	Retention time.Duration
}

// NewSyncLogRetentionJob builds the job that prunes old sync run rows.
func NewSyncLogRetentionJob(params SyncLogRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Pruner == nil {
		return nil, fmt.Errorf("pruner required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultSyncLogRetention
	}
	return &syncLogRetentionJob{
		logg:      params.Logger,
		pruner:    params.Pruner,
		retention: retention,
	}, nil
}

type syncLogRetentionJob struct {
	logg      *logger.Logger
	pruner    syncLogPruner
	retention time.Duration
}

func (j *syncLogRetentionJob) Name() string { return "synclog-retention" }

func (j *syncLogRetentionJob) Run(ctx context.Context) error {
	removed, err := j.pruner.Prune(ctx, j.retention)
	if err != nil {
		return fmt.Errorf("sync history retention: %w", err)
	}
	ctx = j.logg.WithFields(ctx, map[string]any{
		"retention":    j.retention.String(),
		"rows_deleted": removed,
	})
	j.logg.Info(ctx, "sync history retention complete")
	return nil
}

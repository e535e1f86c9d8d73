package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/avollmer/propsync-backend/internal/cron"
	"github.com/avollmer/propsync-backend/internal/synclog"
	"github.com/avollmer/propsync-backend/pkg/config"
	"github.com/avollmer/propsync-backend/pkg/db"
	"github.com/avollmer/propsync-backend/pkg/logger"
	"github.com/avollmer/propsync-backend/pkg/metrics"
	"github.com/avollmer/propsync-backend/pkg/migrate"
	"github.com/avollmer/propsync-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient)
	requireResource(ctx, logg, "dev migrations", err)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	// Retention runs regardless of the synclog write flag: rows written while
	// the flag was on still age out.
	runs, err := synclog.NewService(synclog.NewRepository(dbClient.DB()), logg)
	requireResource(ctx, logg, "sync history service", err)

	retentionJob, err := cron.NewSyncLogRetentionJob(cron.SyncLogRetentionJobParams{
		Logger:    logg,
		Pruner:    runs,
		Retention: cfg.Cron.SyncLogRetention,
	})
	requireResource(ctx, logg, "retention job", err)

	lock, err := cron.NewRunnerLock(redisClient, lockName(cfg.App.Env), 0)
	requireResource(ctx, logg, "cycle lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Jobs:     []cron.Job{retentionJob},
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	requireResource(ctx, logg, "cron service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	logg.Info(runCtx, "starting cron worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "worker-" + env
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/avollmer/propsync-backend/api/routes"
	"github.com/avollmer/propsync-backend/internal/lineitems"
	"github.com/avollmer/propsync-backend/internal/products"
	"github.com/avollmer/propsync-backend/internal/reconcile"
	syncsvc "github.com/avollmer/propsync-backend/internal/sync"
	"github.com/avollmer/propsync-backend/internal/synclog"
	"github.com/avollmer/propsync-backend/pkg/config"
	"github.com/avollmer/propsync-backend/pkg/crm"
	"github.com/avollmer/propsync-backend/pkg/db"
	"github.com/avollmer/propsync-backend/pkg/logger"
	"github.com/avollmer/propsync-backend/pkg/metrics"
	"github.com/avollmer/propsync-backend/pkg/migrate"
	"github.com/avollmer/propsync-backend/pkg/proposals"
	"github.com/avollmer/propsync-backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	proposalsClient, err := proposals.NewClient(ctx, cfg.Proposals, logg)
	requireResource(ctx, logg, "proposals client", err)

	crmClient, err := crm.NewClient(ctx, cfg.CRM, logg)
	requireResource(ctx, logg, "crm client", err)

	resolver, err := products.NewService(crmClient, logg)
	requireResource(ctx, logg, "product resolver", err)

	reconciler, err := reconcile.NewService(crmClient, cfg.CRM.DiscountType, logg)
	requireResource(ctx, logg, "deal reconciler", err)

	dedup, err := syncsvc.NewRedisDeduplicator(redisClient, cfg.Sync.DedupTTL)
	requireResource(ctx, logg, "deduplicator", err)

	locks, err := syncsvc.NewDealLock(redisClient, cfg.Sync.LockTTL, cfg.Sync.LockWaitTimeout)
	requireResource(ctx, logg, "deal lock", err)

	registry := prometheus.NewRegistry()

	params := syncsvc.ServiceParams{
		Proposals:  proposalsClient,
		Extractor:  lineitems.NewExtractor(),
		Resolver:   resolver,
		Reconciler: reconciler,
		Notes:      crmClient,
		Dedup:      dedup,
		Locks:      locks,
		Metrics:    metrics.NewSyncMetrics(registry),
		Logger:     logg,
	}
	if cfg.FeatureFlags.SyncLog {
		runs, err := synclog.NewService(synclog.NewRepository(dbClient.DB()), logg)
		requireResource(ctx, logg, "sync history service", err)
		params.Runs = runs
	}

	syncService, err := syncsvc.NewService(params)
	requireResource(ctx, logg, "sync service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{"addr": addr})

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, registry, syncService),
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	logg.Info(runCtx, "starting api server")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

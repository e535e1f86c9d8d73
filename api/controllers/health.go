package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/avollmer/propsync-backend/api/responses"
	"github.com/avollmer/propsync-backend/pkg/config"
	pkgerrors "github.com/avollmer/propsync-backend/pkg/errors"
	"github.com/avollmer/propsync-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PropSync-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when both backing stores answer a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, db pinger, cache pinger) http.HandlerFunc {
	checks := []struct {
		name   string
		target pinger
	}{
		{name: "db", target: db},
		{name: "redis", target: cache},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PropSync-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		for _, check := range checks {
			if check.target == nil {
				continue
			}
			if err := check.target.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, "readiness check failed").
						WithDetails(map[string]any{"check": check.name}))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}

package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avollmer/propsync-backend/api/controllers"
	webhookcontrollers "github.com/avollmer/propsync-backend/api/controllers/webhooks"
	"github.com/avollmer/propsync-backend/api/middleware"
	"github.com/avollmer/propsync-backend/pkg/config"
	"github.com/avollmer/propsync-backend/pkg/db"
	"github.com/avollmer/propsync-backend/pkg/logger"
	"github.com/avollmer/propsync-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbPinger db.Pinger,
	redisPinger redis.Pinger,
	metricsRegistry *prometheus.Registry,
	syncService webhookcontrollers.ProposalSyncService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbPinger, redisPinger))
	})

	if metricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/proposals", webhookcontrollers.ProposalWebhook(syncService, cfg.Webhook, logg))
	})

	return r
}

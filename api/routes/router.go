package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pimartlabs/pimart-backend/api/controllers"
	webhookcontrollers "github.com/pimartlabs/pimart-backend/api/controllers/webhooks"
	"github.com/pimartlabs/pimart-backend/api/middleware"
	"github.com/pimartlabs/pimart-backend/pkg/config"
	"github.com/pimartlabs/pimart-backend/pkg/db"
	"github.com/pimartlabs/pimart-backend/pkg/logger"
	"github.com/pimartlabs/pimart-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	orchestrator webhookcontrollers.Orchestrator,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/v1/webhooks/platform", func(r chi.Router) {
		r.Post("/approve", webhookcontrollers.PlatformApprove(orchestrator, logg))
		r.Post("/complete", webhookcontrollers.PlatformComplete(orchestrator, logg))
		r.Post("/cancel", webhookcontrollers.PlatformCancel(orchestrator, logg))
		r.Post("/incomplete", webhookcontrollers.PlatformIncomplete(orchestrator, logg))
	})

	return r
}

package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shopsphere/returns-backend/api/controllers"
	returncontrollers "github.com/shopsphere/returns-backend/api/controllers/returns"
	webhookcontrollers "github.com/shopsphere/returns-backend/api/controllers/webhooks"
	"github.com/shopsphere/returns-backend/api/middleware"
	"github.com/shopsphere/returns-backend/internal/returns"
	"github.com/shopsphere/returns-backend/pkg/config"
	"github.com/shopsphere/returns-backend/pkg/db"
	"github.com/shopsphere/returns-backend/pkg/logger"
	"github.com/shopsphere/returns-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	returnsSvc returns.Service,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/logistics/pickup-confirmed", webhookcontrollers.LogisticsPickupConfirmed(returnsSvc, cfg.Logistics, logg))
	})

	// A typed-nil *redis.Client must not reach the middleware as a
	// non-nil interface value.
	var idemStore redis.IdempotencyStore
	if redisClient != nil {
		idemStore = redisClient
	}

	r.Route("/api/v1/returns", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Get("/mine", returncontrollers.ListMine(returnsSvc, logg))
		r.Get("/{returnId}", returncontrollers.Detail(returnsSvc, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("customer", logg))
			r.Post("/", returncontrollers.Create(returnsSvc, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("operator", logg))
			r.Get("/", returncontrollers.List(returnsSvc, logg))
			r.Post("/{returnId}/approve", returncontrollers.Approve(returnsSvc, logg))
			r.Post("/{returnId}/reject", returncontrollers.Reject(returnsSvc, logg))
			r.Post("/{returnId}/assign-agent", returncontrollers.AssignAgent(returnsSvc, logg))
			r.Post("/{returnId}/receive", returncontrollers.Receive(returnsSvc, logg))
			r.Post("/{returnId}/refund", returncontrollers.Refund(returnsSvc, logg))
		})
	})

	return r
}

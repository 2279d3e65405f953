package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-time-archive/internal/config"
	"go-time-archive/internal/handler"
	"go-time-archive/internal/middleware"
)

type Handlers struct {
	Health *handler.HealthHandler
	Rules  *handler.RuleHandler
	Runs   *handler.RunHandler
	Audit  *handler.AuditHandler
}

func New(cfg *config.Config, logger *slog.Logger, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.RunRateLimitRPM)

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(cfg.CORSOrigins, logger))

	r.Get("/health", h.Health.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(rateLimitMiddleware.Handler)
		api.Use(authMiddleware.RequireAdmin)

		// Synchronous runs can outlast the request timeout.
		api.Post("/rules/{id}/run", h.Rules.Run)

		api.Group(func(bounded chi.Router) {
			bounded.Use(middleware.Timeout(cfg.RequestTimeout))

			bounded.Get("/rules", h.Rules.List)
			bounded.Post("/rules", h.Rules.Create)
			bounded.Delete("/rules/{id}", h.Rules.Delete)
			bounded.Get("/runs", h.Runs.List)
			bounded.Get("/audit", h.Audit.List)
		})
	})

	return r
}

package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/stveit/argus/internal/api/destinations"
	"github.com/stveit/argus/internal/api/filters"
	"github.com/stveit/argus/internal/api/incidents"
	"github.com/stveit/argus/internal/api/middleware"
	"github.com/stveit/argus/internal/api/profiles"
	"github.com/stveit/argus/internal/api/timeslots"
	"github.com/stveit/argus/internal/api/users"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Incident intake is the machine-facing surface; rate limit it per
	// source IP so a misbehaving monitoring source cannot flood dispatch.
	intakeLimiter := middleware.NewIntakeLimiter(s.config.IntakeRateLimit)

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.PrometheusMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Incident intake and lookup (source systems, not end users)
		r.Route("/incidents", func(r chi.Router) {
			incidentHandler := incidents.NewHandler(s.storage, s.coordinator)

			r.Group(func(r chi.Router) {
				r.Use(middleware.IntakeRateLimit(intakeLimiter))
				r.Post("/", incidentHandler.Create)
			})
			r.Get("/", incidentHandler.List)
			r.Get("/{id}", incidentHandler.GetByID)
		})

		// User lifecycle (driven by the identity system)
		r.Route("/users", func(r chi.Router) {
			userHandler := users.NewHandler(s.storage, s.accounts)

			r.Get("/", userHandler.List)
			r.Post("/", userHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", userHandler.GetByID)
				r.Put("/", userHandler.Update)
				r.Delete("/", userHandler.Delete)
				r.Post("/sync", userHandler.Sync)
			})
		})

		// Per-user notification configuration
		r.Group(func(r chi.Router) {
			r.Use(middleware.UserContext(s.storage))

			r.Route("/timeslots", func(r chi.Router) {
				timeslotHandler := timeslots.NewHandler(s.storage)

				r.Get("/", timeslotHandler.List)
				r.Post("/", timeslotHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", timeslotHandler.GetByID)
					r.Put("/", timeslotHandler.Update)
					r.Delete("/", timeslotHandler.Delete)
				})
			})

			r.Route("/filters", func(r chi.Router) {
				filterHandler := filters.NewHandler(s.storage)

				r.Get("/", filterHandler.List)
				r.Post("/", filterHandler.Create)
				r.Post("/preview", filterHandler.Preview)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", filterHandler.GetByID)
					r.Put("/", filterHandler.Update)
					r.Delete("/", filterHandler.Delete)
				})
			})

			r.Route("/destinations", func(r chi.Router) {
				destinationHandler := destinations.NewHandler(s.storage, s.registry)

				r.Get("/", destinationHandler.List)
				r.Post("/", destinationHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", destinationHandler.GetByID)
					r.Put("/", destinationHandler.Update)
					r.Delete("/", destinationHandler.Delete)
				})
			})

			r.Route("/notificationprofiles", func(r chi.Router) {
				profileHandler := profiles.NewHandler(s.storage)

				r.Get("/", profileHandler.List)
				r.Post("/", profileHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", profileHandler.GetByID)
					r.Put("/", profileHandler.Update)
					r.Delete("/", profileHandler.Delete)
				})
			})
		})

		// Media catalog (shared, read-only)
		destinationHandler := destinations.NewHandler(s.storage, s.registry)
		r.Get("/media", destinationHandler.Media)
	})

	// Probes (public, no rate limit)
	r.Get("/healthz", s.healthHandler.Health)
	r.Get("/livez", s.healthHandler.Live)
	r.Get("/readyz", s.healthHandler.Ready)

	return r
}

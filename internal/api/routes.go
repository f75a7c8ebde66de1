package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(MetricsMiddleware)
	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Handle("/metrics", MetricsHandler())

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", h.Health)

		// Collaborator routes (API key)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))

			r.Route("/users/{userID}", func(r chi.Router) {
				r.Use(UserMiddleware)
				r.Put("/profile", h.PutProfile)
				r.Post("/leads", h.CreateLead)
				r.Get("/focus", h.GetFocus)
				r.Post("/leads/{leadID}/contacted", h.MarkContacted)
				r.Post("/leads/{leadID}/actions", h.RecordAction)
			})

			r.Get("/leads/{leadID}/score", h.GetScore)
			r.Post("/leads/{leadID}/score", h.ScoreLead)
		})

		// Scheduler routes (cron secret)
		r.Route("/cron", func(r chi.Router) {
			r.Use(AuthMiddleware(h.cronSecret))
			r.Post("/rescore", h.Rescore)
			r.Post("/daily-focus", h.DailyFocus)
			r.Get("/reports", h.ReportLink)
		})
	})

	return r
}

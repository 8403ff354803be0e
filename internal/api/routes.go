package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes (no auth required)
		r.Get("/health", h.Health)

		// Protected routes (auth required)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))

			r.Post("/entries", h.SubmitEntry)
			r.Get("/entries", h.ListEntries)
			r.Get("/entries/{id}", h.GetEntry)

			r.Get("/cores", h.ListCores)
			r.Get("/cores/{id}", h.GetCore)

			r.Get("/metrics/tokens", h.TokenMetrics)
			r.Put("/settings/analysis", h.UpdateAnalysisSettings)

			r.Get("/queue", h.ListQueue)
			r.Post("/queue/drain", h.DrainQueue)
		})
	})

	return r
}

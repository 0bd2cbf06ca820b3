package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/ytgrabba/internal/api/handler"
	mw "github.com/iconidentify/ytgrabba/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
// requestTimeout bounds synchronous acquisitions; it should cover the poll
// budget plus the longest transfer timeout.
func NewRouter(
	mediaHandler *handler.MediaHandler,
	healthHandler *handler.HealthHandler,
	apiKey string,
	requestTimeout time.Duration,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(mw.CORS)

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	// API v1 (authenticated)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))

		r.Get("/stats", mediaHandler.Stats)
		r.Get("/system", healthHandler.System)

		r.Post("/acquire", mediaHandler.Acquire)
		r.Get("/playlist", mediaHandler.Playlist)
		r.Get("/history", mediaHandler.History)

		r.Post("/jobs", mediaHandler.Submit)
		r.Get("/jobs", mediaHandler.ListJobs)
		r.Get("/jobs/{jobID}", mediaHandler.GetJob)
	})

	return r
}

package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/eventlens/eventlens/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	searchHandler := handlers.NewSearchHandler(s.deps.Searcher)
	uploadHandler := handlers.NewUploadHandler(s.deps.UploadDir, s.deps.Ingestor, s.jobManager)
	statsHandler := handlers.NewStatsHandler(s.deps.Index, s.deps.Records)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/events/{eventID}/photos", uploadHandler.Upload)
		r.Post("/events/{eventID}/search", searchHandler.Search)

		r.Get("/jobs/{jobID}", uploadHandler.JobStatus)

		r.Get("/stats", statsHandler.Get)
	})

	// Matched photos are served straight from the upload directory; search
	// results link here via the public base URL.
	if s.deps.UploadDir != "" {
		fileServer := http.StripPrefix("/photos/", http.FileServer(http.Dir(s.deps.UploadDir)))
		s.router.Get("/photos/*", fileServer.ServeHTTP)
	}
}

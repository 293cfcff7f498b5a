package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// defaultStreamPath is used when websocket.path is not configured.
const defaultStreamPath = "/api/v1/stream"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/status", s.handleStatus)
		r.Post("/status/publish", s.handlePublishStatus)
		r.Post("/commands", s.handlePublishCommand)

		r.Get("/recording", s.handleGetRecording)
		r.Put("/recording", s.handleSetRecording)

		r.Get("/journal", s.handleListJournal)
	})

	streamPath := s.wsCfg.Path
	if streamPath == "" {
		streamPath = defaultStreamPath
	}
	r.Get(streamPath, s.handleStream)

	return r
}

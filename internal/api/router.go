package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/telemetry", s.handleGetTelemetry)
		r.Get("/telemetry/history", s.handleTelemetryHistory)

		r.Route("/feed", func(r chi.Router) {
			r.Post("/manual", s.handleManualFeed)
			r.Post("/auto", s.handleAutoFeedConfig)
		})

		// WebSocket telemetry stream
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	brokerConnected := s.bridge.HealthCheck(r.Context()) == nil
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"version":          s.version,
		"broker_connected": brokerConnected,
	})
}

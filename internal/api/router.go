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
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes (bearer check is a no-op until a JWT secret
		// is configured)
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/ingest", s.handleIngest)

			r.Route("/sensors", func(r chi.Router) {
				r.Post("/threshold-check", s.handleThresholdCheck)
				r.Post("/calibrate", s.handleCalibrate)
			})

			r.Post("/forecast", s.handleForecast)
			r.Post("/liveness/sweep", s.handleLivenessSweep)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Get("/readings", s.handleDeviceReadings)
					r.Get("/status", s.handleDeviceStatus)
				})
			})

			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

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

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)
			r.Get("/metrics", s.handleMetrics)

			r.Route("/discovery", func(r chi.Router) {
				r.Post("/network", s.handleNetworkDiscovery)
				r.Post("/bluetooth", s.handleBluetoothDiscovery)
			})

			r.Post("/devices/connect", s.handleConnectDevice)

			r.Route("/routines", func(r chi.Router) {
				r.Get("/", s.handleListRoutines)
				r.Post("/", s.handleCreateRoutine)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetRoutine)
					r.Put("/", s.handleUpdateRoutine)
					r.Delete("/", s.handleDeleteRoutine)
					r.Post("/execute", s.handleExecuteRoutine)
					r.Get("/logs", s.handleListRoutineLogs)
				})
			})

			r.Get("/routine-logs/{logId}", s.handleGetRoutineLog)
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

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/scene-rotator/internal/obs"
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
		// Health and metrics (no auth required for basic monitoring)
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// WebSocket (auth via ticket, validated in handler)
		r.Get(s.wsPath(), s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/scenes", func(r chi.Router) {
				r.Get("/", s.handleListScenes)
				r.Get("/current", s.handleCurrentScene)
				r.Post("/switch", s.handleSwitchScene)
				r.Post("/refresh", s.handleRefreshScenes)
			})

			r.Route("/groups", func(r chi.Router) {
				r.Get("/", s.handleListGroups)
				r.Post("/", s.handleCreateGroup)

				r.Route("/{name}", func(r chi.Router) {
					r.Get("/", s.handleGetGroup)
					r.Patch("/", s.handleUpdateGroup)
					r.Delete("/", s.handleDeleteGroup)
					r.Post("/scenes", s.handleAddScene)
					r.Delete("/scenes/{scene}", s.handleRemoveScene)
					r.Post("/scenes/{scene}/hidden", s.handleToggleHidden)
					r.Post("/rotation/start", s.handleStartRotation)
					r.Post("/rotation/stop", s.handleStopRotation)
					r.Get("/history", s.handleGroupHistory)
				})
			})

			r.Route("/rotations", func(r chi.Router) {
				r.Get("/", s.handleListRotations)
				r.Post("/stop", s.handleStopAllRotations)
			})

			r.Get("/history", s.handleListHistory)
		})
	})

	return r
}

// wsPath is the WebSocket route below /api/v1.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth returns the server health status. OBS being unreachable
// degrades the status but is not an HTTP error; the rotator keeps
// reconnecting.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.service.ConnectionState()
	status := "ok"
	if state != obs.StateReady {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"obs":     state.String(),
		"version": s.version,
	})
}

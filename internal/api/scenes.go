package api

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

// switchRequest is the body of POST /scenes/switch.
type switchRequest struct {
	Scene string `json:"scene"`
}

// pathParam returns an unescaped chi URL parameter.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// handleListScenes returns the scene directory.
//
// GET /scenes
// Response: {"scenes": [...], "current": "...", "stale": false, "updated_at": "..."}
func (s *Server) handleListScenes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Directory().Snapshot())
}

// handleCurrentScene returns the program scene.
//
// GET /scenes/current
// Response: {"scene": "..."} or 404 before anything is known
func (s *Server) handleCurrentScene(w http.ResponseWriter, _ *http.Request) {
	scene, ok := s.service.CurrentScene()
	if !ok {
		writeNotFound(w, "current scene is not known yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scene": scene})
}

// handleSwitchScene puts a scene on program. The response means the request
// reached OBS, not that the switch was confirmed.
//
// POST /scenes/switch
// Body: {"scene": "Cam1"}
// Response: 202 Accepted
func (s *Server) handleSwitchScene(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.service.SwitchScene(r.Context(), req.Scene); err != nil {
		s.writeDomainError(w, err, "switch scene")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"scene": req.Scene})
}

// handleRefreshScenes fetches a fresh scene listing from OBS.
//
// POST /scenes/refresh
// Response: {"scenes": [...], "count": N}
func (s *Server) handleRefreshScenes(w http.ResponseWriter, r *http.Request) {
	scenes, err := s.service.RefreshScenes(r.Context())
	if err != nil {
		s.writeDomainError(w, err, "refresh scenes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenes": scenes, "count": len(scenes)})
}

package api

import (
	"net/http"
)

// handleStartRotation starts a group's rotation. Starting a rotating group
// is a no-op.
//
// POST /groups/{name}/rotation/start
// Response: {"group": "...", "rotating": true}
func (s *Server) handleStartRotation(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	if err := s.service.StartRotation(name); err != nil {
		s.writeDomainError(w, err, "start rotation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"group": name, "rotating": true})
}

// handleStopRotation stops a group's rotation. Stopping an idle group is a
// no-op; "was_rotating" tells the two apart.
//
// POST /groups/{name}/rotation/stop
func (s *Server) handleStopRotation(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	wasRotating := s.service.StopRotation(name)
	writeJSON(w, http.StatusOK, map[string]any{"group": name, "rotating": false, "was_rotating": wasRotating})
}

// handleListRotations lists active rotations.
//
// GET /rotations
// Response: {"rotations": [...], "count": N}
func (s *Server) handleListRotations(w http.ResponseWriter, _ *http.Request) {
	rotations := s.service.Rotations()
	writeJSON(w, http.StatusOK, map[string]any{"rotations": rotations, "count": len(rotations)})
}

// handleStopAllRotations stops every rotation.
//
// POST /rotations/stop
// Response: {"stopped": [...]}
func (s *Server) handleStopAllRotations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"stopped": s.service.StopAllRotations()})
}

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nerrad567/scene-rotator/internal/groups"
)

// groupResponse is a group plus whether it is rotating.
type groupResponse struct {
	groups.Group
	Rotating bool `json:"rotating"`
}

// createGroupRequest is the body of POST /groups.
type createGroupRequest struct {
	Name     string   `json:"name"`
	Interval *float64 `json:"interval,omitempty"`
	Scenes   []string `json:"scenes,omitempty"`
}

// updateGroupRequest is the body of PATCH /groups/{name}.
type updateGroupRequest struct {
	Name     *string  `json:"name,omitempty"`
	Interval *float64 `json:"interval,omitempty"`
}

// addSceneRequest is the body of POST /groups/{name}/scenes.
type addSceneRequest struct {
	Scene string `json:"scene"`
}

func (s *Server) groupResponse(g groups.Group) groupResponse {
	return groupResponse{Group: g, Rotating: s.service.IsRotating(g.Name)}
}

// handleListGroups returns all scene groups.
//
// GET /groups
// Response: {"groups": [...], "count": N}
func (s *Server) handleListGroups(w http.ResponseWriter, _ *http.Request) {
	list := s.service.Store().List()
	out := make([]groupResponse, 0, len(list))
	for _, g := range list {
		out = append(out, s.groupResponse(g))
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": out, "count": len(out)})
}

// handleCreateGroup creates a group, optionally with an initial scene list.
// The interval defaults to rotation.default_interval.
//
// POST /groups
// Body: {"name": "Intro", "interval": 5, "scenes": ["Cam1"]}
// Response: 201 Created with the group
func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	store := s.service.Store()
	interval := store.DefaultInterval()
	if req.Interval != nil {
		interval = *req.Interval
	}

	if err := store.Create(r.Context(), req.Name, interval, req.Scenes...); err != nil {
		s.writeDomainError(w, err, "create group")
		return
	}

	g, err := store.Get(req.Name)
	if err != nil {
		s.writeDomainError(w, err, "create group")
		return
	}
	writeJSON(w, http.StatusCreated, s.groupResponse(g))
}

// handleGetGroup returns a single group.
//
// GET /groups/{name}
func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.service.Store().Get(pathParam(r, "name"))
	if err != nil {
		s.writeDomainError(w, err, "get group")
		return
	}
	writeJSON(w, http.StatusOK, s.groupResponse(g))
}

// handleUpdateGroup renames a group and/or changes its interval. Both
// fields are checked before either is applied, so a rejected request
// leaves the group untouched.
//
// PATCH /groups/{name}
// Body: {"name": "Opening", "interval": 8}
func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	var req updateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == nil && req.Interval == nil {
		writeBadRequest(w, "no fields to update")
		return
	}

	store := s.service.Store()
	old, err := store.Get(name)
	if err != nil {
		s.writeDomainError(w, err, "update group")
		return
	}
	if req.Interval != nil && !groups.ValidInterval(*req.Interval) {
		s.writeDomainError(w, fmt.Errorf("%w: %v", groups.ErrInvalidInterval, *req.Interval), "update group")
		return
	}
	newName := name
	if req.Name != nil {
		newName = strings.TrimSpace(*req.Name)
		if newName == "" {
			s.writeDomainError(w, fmt.Errorf("%w: group name is empty", groups.ErrInvalidName), "rename group")
			return
		}
		if newName != name && store.Exists(newName) {
			s.writeDomainError(w, fmt.Errorf("%w: %q", groups.ErrDuplicateGroup, newName), "rename group")
			return
		}
	}

	if req.Interval != nil {
		if err := store.SetInterval(r.Context(), name, *req.Interval); err != nil {
			s.writeDomainError(w, err, "update group")
			return
		}
	}
	if newName != name {
		if err := store.Rename(r.Context(), name, newName); err != nil {
			// Lost a race with a concurrent create or delete.
			if req.Interval != nil {
				_ = store.SetInterval(r.Context(), name, old.Interval)
			}
			s.writeDomainError(w, err, "rename group")
			return
		}
	}

	g, err := store.Get(newName)
	if err != nil {
		s.writeDomainError(w, err, "update group")
		return
	}
	writeJSON(w, http.StatusOK, s.groupResponse(g))
}

// handleDeleteGroup deletes a group, stopping its rotation.
//
// DELETE /groups/{name}
// Response: 204 No Content
func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Store().Delete(r.Context(), pathParam(r, "name")); err != nil {
		s.writeDomainError(w, err, "delete group")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAddScene appends a scene to a group's rotation.
//
// POST /groups/{name}/scenes
// Body: {"scene": "Cam3"}
func (s *Server) handleAddScene(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	var req addSceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	store := s.service.Store()
	if err := store.AddScene(r.Context(), name, req.Scene); err != nil {
		s.writeDomainError(w, err, "add scene")
		return
	}

	g, err := store.Get(name)
	if err != nil {
		s.writeDomainError(w, err, "add scene")
		return
	}
	writeJSON(w, http.StatusOK, s.groupResponse(g))
}

// handleRemoveScene drops a scene from a group.
//
// DELETE /groups/{name}/scenes/{scene}
func (s *Server) handleRemoveScene(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	store := s.service.Store()
	if err := store.RemoveScene(r.Context(), name, pathParam(r, "scene")); err != nil {
		s.writeDomainError(w, err, "remove scene")
		return
	}

	g, err := store.Get(name)
	if err != nil {
		s.writeDomainError(w, err, "remove scene")
		return
	}
	writeJSON(w, http.StatusOK, s.groupResponse(g))
}

// handleToggleHidden flips whether rotation skips a scene.
//
// POST /groups/{name}/scenes/{scene}/hidden
// Response: {"group": "...", "scene": "...", "hidden": true}
func (s *Server) handleToggleHidden(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	scene := pathParam(r, "scene")

	hidden, err := s.service.Store().ToggleHidden(r.Context(), name, scene)
	if err != nil {
		s.writeDomainError(w, err, "toggle hidden scene")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"group": name, "scene": scene, "hidden": hidden})
}

package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/scene-rotator/internal/history"
)

// handleListHistory returns switch history, newest first.
//
// GET /history?group=Intro&source=rotation&limit=50&offset=0
// Response: {"entries": [...], "total": N, "limit": 50, "offset": 0}
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeServiceUnavailable(w, "switch history is not enabled")
		return
	}

	q := r.URL.Query()
	filter := history.Filter{
		Group:  q.Get("group"),
		Source: q.Get("source"),
	}

	var err error
	if filter.Limit, err = queryInt(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = queryInt(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be a non-negative integer")
		return
	}

	result, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list switch history", "error", err)
		writeInternalError(w, "failed to list switch history")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGroupHistory returns the newest switches a group's rotation issued.
//
// GET /groups/{name}/history?limit=20
// Response: {"group": "Intro", "entries": [...], "count": N}
func (s *Server) handleGroupHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeServiceUnavailable(w, "switch history is not enabled")
		return
	}

	name := pathParam(r, "name")
	if !s.service.Store().Exists(name) {
		writeNotFound(w, "group not found: "+name)
		return
	}
	limit, err := queryInt(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}

	entries, err := s.history.ListByGroup(r.Context(), name, limit)
	if err != nil {
		s.logger.Error("failed to list group history", "group", name, "error", err)
		writeInternalError(w, "failed to list group history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"group": name, "entries": entries, "count": len(entries)})
}

// queryInt parses an optional non-negative integer query value.
func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

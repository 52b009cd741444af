package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/scene-rotator/internal/groups"
	"github.com/nerrad567/scene-rotator/internal/obs"
	"github.com/nerrad567/scene-rotator/internal/switcher"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
	ErrCodeUnavailable  = "service_unavailable"
	ErrCodeBadGateway   = "obs_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeServiceUnavailable writes a 503 error response.
func writeServiceUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// writeDomainError maps an error from the groups, switcher or obs packages
// onto a response. Unrecognised errors are logged and reported as 500.
func (s *Server) writeDomainError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, groups.ErrDuplicateGroup):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, groups.ErrGroupNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, groups.ErrInvalidInterval),
		errors.Is(err, groups.ErrInvalidName),
		errors.Is(err, switcher.ErrSceneRequired),
		errors.Is(err, switcher.ErrGroupRequired):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, switcher.ErrClosed), errors.Is(err, obs.ErrNotConnected), errors.Is(err, obs.ErrClosed):
		writeServiceUnavailable(w, err.Error())
	case errors.Is(err, obs.ErrTransport),
		errors.Is(err, obs.ErrRequestFailed),
		errors.Is(err, obs.ErrRequestTimeout),
		errors.Is(err, obs.ErrProtocol):
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, err.Error())
	default:
		s.logger.Error("request failed", "action", action, "error", err)
		writeInternalError(w, "failed to "+action)
	}
}

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"inferd/internal/common/fsutil"
	"inferd/internal/engine"
	"inferd/internal/worker"

	"inferd/pkg/types"
)

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// writeJSON writes a 200 JSON response.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// writeWorkerError maps worker and engine errors to HTTP status codes.
// Sandbox rejections become 404 so the filesystem layout never leaks.
func writeWorkerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fsutil.ErrOutsideRoot):
		writeJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, worker.ErrNoModelLoaded):
		writeJSONError(w, http.StatusServiceUnavailable, "no model loaded")
	case errors.Is(err, worker.ErrWorkerClosed):
		writeJSONError(w, http.StatusServiceUnavailable, "shutting down")
	case engine.IsEngineUnavailable(err):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

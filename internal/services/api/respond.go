package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/pulsekeep/pulsekeep/internal/repository/postgres"
	"github.com/pulsekeep/pulsekeep/internal/services/api/checks"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps usecase errors onto response codes. Anything unrecognized is a
// logged 500 with no detail leaked.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, postgres.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, checks.ErrBadParam):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, checks.ErrNotPaused):
		writeError(w, http.StatusConflict, "check is not paused")
	case errors.Is(err, checks.ErrLogUnavailable):
		writeError(w, http.StatusServiceUnavailable, "log unavailable")
	case errors.Is(err, postgres.ErrConflict):
		writeError(w, http.StatusConflict, "already exists")
	default:
		s.log.Error("request failed",
			zap.String("path", r.URL.Path), zap.String("method", r.Method), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(r *http.Request, into any) error {
	return json.NewDecoder(r.Body).Decode(into)
}

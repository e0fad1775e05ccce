package api

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/pulsekeep/pulsekeep/internal/auth"
	"github.com/pulsekeep/pulsekeep/internal/domain/project"
	"github.com/pulsekeep/pulsekeep/internal/repository/postgres"
)

type projectKey struct{}

// requireAPIKey resolves the X-Api-Key header to a project and rejects
// everything else with 401. Lookup failures other than a missing key are
// server faults, not auth faults.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-Api-Key")
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "missing api key")
			return
		}
		keyID, secret, err := auth.SplitKey(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		proj, err := s.projects.GetByKeyID(r.Context(), keyID)
		if err != nil {
			if errors.Is(err, postgres.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			s.log.Error("api key lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if err := auth.VerifySecret(proj.KeyHash, secret); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		ctx := context.WithValue(r.Context(), projectKey{}, proj)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func projectFrom(r *http.Request) *project.Project {
	p, _ := r.Context().Value(projectKey{}).(*project.Project)
	return p
}

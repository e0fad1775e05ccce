package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pulsekeep/pulsekeep/internal/services/api/checks"
)

func codeParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "code"))
}

func intQuery(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	list, err := s.checks.List(r.Context(), projectFrom(r), r.URL.Query()["tag"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"checks": list})
}

func (s *Server) handleCreateCheck(w http.ResponseWriter, r *http.Request) {
	var p checks.Params
	if err := decode(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	chk, err := s.checks.Create(r.Context(), projectFrom(r), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, chk)
}

func (s *Server) handleGetCheck(w http.ResponseWriter, r *http.Request) {
	code, err := codeParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	chk, err := s.checks.Get(r.Context(), projectFrom(r), code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chk)
}

func (s *Server) handleUpdateCheck(w http.ResponseWriter, r *http.Request) {
	code, err := codeParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	var p checks.Params
	if err := decode(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	chk, err := s.checks.Update(r.Context(), projectFrom(r), code, p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chk)
}

func (s *Server) handleDeleteCheck(w http.ResponseWriter, r *http.Request) {
	code, err := codeParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err := s.checks.Delete(r.Context(), projectFrom(r), code); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": code.String()})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	code, err := codeParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	chk, err := s.checks.Pause(r.Context(), projectFrom(r), code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chk)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	code, err := codeParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	chk, err := s.checks.Resume(r.Context(), projectFrom(r), code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chk)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	code, err := codeParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	tl, err := s.checks.Timeline(r.Context(), projectFrom(r), code, intQuery(r, "limit"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tl)
}

func (s *Server) handleListPings(w http.ResponseWriter, r *http.Request) {
	code, err := codeParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	pings, err := s.checks.ListPings(r.Context(), projectFrom(r), code, intQuery(r, "limit"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pings": pings})
}

func (s *Server) handlePingBody(w http.ResponseWriter, r *http.Request) {
	code, err := codeParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	n, err := strconv.ParseInt(chi.URLParam(r, "n"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	body, err := s.checks.PingBody(r.Context(), projectFrom(r), code, n)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write(body)
}

func (s *Server) handleFlips(w http.ResponseWriter, r *http.Request) {
	code, err := codeParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	flips, err := s.checks.FlipsSince(r.Context(), projectFrom(r), code, intQuery(r, "seconds"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"flips": flips})
}

func (s *Server) handleDowntimes(w http.ResponseWriter, r *http.Request) {
	code, err := codeParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	months, err := s.checks.Downtimes(r.Context(), projectFrom(r), code, intQuery(r, "months"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"downtimes": months})
}

func (s *Server) handleCheckChannels(w http.ResponseWriter, r *http.Request) {
	code, err := codeParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	list, err := s.checks.ChannelsOf(r.Context(), projectFrom(r), code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": list})
}

func (s *Server) handleCheckNotifications(w http.ResponseWriter, r *http.Request) {
	code, err := codeParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	list, err := s.checks.Notifications(r.Context(), projectFrom(r), code, intQuery(r, "limit"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

// handleStream verifies the check belongs to the caller before handing the
// connection to the hub.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	code, err := codeParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if _, err := s.checks.Get(r.Context(), projectFrom(r), code); err != nil {
		s.fail(w, r, err)
		return
	}
	s.hub.Serve(w, r, code)
}

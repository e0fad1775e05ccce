package api

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pulsekeep/pulsekeep/internal/domain/ping"
	"github.com/pulsekeep/pulsekeep/internal/repository/postgres"
	"github.com/pulsekeep/pulsekeep/internal/services/api/ingest"
	"github.com/pulsekeep/pulsekeep/internal/timeline"
)

func (s *Server) handlePing(kind ping.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.servePing(w, r, kind, nil)
	}
}

// Exit statuses map onto the unix convention: zero succeeds, anything
// else fails. Values past one byte cannot come from a real process.
func (s *Server) handlePingExitStatus(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "exitstatus"))
	if err != nil || n > 255 {
		writeError(w, http.StatusBadRequest, "invalid exit status")
		return
	}
	kind := ping.KindSuccess
	if n > 0 {
		kind = ping.KindFail
	}
	s.servePing(w, r, kind, &n)
}

func (s *Server) servePing(w http.ResponseWriter, r *http.Request, kind ping.Kind, exitStatus *int) {
	code, err := uuid.Parse(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	// Oversized bodies are truncated, not rejected; losing preview text
	// must never lose the signal itself.
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	res, err := s.ingest.HandlePing(r.Context(), code, kind, exitStatus, ingest.Meta{
		Scheme:     scheme(r),
		Method:     r.Method,
		RemoteAddr: remoteAddr(r),
		UserAgent:  r.UserAgent(),
		Body:       body,
	})
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		s.fail(w, r, err)
		return
	}
	s.pushHead(res)

	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write([]byte("OK"))
}

// pushHead renders the just-arrived ping as a single timeline row and fans
// it out to stream subscribers.
func (s *Server) pushHead(res *ingest.Result) {
	tl, err := timeline.Build(timeline.Input{
		Events: []*ping.Ping{res.Ping},
		Limit:  1,
		Now:    res.Ping.CreatedAt,
	})
	if err != nil || len(tl.Rows) == 0 {
		return
	}
	s.hub.Broadcast(res.Check.Code, tl.Rows[0])
}

func scheme(r *http.Request) string {
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		return p
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func remoteAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

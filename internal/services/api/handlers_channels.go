package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pulsekeep/pulsekeep/internal/domain/channel"
)

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	list, err := s.channels.ListByProject(r.Context(), projectFrom(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": list})
}

func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name  string `json:"name"`
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ch := &channel.Channel{
		ProjectID: projectFrom(r).ID,
		Name:      body.Name,
		Kind:      channel.Kind(body.Kind),
		Value:     body.Value,
	}
	switch ch.Kind {
	case channel.KindEmail:
		if !strings.Contains(ch.Value, "@") {
			writeError(w, http.StatusBadRequest, "invalid email address")
			return
		}
	case channel.KindWebhook:
		if _, err := ch.Webhook(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid webhook value")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown channel kind")
		return
	}

	if err := s.channels.Create(r.Context(), ch); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

func (s *Server) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	ch, err := s.channels.GetByID(r.Context(), id)
	if err != nil || ch.ProjectID != projectFrom(r).ID {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err := s.channels.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}

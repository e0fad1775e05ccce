// Package api is the HTTP face of pulsekeep: public ping ingestion,
// the key-authenticated management API and the timeline stream.
package api

import (
	"go.uber.org/zap"

	"github.com/pulsekeep/pulsekeep/internal/domain/channel"
	"github.com/pulsekeep/pulsekeep/internal/domain/project"
	"github.com/pulsekeep/pulsekeep/internal/repository/postgres"
	"github.com/pulsekeep/pulsekeep/internal/services/api/checks"
	"github.com/pulsekeep/pulsekeep/internal/services/api/ingest"
	"github.com/pulsekeep/pulsekeep/internal/services/api/stream"
)

type Server struct {
	log      *zap.Logger
	ingest   *ingest.Usecase
	checks   *checks.Usecase
	projects project.Repo
	channels channel.Repo
	hub      *stream.Hub
	db       *postgres.DB
	maxBody  int64
}

func NewServer(
	log *zap.Logger,
	ing *ingest.Usecase,
	chk *checks.Usecase,
	projects project.Repo,
	channels channel.Repo,
	hub *stream.Hub,
	db *postgres.DB,
	maxBody int64,
) *Server {
	return &Server{
		log:      log,
		ingest:   ing,
		checks:   chk,
		projects: projects,
		channels: channels,
		hub:      hub,
		db:       db,
		maxBody:  maxBody,
	}
}

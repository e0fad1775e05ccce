package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	config "github.com/pulsekeep/pulsekeep/internal/config/api"
	"github.com/pulsekeep/pulsekeep/internal/services/api"
)

func buildHTTPServer(cfg *config.Config, srv *api.Server) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.SetupRouter(srv),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

func serveHTTP(srv *http.Server, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
	return srv.ListenAndServe()
}

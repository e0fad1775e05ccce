package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/pulsekeep/pulsekeep/internal/config/api"
	"github.com/pulsekeep/pulsekeep/internal/obs"
	"github.com/pulsekeep/pulsekeep/internal/repository/objectstore"
	pg "github.com/pulsekeep/pulsekeep/internal/repository/postgres"
	"github.com/pulsekeep/pulsekeep/internal/services/api"
	"github.com/pulsekeep/pulsekeep/internal/services/api/checks"
	"github.com/pulsekeep/pulsekeep/internal/services/api/ingest"
	"github.com/pulsekeep/pulsekeep/internal/services/api/stream"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func wiring(db *pg.DB, store *objectstore.Store, cfg *config.Config, l *zap.Logger) *api.Server {
	checkRepo := pg.NewCheckRepo(db)
	pingRepo := pg.NewPingRepo(db)
	flipRepo := pg.NewFlipRepo(db)
	notifRepo := pg.NewNotificationRepo(db)
	projectRepo := pg.NewProjectRepo(db)
	channelRepo := pg.NewChannelRepo(db)
	boxRepo := pg.NewOutboxRepo(db)
	tx := pg.NewTransactor(db, l)

	ing := &ingest.Usecase{
		Checks:     checkRepo,
		Pings:      pingRepo,
		Flips:      flipRepo,
		Notifs:     notifRepo,
		Projects:   projectRepo,
		Outbox:     boxRepo,
		Transactor: tx,
		Clock:      systemClock{},
		Log:        l,
	}
	uc := &checks.Usecase{
		Checks:     checkRepo,
		Pings:      pingRepo,
		Flips:      flipRepo,
		Channels:   channelRepo,
		Notifs:     notifRepo,
		Transactor: tx,
		Clock:      systemClock{},
	}
	// A nil *Store inside the interface would dodge the nil checks.
	if store != nil {
		ing.Objects = store
		uc.Objects = store
	}

	hub := stream.NewHub(l)
	return api.NewServer(l, ing, uc, projectRepo, channelRepo, hub, db, cfg.Ingest.MaxBodySize)
}

func main() {
	// init
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg, err := config.Load("../config/api.yaml")
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting api", zap.String("env", cfg.App.Env), zap.String("ver", cfg.App.Version))

	// otel
	otelCloser, err := obs.SetupOTel(rootCtx, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.New(rootCtx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// object store
	var store *objectstore.Store
	if cfg.S3.Enabled() {
		store, err = objectstore.New(cfg.S3, l)
		if err != nil {
			l.Fatal("object store init", zap.Error(err))
		}
		l.Info("object store ready", zap.String("bucket", cfg.S3.Bucket))
	} else {
		l.Info("object store disabled, ping bodies stay inline")
	}

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, func(ctx context.Context) error {
		return db.Pool.Ping(ctx)
	}, l)

	// wiring
	srv := wiring(db, store, cfg, l)
	httpSrv := buildHTTPServer(cfg, srv)

	// start
	errCh := make(chan error, 1)
	go func() { errCh <- serveHTTP(httpSrv, cfg, l) }()

	// loop
	var runErr error
	select {
	case <-rootCtx.Done():
		l.Info("shutdown signal")
	case runErr = <-errCh:
		if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
			l.Error("http serve", zap.Error(runErr))
		}
	}

	// graceful shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(shCtx)
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}

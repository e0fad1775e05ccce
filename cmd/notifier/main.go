package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/pulsekeep/pulsekeep/internal/config/notifier"
	"github.com/pulsekeep/pulsekeep/internal/domain/ratelimit"
	"github.com/pulsekeep/pulsekeep/internal/obs"
	"github.com/pulsekeep/pulsekeep/internal/repository/kafka"
	pg "github.com/pulsekeep/pulsekeep/internal/repository/postgres"
	"github.com/pulsekeep/pulsekeep/internal/services/notifier"
	"github.com/pulsekeep/pulsekeep/internal/services/notifier/repo"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func wiring(db *pg.DB, cfg *config.Config, cons *kafka.Consumer, l *zap.Logger) *notifier.Controller {
	checks := pg.NewCheckRepo(db)
	channels := pg.NewChannelRepo(db)
	notifs := pg.NewNotificationRepo(db)
	flips := pg.NewFlipRepo(db)
	buckets := pg.NewBucketRepo(db)

	mailer := notifier.NewMailer(cfg.SMTP).WithLogger(l)
	hooks := notifier.NewWebhook(cfg.Webhook).WithLogger(l)

	uc := &notifier.Handler{
		Checks:   repo.CheckReader{R: checks},
		Channels: repo.ChannelRepo{R: channels},
		Store:    repo.NotificationRepo{R: notifs},
		Flips:    repo.FlipRepo{R: flips},
		Email:    mailer,
		Hooks:    hooks,
		Limits:   ratelimit.NewLimiter(buckets, nil),
		Budget:   cfg.RateLimit,
		Clock:    systemClock{},
		Log:      l,
	}

	return &notifier.Controller{Log: l, Sub: cons, UC: uc}
}

func main() {
	// init
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg, err := config.Load("../config/notifier.yaml")
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting notifier",
		zap.String("topic", cfg.In.Topic),
		zap.String("group", cfg.In.GroupID),
		zap.String("smtp_addr", cfg.SMTP.Addr),
	)

	// otel
	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Warn("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.New(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, func(ctx context.Context) error {
		return db.Pool.Ping(ctx)
	}, l)

	// kafka
	cons := kafka.BootstrapConsumer(ctx, cfg.In.AsConsumerConfig(), l).WithLogger(l)
	defer func() { _ = cons.Close() }()

	// start
	ctrl := wiring(db, cfg, cons, l)
	errCh := make(chan error, 1)
	go func() { errCh <- ctrl.Run(ctx) }()
	l.Info("notifier started", zap.Strings("brokers", cfg.In.Brokers))

	// loop
	select {
	case <-ctx.Done():
		l.Info("shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("controller error", zap.Error(err))
		}
	}

	// graceful shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}

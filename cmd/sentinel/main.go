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

	config "github.com/pulsekeep/pulsekeep/internal/config/sentinel"
	"github.com/pulsekeep/pulsekeep/internal/obs"
	"github.com/pulsekeep/pulsekeep/internal/obs/retry"
	"github.com/pulsekeep/pulsekeep/internal/outbox"
	kafkaRepo "github.com/pulsekeep/pulsekeep/internal/repository/kafka"
	pg "github.com/pulsekeep/pulsekeep/internal/repository/postgres"
	"github.com/pulsekeep/pulsekeep/internal/services/sentinel"
	"github.com/pulsekeep/pulsekeep/internal/services/sentinel/repo"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func main() {
	// init
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg, err := config.Load("../config/sentinel.yaml")
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting sentinel",
		zap.Strings("kafka_brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.Duration("tick", cfg.Sweep.Tick),
	)

	// otel
	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.New(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// kafka
	kafkaProd := kafkaRepo.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic).WithLogger(l)
	publisher := kafkaRepo.NewFlipEventsKafka(kafkaProd)
	defer func() { _ = kafkaProd.Close() }()

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Sweep.MetricsAddr, func(ctx context.Context) error {
		return db.Pool.Ping(ctx)
	}, l)

	// wiring
	checkRepo := pg.NewCheckRepo(db)
	flipRepo := pg.NewFlipRepo(db)
	boxRepo := pg.NewOutboxRepo(db)
	tx := pg.NewTransactor(db, l)

	uc := sentinel.NewUC(
		repo.Checks{R: checkRepo},
		repo.Flips{R: flipRepo},
		repo.Outbox{R: boxRepo},
		tx,
		systemClock{},
	)
	runner := sentinel.New(l, uc, &cfg.Sweep)

	dispatch := outbox.MakeGlobalOutboxHandler(publisher, retry.DefaultKafkaPolicy(l))
	boxRunner := outbox.NewRunner(l, boxRepo, dispatch, outbox.RunnerConfig{
		Workers:       cfg.Outbox.Workers,
		BatchSize:     cfg.Outbox.BatchSize,
		Wait:          cfg.Outbox.Wait,
		InProgressTTL: cfg.Outbox.InProgressTTL,
	})

	// run
	boxRunner.Start(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	l.Info("sentinel started")

	// loop
	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}
	stop()

	// graceful shutdown
	boxRunner.Wait()
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}

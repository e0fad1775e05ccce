package kafka

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Handler processes one record. A non-nil error keeps the offset
// uncommitted, so the record is redelivered.
type Handler func(ctx context.Context, key, value []byte) error

type ConsumerConfig struct {
	Brokers       []string
	GroupID       string
	Topic         string
	FromBeginning bool
	Logger        *zap.Logger
}

type Consumer struct {
	reader *kafka.Reader
	log    *zap.Logger
	cfg    *ConsumerConfig
}

func NewConsumer(cfg *ConsumerConfig) *Consumer {
	if cfg.Logger == nil {
		cfg.Logger = zap.L()
	}

	c := &Consumer{cfg: cfg, log: taggedConsumerLog(cfg.Logger, cfg)}
	c.reader = kafka.NewReader(readerConfig(cfg))
	return c
}

func readerConfig(cfg *ConsumerConfig) kafka.ReaderConfig {
	start := kafka.LastOffset
	if cfg.FromBeginning {
		start = kafka.FirstOffset
	}
	return kafka.ReaderConfig{
		Brokers:               cfg.Brokers,
		GroupID:               cfg.GroupID,
		Topic:                 cfg.Topic,
		StartOffset:           start,
		WatchPartitionChanges: true,

		MinBytes:          1e3,
		MaxBytes:          10e6,
		SessionTimeout:    10 * time.Second,
		RebalanceTimeout:  15 * time.Second,
		HeartbeatInterval: 3 * time.Second,
	}
}

func taggedConsumerLog(l *zap.Logger, cfg *ConsumerConfig) *zap.Logger {
	return l.With(
		zap.String("component", "kafka.consumer"),
		zap.String("topic", cfg.Topic),
		zap.String("group", cfg.GroupID),
	)
}

func (c *Consumer) WithLogger(l *zap.Logger) *Consumer {
	if l == nil {
		return c
	}
	cp := *c
	cp.log = taggedConsumerLog(l, c.cfg)
	return &cp
}

const (
	fetchBackoffBase = 200 * time.Millisecond
	fetchBackoffMax  = 5 * time.Second
)

// Consume fetches records until ctx is canceled. Offsets are committed
// only after the handler succeeds, giving at-least-once delivery; a
// failed commit is retried implicitly on the next successful handle.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	c.log.Info("consumer started")

	var failures int
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("consumer stopped")
				return ctx.Err()
			}
			wait := fetchBackoff(failures)
			failures++
			if errors.Is(err, io.EOF) {
				c.log.Debug("fetch EOF; retry", zap.Duration("backoff", wait))
			} else {
				c.log.Warn("fetch failed; retry", zap.Error(err), zap.Duration("backoff", wait))
			}
			if !sleepCtx(ctx, wait) {
				c.log.Info("consumer stopped")
				return ctx.Err()
			}
			continue
		}
		failures = 0

		if err := c.handle(ctx, msg, h); err != nil {
			c.log.Error("handler error",
				zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				c.log.Info("consumer stopped")
				return ctx.Err()
			}
			c.log.Warn("commit failed; will retry later", zap.Error(err))
		}
	}
}

func fetchBackoff(failures int) time.Duration {
	if failures > 4 {
		return fetchBackoffMax
	}
	d := fetchBackoffBase << failures
	if d > fetchBackoffMax {
		return fetchBackoffMax
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// handle restores the producer's trace context from message headers so the
// delivery span joins the trace that enqueued the event.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message, h Handler) error {
	ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier(msg.Headers))

	tr := otel.Tracer("kafka.consumer")
	ctx, span := tr.Start(ctx, "kafka.consume "+c.cfg.Topic, trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(c.cfg.Topic),
			semconv.MessagingOperationReceive,
		),
	)
	defer span.End()

	return h(ctx, msg.Key, msg.Value)
}

func (c *Consumer) Close() error { return c.reader.Close() }

// BootstrapConsumer ensures the topic exists before the reader joins the
// group. Creation failures are logged by EnsureTopic and otherwise
// ignored; the broker may have auto-create enabled.
func BootstrapConsumer(ctx context.Context, cfg *ConsumerConfig, logger *zap.Logger) *Consumer {
	_ = EnsureTopic(ctx, cfg.Brokers, TopicSpec{
		Name:              cfg.Topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
		MaxWait:           5 * time.Second,
	}, logger)

	return NewConsumer(cfg)
}

package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"

	"github.com/pulsekeep/pulsekeep/internal/domain/events"
	"github.com/pulsekeep/pulsekeep/internal/domain/outbox"
	"github.com/pulsekeep/pulsekeep/internal/obs/retry"
	kafkax "github.com/pulsekeep/pulsekeep/internal/repository/kafka"
)

var (
	outboxHandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_handler_latency_seconds",
		Help:    "Latency of outbox handlers (publish, http, etc.)",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	outboxHandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_handler_errors_total",
		Help: "Errors in outbox handlers (after retries).",
	}, []string{"kind"})
)

// instrument wraps a kind handler with retries, a span and per-kind
// latency/error metrics.
func instrument(kind string, h outbox.KindHandler, pol retry.Policy) outbox.KindHandler {
	if pol.Name == "" {
		pol.Name = "outbox_" + kind
	}
	return func(ctx context.Context, data []byte) (err error) {
		ctx, span := otel.Tracer("outbox.handler").Start(ctx, "outbox.handle")
		start := time.Now()
		defer func() {
			outboxHandlerLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
			if err != nil {
				span.RecordError(err)
				outboxHandlerErrors.WithLabelValues(kind).Inc()
			}
			span.End()
		}()

		return retry.Do(ctx, func() error { return h(ctx, data) }, pol)
	}
}

// MakeGlobalOutboxHandler resolves outbox kinds to their publishers.
// Flip messages carry a serialized events.FlipEvent produced by the
// sentinel inside the flip transaction.
func MakeGlobalOutboxHandler(pub *kafkax.FlipEventsKafka, pol retry.Policy) outbox.GlobalHandler {
	publishFlip := func(ctx context.Context, data []byte) error {
		var ev events.FlipEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("unmarshal flip payload: %w", err)
		}
		return pub.PublishFlip(ctx, ev)
	}

	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		switch kind {
		case outbox.KindFlip:
			return instrument("flip", publishFlip, pol), nil
		default:
			return nil, fmt.Errorf("unsupported outbox kind: %d", kind)
		}
	}
}

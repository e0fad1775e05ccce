// Package notifier consumes status transitions from Kafka and fans
// them out to the check's alert channels.
package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/pulsekeep/pulsekeep/internal/domain/events"
	kafkax "github.com/pulsekeep/pulsekeep/internal/repository/kafka"
)

type Controller struct {
	Log *zap.Logger
	Sub *kafkax.Consumer
	UC  *Handler
}

func (c *Controller) Run(ctx context.Context) error {
	handler := kafkax.JSONHandler(
		func(ctx context.Context, _ []byte, ev *events.FlipEvent) error {
			if ev.CheckID <= 0 {
				c.Log.Warn("flip event: invalid check_id", zap.Int64("check_id", ev.CheckID))
				return nil
			}
			return c.UC.HandleFlip(ctx, ev)
		},
	)
	return c.Sub.Consume(ctx, handler)
}

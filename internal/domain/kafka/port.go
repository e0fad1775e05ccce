package kafka

import (
	"context"

	"github.com/pulsekeep/pulsekeep/internal/domain/events"
)

type FlipEvents interface {
	PublishFlip(ctx context.Context, ev events.FlipEvent) error
}

package kafka

import (
	"context"

	"github.com/pulsekeep/pulsekeep/internal/domain/events"
	"github.com/pulsekeep/pulsekeep/internal/domain/kafka"
)

type FlipEventsKafka struct {
	p *Producer
}

func NewFlipEventsKafka(p *Producer) *FlipEventsKafka { return &FlipEventsKafka{p: p} }

var _ kafka.FlipEvents = (*FlipEventsKafka)(nil)

func (e *FlipEventsKafka) PublishFlip(ctx context.Context, ev events.FlipEvent) error {
	return e.p.PublishJSON(ctx, KeyFromInt64(ev.CheckID), ev)
}

// Package outbox defines the transactional outbox contract. Rows are
// written in the same tx as the state change they announce and drained
// by a separate dispatcher, so an event is never lost to a crash
// between commit and publish.
package outbox

import (
	"context"
	"time"
)

type Status string

type Kind int

const (
	KindFlip Kind = 1
)

// Message is one enqueued event. The trace fields persist the W3C trace
// context of the producing request across the table hop.
type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Tracestate     string
	Traceparent    string
	Baggage        string
}

type Repository interface {
	// Enqueue is idempotent on key; a duplicate insert is a no-op.
	Enqueue(ctx context.Context, key string, kind Kind, data []byte) error

	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)

	MarkSuccess(ctx context.Context, keys []string) error
}

// KindHandler publishes one message body.
type KindHandler func(ctx context.Context, data []byte) error

// GlobalHandler maps a kind to its handler.
type GlobalHandler func(kind Kind) (KindHandler, error)

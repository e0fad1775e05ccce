package notification

import (
	"context"
	"time"

	"github.com/pulsekeep/pulsekeep/internal/domain/check"
)

// Notification records one delivery attempt to one channel. Error holds
// the transport failure text, or a placeholder while the send is in flight.
type Notification struct {
	ID          int64        `json:"id"`
	CheckID     int64        `json:"check_id"`
	ChannelID   int64        `json:"channel_id"`
	CheckStatus check.Status `json:"check_status"`
	CreatedAt   time.Time    `json:"created_at"`
	Error       string       `json:"error"`
}

type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Clock interface {
	Now() time.Time
}

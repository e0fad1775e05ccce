package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pulsekeep/pulsekeep/internal/domain/check"
	"github.com/pulsekeep/pulsekeep/internal/domain/flip"
)

// FlipEvent is the wire envelope published for every status transition.
// It carries enough for consumers to act without a read-back.
type FlipEvent struct {
	FlipID    int64        `json:"flip_id"`
	CheckID   int64        `json:"check_id"`
	CheckCode uuid.UUID    `json:"check_code"`
	CheckName string       `json:"check_name"`
	OldStatus check.Status `json:"old_status"`
	NewStatus check.Status `json:"new_status"`
	CreatedAt time.Time    `json:"created_at"`
}

// FromFlip builds the event for a freshly inserted flip of c.
func FromFlip(c *check.Check, f *flip.Flip) FlipEvent {
	return FlipEvent{
		FlipID:    f.ID,
		CheckID:   c.ID,
		CheckCode: c.Code,
		CheckName: c.Name,
		OldStatus: f.OldStatus,
		NewStatus: f.NewStatus,
		CreatedAt: f.CreatedAt,
	}
}

// Key is the outbox idempotency key: one alert per check per instant.
func (e FlipEvent) Key() string {
	return fmt.Sprintf("flip:%d:%d", e.CheckID, e.CreatedAt.UnixNano())
}

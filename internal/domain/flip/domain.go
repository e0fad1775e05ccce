package flip

import (
	"time"

	"github.com/pulsekeep/pulsekeep/internal/domain/check"
)

type Flip struct {
	ID        int64        `json:"id"`
	CheckID   int64        `json:"check_id"`
	CreatedAt time.Time    `json:"created_at"`
	Processed *time.Time   `json:"processed"`
	OldStatus check.Status `json:"old_status"`
	NewStatus check.Status `json:"new_status"`
}

// Actionable reports whether the transition should notify anyone.
// Coming up from new or paused is routine, not an alert.
func (f *Flip) Actionable() bool {
	if f.NewStatus == check.StatusUp {
		if f.OldStatus == check.StatusNew || f.OldStatus == check.StatusPaused {
			return false
		}
	}
	return true
}

package project

import (
	"time"

	"github.com/google/uuid"
)

// DefaultPingLogLimit is the per-check event retention for projects
// without a paid plan. Paid plans raise it; the log view truncates at it.
const DefaultPingLogLimit = 100

type Project struct {
	ID           int64     `json:"id"`
	Code         uuid.UUID `json:"code"`
	Name         string    `json:"name"`
	KeyID        string    `json:"key_id"`
	KeyHash      string    `json:"-"`
	PingLogLimit int       `json:"ping_log_limit"`
	CreatedAt    time.Time `json:"created_at"`
}

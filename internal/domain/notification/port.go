package notification

import (
	"context"
	"time"
)

type Repo interface {
	Create(ctx context.Context, n *Notification) error
	UpdateError(ctx context.Context, id int64, errText string) error
	ListByCheck(ctx context.Context, checkID int64, limit int) ([]*Notification, error)
	DeleteOlderThan(ctx context.Context, checkID int64, cutoff time.Time) error
}

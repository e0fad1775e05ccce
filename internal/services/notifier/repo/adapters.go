package repo

import (
	"context"
	"time"

	"github.com/pulsekeep/pulsekeep/internal/domain/channel"
	"github.com/pulsekeep/pulsekeep/internal/domain/check"
	"github.com/pulsekeep/pulsekeep/internal/domain/flip"
	"github.com/pulsekeep/pulsekeep/internal/domain/notification"
)

type CheckReader struct{ R check.Repo }
type ChannelRepo struct{ R channel.Repo }
type NotificationRepo struct{ R notification.Repo }
type FlipRepo struct{ R flip.Repo }

func (a CheckReader) GetByID(ctx context.Context, id int64) (*check.Check, error) {
	c, err := a.R.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &check.Check{ID: c.ID, Code: c.Code, Name: c.Name, Status: c.Status}, nil
}

func (a ChannelRepo) ListByCheck(ctx context.Context, checkID int64) ([]*channel.Channel, error) {
	return a.R.ListByCheck(ctx, checkID)
}

func (a ChannelRepo) Update(ctx context.Context, c *channel.Channel) error {
	return a.R.Update(ctx, c)
}

func (a NotificationRepo) Create(ctx context.Context, n *notification.Notification) error {
	return a.R.Create(ctx, n)
}

func (a NotificationRepo) UpdateError(ctx context.Context, id int64, errText string) error {
	return a.R.UpdateError(ctx, id, errText)
}

func (a FlipRepo) GetByID(ctx context.Context, id int64) (*flip.Flip, error) {
	return a.R.GetByID(ctx, id)
}

func (a FlipRepo) MarkProcessed(ctx context.Context, id int64, at time.Time) error {
	return a.R.MarkProcessed(ctx, id, at)
}

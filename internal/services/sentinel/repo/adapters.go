package repo

import (
	"context"
	"time"

	"github.com/pulsekeep/pulsekeep/internal/domain/check"
	"github.com/pulsekeep/pulsekeep/internal/domain/flip"
	"github.com/pulsekeep/pulsekeep/internal/domain/outbox"
)

type Checks struct{ R check.Repo }
type Flips struct{ R flip.Repo }
type Outbox struct{ R outbox.Repository }

func (a Checks) FetchOverdue(ctx context.Context, now time.Time, limit int) ([]*check.Check, error) {
	return a.R.FetchOverdue(ctx, now, limit)
}

func (a Checks) Update(ctx context.Context, c *check.Check) error {
	return a.R.Update(ctx, c)
}

func (a Flips) Insert(ctx context.Context, f *flip.Flip) error {
	return a.R.Insert(ctx, f)
}

func (a Outbox) Enqueue(ctx context.Context, key string, kind outbox.Kind, data []byte) error {
	return a.R.Enqueue(ctx, key, kind, data)
}

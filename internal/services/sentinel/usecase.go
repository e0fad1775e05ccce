// Package sentinel watches check deadlines: anything still up past its
// alert_after instant flips to down, with the alert queued in the same
// transaction.
package sentinel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pulsekeep/pulsekeep/internal/domain/check"
	"github.com/pulsekeep/pulsekeep/internal/domain/events"
	"github.com/pulsekeep/pulsekeep/internal/domain/flip"
	"github.com/pulsekeep/pulsekeep/internal/domain/notification"
	"github.com/pulsekeep/pulsekeep/internal/domain/outbox"
	"github.com/pulsekeep/pulsekeep/internal/repository/postgres"
	"github.com/pulsekeep/pulsekeep/internal/services/sentinel/repo"
)

type Usecase struct {
	Checks repo.Checks
	Flips  repo.Flips
	Box    repo.Outbox
	Tx     postgres.Transactor
	Clock  notification.Clock
}

func NewUC(checks repo.Checks, flips repo.Flips, box repo.Outbox, tx postgres.Transactor, clock notification.Clock) *Usecase {
	return &Usecase{Checks: checks, Flips: flips, Box: box, Tx: tx, Clock: clock}
}

// Tick claims one batch of overdue checks and flips them down. The whole
// batch commits or rolls back together; the row locks from the claim hold
// until commit, so concurrent sentinels never double-flip.
func (u *Usecase) Tick(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	tr := otel.Tracer("sentinel.uc")
	ctx, span := tr.Start(ctx, "sentinel.tick",
		trace.WithAttributes(attribute.Int("batch.limit", limit)),
	)
	defer span.End()

	flipped := 0
	err := u.Tx.WithTx(ctx, func(ctx context.Context) error {
		now := u.Clock.Now()
		due, err := u.Checks.FetchOverdue(ctx, now, limit)
		if err != nil {
			return fmt.Errorf("fetch overdue: %w", err)
		}
		span.SetAttributes(attribute.Int("batch.fetched", len(due)))

		for _, c := range due {
			if err := u.flipDown(ctx, c, now); err != nil {
				span.RecordError(err)
				return fmt.Errorf("check %d: %w", c.ID, err)
			}
			flipped++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	span.SetAttributes(attribute.Int("batch.flipped", flipped))
	return flipped, nil
}

func (u *Usecase) flipDown(ctx context.Context, c *check.Check, now time.Time) error {
	f := &flip.Flip{
		CheckID:   c.ID,
		CreatedAt: now,
		OldStatus: c.Status,
		NewStatus: check.StatusDown,
	}
	if err := u.Flips.Insert(ctx, f); err != nil {
		return fmt.Errorf("insert flip: %w", err)
	}

	c.Status = check.StatusDown
	c.AlertAfter = nil
	if err := u.Checks.Update(ctx, c); err != nil {
		return fmt.Errorf("update check: %w", err)
	}

	ev := events.FromFlip(c, f)
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal flip event: %w", err)
	}
	if err := u.Box.Enqueue(ctx, ev.Key(), outbox.KindFlip, data); err != nil {
		return fmt.Errorf("outbox enqueue: %w", err)
	}
	return nil
}

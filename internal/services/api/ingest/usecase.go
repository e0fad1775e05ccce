package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulsekeep/pulsekeep/internal/domain/check"
	"github.com/pulsekeep/pulsekeep/internal/domain/events"
	"github.com/pulsekeep/pulsekeep/internal/domain/flip"
	"github.com/pulsekeep/pulsekeep/internal/domain/notification"
	"github.com/pulsekeep/pulsekeep/internal/domain/outbox"
	"github.com/pulsekeep/pulsekeep/internal/domain/ping"
	"github.com/pulsekeep/pulsekeep/internal/domain/project"
	"github.com/pulsekeep/pulsekeep/internal/repository/postgres"
)

const uaLimit = 200

// pruneEvery is how often a check's history gets trimmed, counted in pings.
const pruneEvery = 100

// ObjectStore is the slice of the body archive the ingest path needs.
// A nil store keeps every body inline.
type ObjectStore interface {
	Put(ctx context.Context, code uuid.UUID, n int64, body []byte) error
	RemoveUpTo(ctx context.Context, code uuid.UUID, uptoN int64) error
}

// Meta is what the transport layer observed about the request.
type Meta struct {
	Scheme     string
	Method     string
	RemoteAddr string
	UserAgent  string
	Body       []byte
}

// Result reports a registered ping together with the check state it left
// behind, so the transport can fan out stream updates.
type Result struct {
	Check *check.Check
	Ping  *ping.Ping
}

type Usecase struct {
	Checks     check.Repo
	Pings      ping.Repo
	Flips      flip.Repo
	Notifs     notification.Repo
	Projects   project.Repo
	Outbox     outbox.Repository
	Transactor postgres.Transactor
	Objects    ObjectStore
	Clock      notification.Clock
	Log        *zap.Logger
}

// HandlePing registers one inbound signal. The check mutation, the flip row
// and the outbox alert all commit in a single transaction; body archiving and
// pruning run after commit so storage latency never blocks the sender.
func (u *Usecase) HandlePing(ctx context.Context, code uuid.UUID, kind ping.Kind, exitStatus *int, meta Meta) (*Result, error) {
	var (
		chk *check.Check
		p   *ping.Ping
	)

	err := u.Transactor.WithTx(ctx, func(ctx context.Context) error {
		var err error
		chk, err = u.Checks.GetByCode(ctx, code)
		if err != nil {
			return err
		}

		now := u.Clock.Now()
		act := kind
		if chk.Status == check.StatusPaused && chk.ManualResume {
			act = ping.KindIgn
		}
		if !chk.AcceptsMethod(meta.Method) {
			act = ping.KindIgn
		}

		var (
			flipped *flip.Flip
			delta   *time.Duration
		)
		switch act {
		case ping.KindStart:
			chk.LastStart = &now

		case ping.KindIgn:
			// Recorded but never moves the lifecycle.

		default: // success or fail closes a run
			chk.LastPing = &now
			if chk.LastStart != nil {
				d := now.Sub(*chk.LastStart)
				chk.LastDuration = &d
				chk.LastStart = nil
				delta = &d
			} else {
				chk.LastDuration = nil
			}

			newStatus := check.StatusUp
			if act == ping.KindFail {
				newStatus = check.StatusDown
			}
			if chk.Status != newStatus {
				flipped = &flip.Flip{
					CheckID:   chk.ID,
					CreatedAt: now,
					OldStatus: chk.Status,
					NewStatus: newStatus,
				}
				if err := u.Flips.Insert(ctx, flipped); err != nil {
					return fmt.Errorf("insert flip: %w", err)
				}
				chk.Status = newStatus
			}
		}

		chk.AlertAfter = chk.GoingDownAfter()
		chk.NPings++
		if err := u.Checks.Update(ctx, chk); err != nil {
			return fmt.Errorf("update check: %w", err)
		}

		p = &ping.Ping{
			CheckID:    chk.ID,
			N:          chk.NPings,
			CreatedAt:  now,
			Kind:       act,
			Scheme:     meta.Scheme,
			Method:     meta.Method,
			RemoteAddr: meta.RemoteAddr,
			UserAgent:  truncate(meta.UserAgent, uaLimit),
			ExitStatus: exitStatus,
			Delta:      delta,
		}
		if len(meta.Body) > ping.InlineBodyLimit && u.Objects != nil {
			p.ObjectSize = int64(len(meta.Body))
		} else {
			p.BodyRaw = meta.Body
		}
		if err := u.Pings.Insert(ctx, p); err != nil {
			return fmt.Errorf("insert ping: %w", err)
		}

		if flipped != nil {
			ev := events.FromFlip(chk, flipped)
			data, err := json.Marshal(ev)
			if err != nil {
				return fmt.Errorf("marshal flip event: %w", err)
			}
			if err := u.Outbox.Enqueue(ctx, ev.Key(), outbox.KindFlip, data); err != nil {
				return fmt.Errorf("outbox enqueue: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if p.ObjectSize > 0 {
		// The row already committed with the size; a failed put only loses
		// the preview text, the timeline falls back to "N byte body".
		if err := u.Objects.Put(ctx, chk.Code, p.N, meta.Body); err != nil {
			u.Log.Warn("body archive failed",
				zap.String("check", chk.Code.String()), zap.Int64("n", p.N), zap.Error(err))
		}
	}

	if chk.NPings%pruneEvery == 0 {
		u.prune(ctx, chk)
	}

	return &Result{Check: chk, Ping: p}, nil
}

// prune trims history beyond the project's ping-log limit: stored bodies
// (asynchronously), ping rows, then notifications older than the earliest
// ping that survived.
func (u *Usecase) prune(ctx context.Context, chk *check.Check) {
	proj, err := u.Projects.GetByID(ctx, chk.ProjectID)
	if err != nil {
		u.Log.Warn("prune: load project", zap.Int64("check_id", chk.ID), zap.Error(err))
		return
	}

	threshold := chk.NPings - int64(proj.PingLogLimit)
	if threshold <= 0 {
		return
	}

	if u.Objects != nil {
		code := chk.Code
		go func() {
			octx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := u.Objects.RemoveUpTo(octx, code, threshold); err != nil {
				u.Log.Warn("prune: remove archived bodies", zap.String("check", code.String()), zap.Error(err))
			}
		}()
	}

	if err := u.Pings.DeleteUpToN(ctx, chk.ID, threshold); err != nil {
		u.Log.Warn("prune: delete pings", zap.Int64("check_id", chk.ID), zap.Error(err))
		return
	}

	earliest, err := u.Pings.EarliestCreated(ctx, chk.ID)
	if err != nil {
		if !errors.Is(err, postgres.ErrNotFound) {
			u.Log.Warn("prune: earliest ping", zap.Int64("check_id", chk.ID), zap.Error(err))
		}
		return
	}
	if err := u.Notifs.DeleteOlderThan(ctx, chk.ID, earliest); err != nil {
		u.Log.Warn("prune: delete notifications", zap.Int64("check_id", chk.ID), zap.Error(err))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

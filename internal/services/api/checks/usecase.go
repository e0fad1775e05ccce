package checks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pulsekeep/pulsekeep/internal/domain/channel"
	"github.com/pulsekeep/pulsekeep/internal/domain/check"
	"github.com/pulsekeep/pulsekeep/internal/domain/flip"
	"github.com/pulsekeep/pulsekeep/internal/domain/notification"
	"github.com/pulsekeep/pulsekeep/internal/domain/ping"
	"github.com/pulsekeep/pulsekeep/internal/domain/project"
	"github.com/pulsekeep/pulsekeep/internal/repository/objectstore"
	"github.com/pulsekeep/pulsekeep/internal/repository/postgres"
	"github.com/pulsekeep/pulsekeep/internal/stats"
	"github.com/pulsekeep/pulsekeep/internal/timeline"
)

var (
	ErrBadParam  = errors.New("invalid parameter")
	ErrNotPaused = errors.New("check is not paused")

	// ErrLogUnavailable means the event store could not serve a snapshot.
	// The timeline is all-or-nothing, a partial page is never rendered.
	ErrLogUnavailable = errors.New("log unavailable")
)

const (
	minPeriod = time.Minute
	maxPeriod = 365 * 24 * time.Hour

	defaultTimelineLimit = 100
	defaultFlipWindow    = 3600 // seconds
	defaultMonths        = 3
	maxMonths            = 24
)

// Params carries a create or update request. Nil fields keep their
// current (or default) value.
type Params struct {
	Name         *string `json:"name"`
	Slug         *string `json:"slug"`
	Tags         *string `json:"tags"`
	Desc         *string `json:"desc"`
	Kind         *string `json:"kind"`
	Timeout      *int64  `json:"timeout"` // seconds
	Grace        *int64  `json:"grace"`   // seconds
	Schedule     *string `json:"schedule"`
	TZ           *string `json:"tz"`
	Methods      *string `json:"methods"`
	ManualResume *bool   `json:"manual_resume"`
	Channels     []int64 `json:"channels"`
}

// BodyStore hydrates ping bodies that were archived out of the row.
// Nil means archiving is off and bodies are always inline.
type BodyStore interface {
	Get(ctx context.Context, code uuid.UUID, n int64) ([]byte, error)
}

type Usecase struct {
	Checks     check.Repo
	Pings      ping.Repo
	Flips      flip.Repo
	Channels   channel.Repo
	Notifs     notification.Repo
	Objects    BodyStore
	Transactor postgres.Transactor
	Clock      notification.Clock
}

// load resolves a code within the caller's project. Checks of other
// projects are indistinguishable from absent ones.
func (u *Usecase) load(ctx context.Context, proj *project.Project, code uuid.UUID) (*check.Check, error) {
	chk, err := u.Checks.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if chk.ProjectID != proj.ID {
		return nil, postgres.ErrNotFound
	}
	return chk, nil
}

func (u *Usecase) Get(ctx context.Context, proj *project.Project, code uuid.UUID) (*check.Check, error) {
	return u.load(ctx, proj, code)
}

// List returns the project's checks, optionally narrowed to those carrying
// every requested tag.
func (u *Usecase) List(ctx context.Context, proj *project.Project, tags []string) ([]*check.Check, error) {
	list, err := u.Checks.ListByProject(ctx, proj.ID)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return list, nil
	}
	out := make([]*check.Check, 0, len(list))
	for _, c := range list {
		if c.MatchesTags(tags) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (u *Usecase) Create(ctx context.Context, proj *project.Project, p Params) (*check.Check, error) {
	chk := &check.Check{
		ProjectID: proj.ID,
		Kind:      check.KindSimple,
		Timeout:   check.DefaultTimeout,
		Grace:     check.DefaultGrace,
		Schedule:  "* * * * *",
		TZ:        "UTC",
		Status:    check.StatusNew,
	}
	if err := apply(chk, p); err != nil {
		return nil, err
	}

	err := u.Transactor.WithTx(ctx, func(ctx context.Context) error {
		if err := u.Checks.Create(ctx, chk); err != nil {
			return err
		}
		return u.assign(ctx, proj, chk, p.Channels)
	})
	if err != nil {
		return nil, err
	}
	return chk, nil
}

func (u *Usecase) Update(ctx context.Context, proj *project.Project, code uuid.UUID, p Params) (*check.Check, error) {
	var chk *check.Check
	err := u.Transactor.WithTx(ctx, func(ctx context.Context) error {
		var err error
		chk, err = u.load(ctx, proj, code)
		if err != nil {
			return err
		}
		if err := apply(chk, p); err != nil {
			return err
		}
		if err := u.Checks.Update(ctx, chk); err != nil {
			return err
		}
		return u.assign(ctx, proj, chk, p.Channels)
	})
	if err != nil {
		return nil, err
	}
	return chk, nil
}

func (u *Usecase) assign(ctx context.Context, proj *project.Project, chk *check.Check, channels []int64) error {
	for _, id := range channels {
		ch, err := u.Channels.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, postgres.ErrNotFound) {
				return fmt.Errorf("%w: channel %d", ErrBadParam, id)
			}
			return err
		}
		if ch.ProjectID != proj.ID {
			return fmt.Errorf("%w: channel %d", ErrBadParam, id)
		}
		if err := u.Channels.Assign(ctx, chk.ID, id); err != nil {
			return err
		}
	}
	return nil
}

// apply folds request params into the check and validates the result.
func apply(chk *check.Check, p Params) error {
	if p.Name != nil {
		chk.Name = *p.Name
	}
	if p.Slug != nil {
		chk.Slug = *p.Slug
	}
	if p.Tags != nil {
		chk.Tags = *p.Tags
	}
	if p.Desc != nil {
		chk.Desc = *p.Desc
	}
	if p.Kind != nil {
		k := check.Kind(*p.Kind)
		if k != check.KindSimple && k != check.KindCron {
			return fmt.Errorf("%w: kind %q", ErrBadParam, *p.Kind)
		}
		chk.Kind = k
	}
	if p.Timeout != nil {
		chk.Timeout = time.Duration(*p.Timeout) * time.Second
	}
	if p.Grace != nil {
		chk.Grace = time.Duration(*p.Grace) * time.Second
	}
	if p.Schedule != nil {
		chk.Schedule = *p.Schedule
	}
	if p.TZ != nil {
		chk.TZ = *p.TZ
	}
	if p.Methods != nil {
		if *p.Methods != "" && *p.Methods != "POST" {
			return fmt.Errorf("%w: methods %q", ErrBadParam, *p.Methods)
		}
		chk.Methods = *p.Methods
	}
	if p.ManualResume != nil {
		chk.ManualResume = *p.ManualResume
	}

	if chk.Timeout < minPeriod || chk.Timeout > maxPeriod {
		return fmt.Errorf("%w: timeout out of range", ErrBadParam)
	}
	if chk.Grace < minPeriod || chk.Grace > maxPeriod {
		return fmt.Errorf("%w: grace out of range", ErrBadParam)
	}
	if chk.Kind == check.KindCron {
		if err := check.ValidateSchedule(chk.Schedule, chk.TZ); err != nil {
			return fmt.Errorf("%w: %v", ErrBadParam, err)
		}
	}
	return nil
}

func (u *Usecase) Delete(ctx context.Context, proj *project.Project, code uuid.UUID) error {
	chk, err := u.load(ctx, proj, code)
	if err != nil {
		return err
	}
	return u.Checks.Delete(ctx, chk.ID)
}

// Pause stops deadline tracking. Pings keep being recorded; with
// ManualResume set they no longer move the check out of paused.
func (u *Usecase) Pause(ctx context.Context, proj *project.Project, code uuid.UUID) (*check.Check, error) {
	var chk *check.Check
	err := u.Transactor.WithTx(ctx, func(ctx context.Context) error {
		var err error
		chk, err = u.load(ctx, proj, code)
		if err != nil {
			return err
		}
		chk.Status = check.StatusPaused
		chk.AlertAfter = nil
		return u.Checks.Update(ctx, chk)
	})
	if err != nil {
		return nil, err
	}
	return chk, nil
}

// Resume puts a paused check back to new, forgetting the ping history
// cursor fields so the next ping starts a fresh lifecycle.
func (u *Usecase) Resume(ctx context.Context, proj *project.Project, code uuid.UUID) (*check.Check, error) {
	var chk *check.Check
	err := u.Transactor.WithTx(ctx, func(ctx context.Context) error {
		var err error
		chk, err = u.load(ctx, proj, code)
		if err != nil {
			return err
		}
		if chk.Status != check.StatusPaused {
			return ErrNotPaused
		}
		chk.Status = check.StatusNew
		chk.LastPing = nil
		chk.LastStart = nil
		chk.LastDuration = nil
		chk.AlertAfter = nil
		return u.Checks.Update(ctx, chk)
	})
	if err != nil {
		return nil, err
	}
	return chk, nil
}

// Timeline builds the display log for one check. The snapshot is fetched
// one past the limit so run pairing can see a start that fell off the page.
func (u *Usecase) Timeline(ctx context.Context, proj *project.Project, code uuid.UUID, limit int) (*timeline.Timeline, error) {
	chk, err := u.load(ctx, proj, code)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit, proj)

	pings, err := u.Pings.ListByCheck(ctx, chk.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLogUnavailable, err)
	}

	since := chk.CreatedAt
	if len(pings) > limit {
		since = pings[len(pings)-1].CreatedAt
	}
	flips, err := u.Flips.ListByCheck(ctx, chk.ID, since)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLogUnavailable, err)
	}

	now := u.Clock.Now()
	return timeline.Build(timeline.Input{
		Events:  pings,
		Windows: windows(chk, flips, now),
		Limit:   limit,
		Now:     now,
	})
}

// windows turns status history into marker observations: each flip is one
// observation of its new status, and a check currently in its grace period
// contributes the instant the signal became overdue.
func windows(chk *check.Check, flips []*flip.Flip, now time.Time) []timeline.Window {
	out := make([]timeline.Window, 0, len(flips)+1)
	for _, f := range flips {
		out = append(out, timeline.Window{CreatedAt: f.CreatedAt, Status: f.NewStatus})
	}
	if chk.DisplayStatus(now, true) == check.StatusGrace {
		if gs := chk.GraceStart(true); gs != nil {
			out = append(out, timeline.Window{CreatedAt: *gs, Status: check.StatusGrace})
		}
	}
	return out
}

func clampLimit(limit int, proj *project.Project) int {
	if limit <= 0 {
		limit = defaultTimelineLimit
	}
	if limit > proj.PingLogLimit {
		limit = proj.PingLogLimit
	}
	return limit
}

func (u *Usecase) ListPings(ctx context.Context, proj *project.Project, code uuid.UUID, limit int) ([]*ping.Ping, error) {
	chk, err := u.load(ctx, proj, code)
	if err != nil {
		return nil, err
	}
	return u.Pings.ListByCheck(ctx, chk.ID, clampLimit(limit, proj))
}

// PingBody returns the raw payload of one ping, fetching it from the
// archive when it was stored out of the row.
func (u *Usecase) PingBody(ctx context.Context, proj *project.Project, code uuid.UUID, n int64) ([]byte, error) {
	chk, err := u.load(ctx, proj, code)
	if err != nil {
		return nil, err
	}
	p, err := u.Pings.GetByN(ctx, chk.ID, n)
	if err != nil {
		return nil, err
	}
	if p.ObjectSize > 0 && u.Objects != nil {
		body, err := u.Objects.Get(ctx, chk.Code, p.N)
		if err != nil {
			if errors.Is(err, objectstore.ErrNotFound) {
				return nil, postgres.ErrNotFound
			}
			return nil, fmt.Errorf("%w: %w", ErrLogUnavailable, err)
		}
		return body, nil
	}
	if p.Body != "" {
		return []byte(p.Body), nil
	}
	return p.BodyRaw, nil
}

func (u *Usecase) FlipsSince(ctx context.Context, proj *project.Project, code uuid.UUID, seconds int) ([]*flip.Flip, error) {
	chk, err := u.load(ctx, proj, code)
	if err != nil {
		return nil, err
	}
	if seconds <= 0 {
		seconds = defaultFlipWindow
	}
	since := u.Clock.Now().Add(-time.Duration(seconds) * time.Second)
	return u.Flips.ListByCheck(ctx, chk.ID, since)
}

// Downtimes summarizes outages per calendar month in the check's timezone.
func (u *Usecase) Downtimes(ctx context.Context, proj *project.Project, code uuid.UUID, months int) ([]stats.Downtime, error) {
	chk, err := u.load(ctx, proj, code)
	if err != nil {
		return nil, err
	}
	if months <= 0 {
		months = defaultMonths
	}
	if months > maxMonths {
		months = maxMonths
	}
	loc := time.UTC
	if chk.TZ != "" {
		if l, err := time.LoadLocation(chk.TZ); err == nil {
			loc = l
		}
	}

	now := u.Clock.Now()
	since := stats.MonthBoundaries(now, months, loc)[0]
	flips, err := u.Flips.ListByCheck(ctx, chk.ID, since)
	if err != nil {
		return nil, err
	}
	return stats.Downtimes(chk, flips, now, months, loc), nil
}

func (u *Usecase) ChannelsOf(ctx context.Context, proj *project.Project, code uuid.UUID) ([]*channel.Channel, error) {
	chk, err := u.load(ctx, proj, code)
	if err != nil {
		return nil, err
	}
	return u.Channels.ListByCheck(ctx, chk.ID)
}

// Notifications lists recent delivery attempts for the check, newest first.
func (u *Usecase) Notifications(ctx context.Context, proj *project.Project, code uuid.UUID, limit int) ([]*notification.Notification, error) {
	chk, err := u.load(ctx, proj, code)
	if err != nil {
		return nil, err
	}
	return u.Notifs.ListByCheck(ctx, chk.ID, clampLimit(limit, proj))
}

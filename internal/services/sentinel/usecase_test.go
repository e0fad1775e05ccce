package sentinel

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pulsekeep/pulsekeep/internal/domain/check"
	"github.com/pulsekeep/pulsekeep/internal/domain/events"
	"github.com/pulsekeep/pulsekeep/internal/domain/flip"
	"github.com/pulsekeep/pulsekeep/internal/domain/outbox"
	"github.com/pulsekeep/pulsekeep/internal/services/sentinel/repo"
)

type fakeChecks struct {
	check.Repo
	overdue []*check.Check
	updated []*check.Check
}

func (f *fakeChecks) FetchOverdue(_ context.Context, _ time.Time, limit int) ([]*check.Check, error) {
	if len(f.overdue) > limit {
		return f.overdue[:limit], nil
	}
	return f.overdue, nil
}

func (f *fakeChecks) Update(_ context.Context, c *check.Check) error {
	f.updated = append(f.updated, c)
	return nil
}

type fakeFlips struct {
	flip.Repo
	rows []*flip.Flip
	err  error
}

func (f *fakeFlips) Insert(_ context.Context, fl *flip.Flip) error {
	if f.err != nil {
		return f.err
	}
	fl.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, fl)
	return nil
}

type fakeBox struct {
	keys []string
	data [][]byte
}

func (f *fakeBox) Enqueue(_ context.Context, key string, _ outbox.Kind, data []byte) error {
	f.keys = append(f.keys, key)
	f.data = append(f.data, data)
	return nil
}

func (f *fakeBox) PickBatch(context.Context, int, time.Duration) ([]outbox.Message, error) {
	return nil, nil
}

func (f *fakeBox) MarkSuccess(context.Context, []string) error { return nil }

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func overdueCheck(id int64) *check.Check {
	aa := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	return &check.Check{ID: id, Status: check.StatusUp, AlertAfter: &aa}
}

func TestTickFlipsOverdueChecks(t *testing.T) {
	fc := &fakeChecks{overdue: []*check.Check{overdueCheck(1), overdueCheck(2)}}
	ff := &fakeFlips{}
	fb := &fakeBox{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	uc := NewUC(repo.Checks{R: fc}, repo.Flips{R: ff}, repo.Outbox{R: fb}, passTx{}, fixedClock{t: now})

	n, err := uc.Tick(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.Len(t, fc.updated, 2)
	for _, c := range fc.updated {
		require.Equal(t, check.StatusDown, c.Status)
		require.Nil(t, c.AlertAfter)
	}

	require.Len(t, ff.rows, 2)
	require.Equal(t, check.StatusUp, ff.rows[0].OldStatus)
	require.Equal(t, check.StatusDown, ff.rows[0].NewStatus)
	require.Equal(t, now, ff.rows[0].CreatedAt)

	require.Len(t, fb.keys, 2)
	var ev events.FlipEvent
	require.NoError(t, json.Unmarshal(fb.data[0], &ev))
	require.Equal(t, int64(1), ev.CheckID)
	require.Equal(t, check.StatusDown, ev.NewStatus)
	require.Equal(t, ev.Key(), fb.keys[0])
}

func TestTickNothingOverdue(t *testing.T) {
	uc := NewUC(repo.Checks{R: &fakeChecks{}}, repo.Flips{R: &fakeFlips{}},
		repo.Outbox{R: &fakeBox{}}, passTx{}, fixedClock{t: time.Now()})

	n, err := uc.Tick(context.Background(), 10)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestTickRollsBackOnError(t *testing.T) {
	fc := &fakeChecks{overdue: []*check.Check{overdueCheck(1)}}
	ff := &fakeFlips{err: errors.New("insert failed")}
	uc := NewUC(repo.Checks{R: fc}, repo.Flips{R: ff}, repo.Outbox{R: &fakeBox{}},
		passTx{}, fixedClock{t: time.Now()})

	n, err := uc.Tick(context.Background(), 10)
	require.Error(t, err)
	require.Zero(t, n)
}

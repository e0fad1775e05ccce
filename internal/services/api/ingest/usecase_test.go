package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
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

type fakeChecks struct {
	check.Repo
	chk *check.Check
}

func (f *fakeChecks) GetByCode(_ context.Context, code uuid.UUID) (*check.Check, error) {
	if f.chk == nil || f.chk.Code != code {
		return nil, postgres.ErrNotFound
	}
	cp := *f.chk
	return &cp, nil
}

func (f *fakeChecks) Update(_ context.Context, c *check.Check) error {
	f.chk = c
	return nil
}

type fakeFlips struct {
	flip.Repo
	rows []*flip.Flip
}

func (f *fakeFlips) Insert(_ context.Context, fl *flip.Flip) error {
	fl.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, fl)
	return nil
}

type fakePings struct {
	ping.Repo
	rows     []*ping.Ping
	deleted  []int64
	earliest time.Time
}

func (f *fakePings) Insert(_ context.Context, p *ping.Ping) error {
	f.rows = append(f.rows, p)
	return nil
}

func (f *fakePings) DeleteUpToN(_ context.Context, _ int64, n int64) error {
	f.deleted = append(f.deleted, n)
	return nil
}

func (f *fakePings) EarliestCreated(_ context.Context, _ int64) (time.Time, error) {
	if f.earliest.IsZero() {
		return time.Time{}, postgres.ErrNotFound
	}
	return f.earliest, nil
}

type fakeNotifs struct {
	notification.Repo
	cutoffs []time.Time
}

func (f *fakeNotifs) DeleteOlderThan(_ context.Context, _ int64, cutoff time.Time) error {
	f.cutoffs = append(f.cutoffs, cutoff)
	return nil
}

type fakeProjects struct {
	project.Repo
	proj *project.Project
}

func (f *fakeProjects) GetByID(_ context.Context, _ int64) (*project.Project, error) {
	return f.proj, nil
}

type fakeOutbox struct {
	keys  []string
	kinds []outbox.Kind
	data  [][]byte
}

func (f *fakeOutbox) Enqueue(_ context.Context, key string, kind outbox.Kind, data []byte) error {
	f.keys = append(f.keys, key)
	f.kinds = append(f.kinds, kind)
	f.data = append(f.data, data)
	return nil
}

func (f *fakeOutbox) PickBatch(context.Context, int, time.Duration) ([]outbox.Message, error) {
	return nil, nil
}

func (f *fakeOutbox) MarkSuccess(context.Context, []string) error { return nil }

type fakeStore struct {
	mu      sync.Mutex
	puts    map[string][]byte
	removed chan int64
}

func (f *fakeStore) Put(_ context.Context, code uuid.UUID, n int64, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.puts == nil {
		f.puts = map[string][]byte{}
	}
	f.puts[fmt.Sprintf("%s/%d", code, n)] = body
	return nil
}

func (f *fakeStore) RemoveUpTo(_ context.Context, _ uuid.UUID, uptoN int64) error {
	if f.removed != nil {
		f.removed <- uptoN
	}
	return nil
}

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fixture struct {
	uc     *Usecase
	checks *fakeChecks
	pings  *fakePings
	flips  *fakeFlips
	notifs *fakeNotifs
	box    *fakeOutbox
	store  *fakeStore
	now    time.Time
}

func newFixture(chk *check.Check) *fixture {
	fx := &fixture{
		checks: &fakeChecks{chk: chk},
		pings:  &fakePings{},
		flips:  &fakeFlips{},
		notifs: &fakeNotifs{},
		box:    &fakeOutbox{},
		store:  &fakeStore{},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	fx.uc = &Usecase{
		Checks:     fx.checks,
		Pings:      fx.pings,
		Flips:      fx.flips,
		Notifs:     fx.notifs,
		Projects:   &fakeProjects{proj: &project.Project{ID: 1, PingLogLimit: 100}},
		Outbox:     fx.box,
		Transactor: passTx{},
		Objects:    fx.store,
		Clock:      fixedClock{t: fx.now},
		Log:        zap.NewNop(),
	}
	return fx
}

func simpleCheck() *check.Check {
	return &check.Check{
		ID:        7,
		Code:      uuid.New(),
		ProjectID: 1,
		Kind:      check.KindSimple,
		Timeout:   time.Hour,
		Grace:     15 * time.Minute,
		Status:    check.StatusNew,
	}
}

func TestHandlePingBringsNewCheckUp(t *testing.T) {
	chk := simpleCheck()
	fx := newFixture(chk)

	res, err := fx.uc.HandlePing(context.Background(), chk.Code, ping.KindSuccess, nil,
		Meta{Scheme: "https", Method: "POST", RemoteAddr: "10.0.0.1", Body: []byte("ok")})
	require.NoError(t, err)

	require.Equal(t, check.StatusUp, res.Check.Status)
	require.Equal(t, int64(1), res.Check.NPings)
	require.NotNil(t, res.Check.LastPing)
	require.Equal(t, fx.now, *res.Check.LastPing)
	require.NotNil(t, res.Check.AlertAfter)
	require.Equal(t, fx.now.Add(time.Hour+15*time.Minute), *res.Check.AlertAfter)

	require.Len(t, fx.flips.rows, 1)
	require.Equal(t, check.StatusNew, fx.flips.rows[0].OldStatus)
	require.Equal(t, check.StatusUp, fx.flips.rows[0].NewStatus)

	require.Len(t, fx.box.keys, 1)
	require.Equal(t, outbox.KindFlip, fx.box.kinds[0])
	var ev events.FlipEvent
	require.NoError(t, json.Unmarshal(fx.box.data[0], &ev))
	require.Equal(t, chk.ID, ev.CheckID)
	require.Equal(t, check.StatusUp, ev.NewStatus)
	require.Equal(t, int64(1), ev.FlipID)

	require.Len(t, fx.pings.rows, 1)
	p := fx.pings.rows[0]
	require.Equal(t, int64(1), p.N)
	require.Equal(t, ping.KindSuccess, p.Kind)
	require.Equal(t, []byte("ok"), p.BodyRaw)
	require.Zero(t, p.ObjectSize)
}

func TestHandlePingRepeatSuccessNoFlip(t *testing.T) {
	chk := simpleCheck()
	chk.Status = check.StatusUp
	fx := newFixture(chk)

	_, err := fx.uc.HandlePing(context.Background(), chk.Code, ping.KindSuccess, nil, Meta{Method: "GET"})
	require.NoError(t, err)

	require.Empty(t, fx.flips.rows)
	require.Empty(t, fx.box.keys)
}

func TestHandlePingFailFlipsDown(t *testing.T) {
	chk := simpleCheck()
	chk.Status = check.StatusUp
	fx := newFixture(chk)

	res, err := fx.uc.HandlePing(context.Background(), chk.Code, ping.KindFail, nil, Meta{Method: "POST"})
	require.NoError(t, err)

	require.Equal(t, check.StatusDown, res.Check.Status)
	require.Len(t, fx.flips.rows, 1)
	require.Equal(t, check.StatusUp, fx.flips.rows[0].OldStatus)
	require.Equal(t, check.StatusDown, fx.flips.rows[0].NewStatus)
	require.Len(t, fx.box.keys, 1)
}

func TestHandlePingStartOnlyMarksRun(t *testing.T) {
	chk := simpleCheck()
	chk.Status = check.StatusUp
	fx := newFixture(chk)

	res, err := fx.uc.HandlePing(context.Background(), chk.Code, ping.KindStart, nil, Meta{Method: "POST"})
	require.NoError(t, err)

	require.Equal(t, check.StatusUp, res.Check.Status)
	require.NotNil(t, res.Check.LastStart)
	require.Equal(t, fx.now, *res.Check.LastStart)
	require.Nil(t, res.Check.LastPing)
	require.Empty(t, fx.flips.rows)
	require.Equal(t, ping.KindStart, fx.pings.rows[0].Kind)
}

func TestHandlePingCompletionComputesDuration(t *testing.T) {
	chk := simpleCheck()
	chk.Status = check.StatusUp
	started := time.Date(2026, 3, 1, 11, 57, 30, 0, time.UTC)
	chk.LastStart = &started
	fx := newFixture(chk)

	res, err := fx.uc.HandlePing(context.Background(), chk.Code, ping.KindSuccess, nil, Meta{Method: "POST"})
	require.NoError(t, err)

	require.Nil(t, res.Check.LastStart)
	require.NotNil(t, res.Check.LastDuration)
	require.Equal(t, 2*time.Minute+30*time.Second, *res.Check.LastDuration)
	require.NotNil(t, res.Ping.Delta)
	require.Equal(t, 2*time.Minute+30*time.Second, *res.Ping.Delta)
}

func TestHandlePingCompletionWithoutStartClearsDuration(t *testing.T) {
	chk := simpleCheck()
	chk.Status = check.StatusUp
	stale := 5 * time.Minute
	chk.LastDuration = &stale
	fx := newFixture(chk)

	res, err := fx.uc.HandlePing(context.Background(), chk.Code, ping.KindSuccess, nil, Meta{Method: "POST"})
	require.NoError(t, err)
	require.Nil(t, res.Check.LastDuration)
}

func TestHandlePingPausedManualResumeIgnored(t *testing.T) {
	chk := simpleCheck()
	chk.Status = check.StatusPaused
	chk.ManualResume = true
	fx := newFixture(chk)

	res, err := fx.uc.HandlePing(context.Background(), chk.Code, ping.KindSuccess, nil, Meta{Method: "POST"})
	require.NoError(t, err)

	require.Equal(t, check.StatusPaused, res.Check.Status)
	require.Nil(t, res.Check.LastPing)
	require.Empty(t, fx.flips.rows)
	require.Equal(t, ping.KindIgn, fx.pings.rows[0].Kind)
	require.Equal(t, int64(1), res.Check.NPings)
}

func TestHandlePingFilteredMethodIgnored(t *testing.T) {
	chk := simpleCheck()
	chk.Status = check.StatusUp
	chk.Methods = "POST"
	fx := newFixture(chk)

	res, err := fx.uc.HandlePing(context.Background(), chk.Code, ping.KindSuccess, nil, Meta{Method: "GET"})
	require.NoError(t, err)

	require.Equal(t, ping.KindIgn, fx.pings.rows[0].Kind)
	require.Nil(t, res.Check.LastPing)
}

func TestHandlePingExitStatusStored(t *testing.T) {
	chk := simpleCheck()
	fx := newFixture(chk)

	es := 3
	_, err := fx.uc.HandlePing(context.Background(), chk.Code, ping.KindFail, &es, Meta{Method: "GET"})
	require.NoError(t, err)

	require.NotNil(t, fx.pings.rows[0].ExitStatus)
	require.Equal(t, 3, *fx.pings.rows[0].ExitStatus)
}

func TestHandlePingLargeBodyArchived(t *testing.T) {
	chk := simpleCheck()
	fx := newFixture(chk)

	body := []byte(strings.Repeat("x", ping.InlineBodyLimit+1))
	res, err := fx.uc.HandlePing(context.Background(), chk.Code, ping.KindSuccess, nil,
		Meta{Method: "POST", Body: body})
	require.NoError(t, err)

	p := res.Ping
	require.Empty(t, p.BodyRaw)
	require.Equal(t, int64(len(body)), p.ObjectSize)

	fx.store.mu.Lock()
	defer fx.store.mu.Unlock()
	require.Equal(t, body, fx.store.puts[fmt.Sprintf("%s/%d", chk.Code, p.N)])
}

func TestHandlePingLargeBodyInlineWithoutStore(t *testing.T) {
	chk := simpleCheck()
	fx := newFixture(chk)
	fx.uc.Objects = nil

	body := []byte(strings.Repeat("x", ping.InlineBodyLimit+1))
	res, err := fx.uc.HandlePing(context.Background(), chk.Code, ping.KindSuccess, nil,
		Meta{Method: "POST", Body: body})
	require.NoError(t, err)

	require.Equal(t, body, res.Ping.BodyRaw)
	require.Zero(t, res.Ping.ObjectSize)
}

func TestHandlePingTruncatesUserAgent(t *testing.T) {
	chk := simpleCheck()
	fx := newFixture(chk)

	_, err := fx.uc.HandlePing(context.Background(), chk.Code, ping.KindSuccess, nil,
		Meta{Method: "GET", UserAgent: strings.Repeat("a", 300)})
	require.NoError(t, err)
	require.Len(t, fx.pings.rows[0].UserAgent, 200)
}

func TestHandlePingUnknownCode(t *testing.T) {
	fx := newFixture(simpleCheck())

	_, err := fx.uc.HandlePing(context.Background(), uuid.New(), ping.KindSuccess, nil, Meta{Method: "GET"})
	require.ErrorIs(t, err, postgres.ErrNotFound)
	require.Empty(t, fx.pings.rows)
}

func TestHandlePingPrunesEveryHundredth(t *testing.T) {
	chk := simpleCheck()
	chk.Status = check.StatusUp
	chk.NPings = 149 // this ping makes 150, the limit is 100
	fx := newFixture(chk)
	fx.store.removed = make(chan int64, 1)
	fx.pings.earliest = fx.now.Add(-time.Hour)

	_, err := fx.uc.HandlePing(context.Background(), chk.Code, ping.KindSuccess, nil, Meta{Method: "GET"})
	require.NoError(t, err)
	require.Empty(t, fx.pings.deleted, "150 is not a prune boundary")

	chk2 := fx.checks.chk
	chk2.NPings = 199
	_, err = fx.uc.HandlePing(context.Background(), chk2.Code, ping.KindSuccess, nil, Meta{Method: "GET"})
	require.NoError(t, err)

	require.Equal(t, []int64{100}, fx.pings.deleted)
	require.Equal(t, []time.Time{fx.now.Add(-time.Hour)}, fx.notifs.cutoffs)

	select {
	case upto := <-fx.store.removed:
		require.Equal(t, int64(100), upto)
	case <-time.After(2 * time.Second):
		t.Fatal("archived bodies were not pruned")
	}
}

package checks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pulsekeep/pulsekeep/internal/domain/channel"
	"github.com/pulsekeep/pulsekeep/internal/domain/check"
	"github.com/pulsekeep/pulsekeep/internal/domain/flip"
	"github.com/pulsekeep/pulsekeep/internal/domain/ping"
	"github.com/pulsekeep/pulsekeep/internal/domain/project"
	"github.com/pulsekeep/pulsekeep/internal/repository/postgres"
	"github.com/pulsekeep/pulsekeep/internal/timeline"
)

type fakeChecks struct {
	check.Repo
	byCode map[uuid.UUID]*check.Check
	nextID int64
}

func (f *fakeChecks) Create(_ context.Context, c *check.Check) error {
	f.nextID++
	c.ID = f.nextID
	if c.Code == uuid.Nil {
		c.Code = uuid.New()
	}
	if f.byCode == nil {
		f.byCode = map[uuid.UUID]*check.Check{}
	}
	f.byCode[c.Code] = c
	return nil
}

func (f *fakeChecks) GetByCode(_ context.Context, code uuid.UUID) (*check.Check, error) {
	c, ok := f.byCode[code]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeChecks) Update(_ context.Context, c *check.Check) error {
	f.byCode[c.Code] = c
	return nil
}

func (f *fakeChecks) Delete(_ context.Context, id int64) error {
	for code, c := range f.byCode {
		if c.ID == id {
			delete(f.byCode, code)
		}
	}
	return nil
}

func (f *fakeChecks) ListByProject(_ context.Context, projectID int64) ([]*check.Check, error) {
	var out []*check.Check
	for _, c := range f.byCode {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakePings struct {
	ping.Repo
	rows []*ping.Ping
	err  error
}

func (f *fakePings) ListByCheck(_ context.Context, _ int64, limit int) ([]*ping.Ping, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.rows) > limit {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func (f *fakePings) GetByN(_ context.Context, _ int64, n int64) (*ping.Ping, error) {
	for _, p := range f.rows {
		if p.N == n {
			return p, nil
		}
	}
	return nil, postgres.ErrNotFound
}

type fakeFlips struct {
	flip.Repo
	rows []*flip.Flip
}

func (f *fakeFlips) ListByCheck(_ context.Context, _ int64, since time.Time) ([]*flip.Flip, error) {
	var out []*flip.Flip
	for _, fl := range f.rows {
		if fl.CreatedAt.After(since) {
			out = append(out, fl)
		}
	}
	return out, nil
}

type fakeChannels struct {
	channel.Repo
	byID     map[int64]*channel.Channel
	assigned [][2]int64
}

func (f *fakeChannels) GetByID(_ context.Context, id int64) (*channel.Channel, error) {
	ch, ok := f.byID[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	return ch, nil
}

func (f *fakeChannels) Assign(_ context.Context, checkID, channelID int64) error {
	f.assigned = append(f.assigned, [2]int64{checkID, channelID})
	return nil
}

type fakeBodies struct{ data map[int64][]byte }

func (f *fakeBodies) Get(_ context.Context, _ uuid.UUID, n int64) ([]byte, error) {
	return f.data[n], nil
}

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newUC() (*Usecase, *fakeChecks, *fakePings, *fakeFlips, *fakeChannels) {
	checks := &fakeChecks{}
	pings := &fakePings{}
	flips := &fakeFlips{}
	channels := &fakeChannels{byID: map[int64]*channel.Channel{}}
	uc := &Usecase{
		Checks:     checks,
		Pings:      pings,
		Flips:      flips,
		Channels:   channels,
		Transactor: passTx{},
		Clock:      fixedClock{t: testNow},
	}
	return uc, checks, pings, flips, channels
}

func proj1() *project.Project {
	return &project.Project{ID: 1, PingLogLimit: 100}
}

func str(s string) *string { return &s }
func i64(n int64) *int64   { return &n }

func TestCreateDefaults(t *testing.T) {
	uc, _, _, _, _ := newUC()

	chk, err := uc.Create(context.Background(), proj1(), Params{Name: str("backups")})
	require.NoError(t, err)

	require.Equal(t, "backups", chk.Name)
	require.Equal(t, check.KindSimple, chk.Kind)
	require.Equal(t, check.DefaultTimeout, chk.Timeout)
	require.Equal(t, check.DefaultGrace, chk.Grace)
	require.Equal(t, check.StatusNew, chk.Status)
	require.NotEqual(t, uuid.Nil, chk.Code)
}

func TestCreateValidation(t *testing.T) {
	uc, _, _, _, _ := newUC()
	ctx := context.Background()

	_, err := uc.Create(ctx, proj1(), Params{Kind: str("weekly")})
	require.ErrorIs(t, err, ErrBadParam)

	_, err = uc.Create(ctx, proj1(), Params{Timeout: i64(5)})
	require.ErrorIs(t, err, ErrBadParam)

	_, err = uc.Create(ctx, proj1(), Params{Kind: str("cron"), Schedule: str("not cron")})
	require.ErrorIs(t, err, ErrBadParam)

	_, err = uc.Create(ctx, proj1(), Params{Methods: str("PUT")})
	require.ErrorIs(t, err, ErrBadParam)
}

func TestCreateAssignsProjectChannels(t *testing.T) {
	uc, _, _, _, channels := newUC()
	channels.byID[5] = &channel.Channel{ID: 5, ProjectID: 1}
	channels.byID[6] = &channel.Channel{ID: 6, ProjectID: 2}

	chk, err := uc.Create(context.Background(), proj1(), Params{Channels: []int64{5}})
	require.NoError(t, err)
	require.Equal(t, [][2]int64{{chk.ID, 5}}, channels.assigned)

	_, err = uc.Create(context.Background(), proj1(), Params{Channels: []int64{6}})
	require.ErrorIs(t, err, ErrBadParam, "foreign project channel")
}

func TestGetScopedToProject(t *testing.T) {
	uc, _, _, _, _ := newUC()
	chk, err := uc.Create(context.Background(), proj1(), Params{})
	require.NoError(t, err)

	_, err = uc.Get(context.Background(), &project.Project{ID: 2}, chk.Code)
	require.ErrorIs(t, err, postgres.ErrNotFound)

	got, err := uc.Get(context.Background(), proj1(), chk.Code)
	require.NoError(t, err)
	require.Equal(t, chk.ID, got.ID)
}

func TestListFiltersByTags(t *testing.T) {
	uc, _, _, _, _ := newUC()
	ctx := context.Background()
	_, err := uc.Create(ctx, proj1(), Params{Name: str("a"), Tags: str("prod db")})
	require.NoError(t, err)
	_, err = uc.Create(ctx, proj1(), Params{Name: str("b"), Tags: str("prod")})
	require.NoError(t, err)

	all, err := uc.List(ctx, proj1(), nil)
	require.NoError(t, err)
	require.Len(t, all, 2)

	got, err := uc.List(ctx, proj1(), []string{"prod", "db"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].Name)
}

func TestPauseAndResume(t *testing.T) {
	uc, checks, _, _, _ := newUC()
	ctx := context.Background()
	chk, err := uc.Create(ctx, proj1(), Params{})
	require.NoError(t, err)

	lp := testNow.Add(-time.Hour)
	stored := checks.byCode[chk.Code]
	stored.Status = check.StatusUp
	stored.LastPing = &lp
	stored.AlertAfter = &testNow

	_, err = uc.Resume(ctx, proj1(), chk.Code)
	require.ErrorIs(t, err, ErrNotPaused)

	paused, err := uc.Pause(ctx, proj1(), chk.Code)
	require.NoError(t, err)
	require.Equal(t, check.StatusPaused, paused.Status)
	require.Nil(t, paused.AlertAfter)

	resumed, err := uc.Resume(ctx, proj1(), chk.Code)
	require.NoError(t, err)
	require.Equal(t, check.StatusNew, resumed.Status)
	require.Nil(t, resumed.LastPing)
	require.Nil(t, resumed.AlertAfter)
}

func TestTimelineMergesFlipMarkers(t *testing.T) {
	uc, checks, pings, flips, _ := newUC()
	ctx := context.Background()
	chk, err := uc.Create(ctx, proj1(), Params{})
	require.NoError(t, err)
	checks.byCode[chk.Code].Status = check.StatusDown
	checks.byCode[chk.Code].CreatedAt = testNow.Add(-24 * time.Hour)

	pings.rows = []*ping.Ping{
		{N: 2, CheckID: chk.ID, CreatedAt: testNow.Add(-10 * time.Minute)},
		{N: 1, CheckID: chk.ID, CreatedAt: testNow.Add(-70 * time.Minute)},
	}
	flips.rows = []*flip.Flip{
		{CheckID: chk.ID, CreatedAt: testNow.Add(-5 * time.Minute),
			OldStatus: check.StatusUp, NewStatus: check.StatusDown},
	}

	tl, err := uc.Timeline(ctx, proj1(), chk.Code, 50)
	require.NoError(t, err)

	require.Len(t, tl.Rows, 3)
	require.Equal(t, timeline.RowMissing, tl.Rows[0].Kind)
	require.Equal(t, timeline.RowEvent, tl.Rows[1].Kind)
	require.Equal(t, int64(2), tl.Rows[1].N)
	require.False(t, tl.Truncated)
	require.Equal(t, 50, tl.Limit)
}

func TestTimelineClampsLimitToProject(t *testing.T) {
	uc, _, _, _, _ := newUC()
	ctx := context.Background()
	chk, err := uc.Create(ctx, proj1(), Params{})
	require.NoError(t, err)

	tl, err := uc.Timeline(ctx, proj1(), chk.Code, 5000)
	require.NoError(t, err)
	require.Equal(t, 100, tl.Limit)
}

func TestTimelineStoreFailure(t *testing.T) {
	uc, _, pings, _, _ := newUC()
	ctx := context.Background()
	chk, err := uc.Create(ctx, proj1(), Params{})
	require.NoError(t, err)

	pings.err = errors.New("connection refused")
	_, err = uc.Timeline(ctx, proj1(), chk.Code, 10)
	require.ErrorIs(t, err, ErrLogUnavailable)
}

func TestPingBody(t *testing.T) {
	uc, _, pings, _, _ := newUC()
	ctx := context.Background()
	chk, err := uc.Create(ctx, proj1(), Params{})
	require.NoError(t, err)

	pings.rows = []*ping.Ping{
		{N: 1, CheckID: chk.ID, CreatedAt: testNow, BodyRaw: []byte("inline")},
		{N: 2, CheckID: chk.ID, CreatedAt: testNow, ObjectSize: 6},
	}
	uc.Objects = &fakeBodies{data: map[int64][]byte{2: []byte("stored")}}

	body, err := uc.PingBody(ctx, proj1(), chk.Code, 1)
	require.NoError(t, err)
	require.Equal(t, []byte("inline"), body)

	body, err = uc.PingBody(ctx, proj1(), chk.Code, 2)
	require.NoError(t, err)
	require.Equal(t, []byte("stored"), body)

	_, err = uc.PingBody(ctx, proj1(), chk.Code, 9)
	require.ErrorIs(t, err, postgres.ErrNotFound)
}

package check

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func tp(t time.Time) *time.Time { return &t }

func TestGraceStartSimple(t *testing.T) {
	last := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := &Check{Kind: KindSimple, Status: StatusUp, Timeout: time.Hour, LastPing: tp(last)}

	gs := c.GraceStart(true)
	require.NotNil(t, gs)
	require.Equal(t, last.Add(time.Hour), *gs)
}

func TestGraceStartCron(t *testing.T) {
	last := time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)
	c := &Check{
		Kind:     KindCron,
		Status:   StatusUp,
		Schedule: "*/5 * * * *",
		TZ:       "UTC",
		LastPing: tp(last),
	}

	gs := c.GraceStart(true)
	require.NotNil(t, gs)
	require.Equal(t, time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC), gs.UTC())
}

func TestGraceStartNotUp(t *testing.T) {
	c := &Check{Kind: KindSimple, Status: StatusNew, Timeout: time.Hour}
	require.Nil(t, c.GraceStart(true))

	c.Status = StatusPaused
	last := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c.LastPing = tp(last)
	require.Nil(t, c.GraceStart(true))
}

func TestGraceStartWithStarted(t *testing.T) {
	last := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	started := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	c := &Check{
		Kind:      KindSimple,
		Status:    StatusUp,
		Timeout:   2 * time.Hour,
		LastPing:  tp(last),
		LastStart: tp(started),
	}

	// The pending start is earlier than last_ping+timeout, so it wins.
	gs := c.GraceStart(true)
	require.NotNil(t, gs)
	require.Equal(t, started, *gs)

	// Without the started refinement the timeout rules.
	gs = c.GraceStart(false)
	require.NotNil(t, gs)
	require.Equal(t, last.Add(2*time.Hour), *gs)
}

func TestGoingDownAfter(t *testing.T) {
	last := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := &Check{
		Kind:     KindSimple,
		Status:   StatusUp,
		Timeout:  time.Hour,
		Grace:    30 * time.Minute,
		LastPing: tp(last),
	}

	after := c.GoingDownAfter()
	require.NotNil(t, after)
	require.Equal(t, last.Add(time.Hour+30*time.Minute), *after)

	require.Nil(t, (&Check{Status: StatusNew, Grace: time.Hour}).GoingDownAfter())
}

func TestDisplayStatus(t *testing.T) {
	last := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := &Check{
		Kind:     KindSimple,
		Status:   StatusUp,
		Timeout:  time.Hour,
		Grace:    30 * time.Minute,
		LastPing: tp(last),
	}

	require.Equal(t, StatusUp, c.DisplayStatus(last.Add(30*time.Minute), false))
	require.Equal(t, StatusGrace, c.DisplayStatus(last.Add(time.Hour+time.Minute), false))
	require.Equal(t, StatusDown, c.DisplayStatus(last.Add(2*time.Hour), false))
}

func TestDisplayStatusStarted(t *testing.T) {
	last := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	started := last.Add(10 * time.Minute)
	c := &Check{
		Kind:      KindSimple,
		Status:    StatusUp,
		Timeout:   time.Hour,
		Grace:     30 * time.Minute,
		LastPing:  tp(last),
		LastStart: tp(started),
	}

	require.Equal(t, StatusStarted, c.DisplayStatus(started.Add(time.Minute), true))
	require.Equal(t, StatusUp, c.DisplayStatus(started.Add(time.Minute), false))
	// The running job exceeded its grace budget.
	require.Equal(t, StatusDown, c.DisplayStatus(started.Add(31*time.Minute), true))
}

func TestDisplayStatusPassthrough(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, s := range []Status{StatusNew, StatusPaused, StatusDown} {
		c := &Check{Status: s, Grace: time.Hour}
		require.Equal(t, s, c.DisplayStatus(now, true))
	}
}

func TestClampedLastDuration(t *testing.T) {
	d := 90 * time.Second
	c := &Check{LastDuration: &d}
	require.Equal(t, &d, c.ClampedLastDuration())

	long := 25 * time.Hour
	c.LastDuration = &long
	require.Nil(t, c.ClampedLastDuration())

	c.LastDuration = nil
	require.Nil(t, c.ClampedLastDuration())
}

func TestMatchesTags(t *testing.T) {
	c := &Check{Tags: "prod db  nightly"}
	require.Equal(t, []string{"prod", "db", "nightly"}, c.TagList())
	require.True(t, c.MatchesTags([]string{"prod", "db"}))
	require.True(t, c.MatchesTags(nil))
	require.False(t, c.MatchesTags([]string{"prod", "web"}))
}

func TestValidateSchedule(t *testing.T) {
	require.NoError(t, ValidateSchedule("*/5 * * * *", "Europe/Berlin"))
	require.Error(t, ValidateSchedule("not a schedule", "UTC"))
	require.Error(t, ValidateSchedule("* * * * *", "Mars/Olympus"))
}

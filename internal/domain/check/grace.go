package check

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Display-only refinements of Status, never stored.
const (
	StatusGrace   Status = "grace"
	StatusStarted Status = "started"
)

// MaxDelta caps how far apart a start and its completion may be to still
// count as one run. Durations at or above it are not shown.
const MaxDelta = 24 * time.Hour

// GraceStart returns the instant the grace period begins, or nil when the
// check has no deadline (not up, never pinged). With withStarted, a pending
// start moves the deadline up unless the check is already down.
func (c *Check) GraceStart(withStarted bool) *time.Time {
	var result *time.Time
	if c.Status == StatusUp && c.LastPing != nil {
		switch c.Kind {
		case KindCron:
			if next, err := c.nextSchedule(*c.LastPing); err == nil {
				result = &next
			}
		default:
			t := c.LastPing.Add(c.Timeout)
			result = &t
		}
	}
	if withStarted && c.LastStart != nil && c.Status != StatusDown {
		if result == nil || c.LastStart.Before(*result) {
			t := *c.LastStart
			result = &t
		}
	}
	return result
}

// GoingDownAfter returns the instant the check flips to down if no ping
// arrives, or nil when no deadline applies.
func (c *Check) GoingDownAfter() *time.Time {
	if gs := c.GraceStart(true); gs != nil {
		t := gs.Add(c.Grace)
		return &t
	}
	return nil
}

// DisplayStatus refines the stored status for presentation: a running job can
// report started, an overdue check reports grace before it flips to down.
func (c *Check) DisplayStatus(now time.Time, withStarted bool) Status {
	if c.LastStart != nil {
		if !now.Before(c.LastStart.Add(c.Grace)) {
			return StatusDown
		}
		if withStarted {
			return StatusStarted
		}
	}
	switch c.Status {
	case StatusNew, StatusPaused, StatusDown:
		return c.Status
	}
	gs := c.GraceStart(false)
	if gs == nil {
		return c.Status
	}
	if !now.Before(gs.Add(c.Grace)) {
		return StatusDown
	}
	if !now.Before(*gs) {
		return StatusGrace
	}
	return StatusUp
}

// ClampedLastDuration hides implausible durations from display.
func (c *Check) ClampedLastDuration() *time.Duration {
	if c.LastDuration != nil && *c.LastDuration < MaxDelta {
		return c.LastDuration
	}
	return nil
}

func (c *Check) nextSchedule(after time.Time) (time.Time, error) {
	loc := time.UTC
	if c.TZ != "" {
		l, err := time.LoadLocation(c.TZ)
		if err != nil {
			return time.Time{}, err
		}
		loc = l
	}
	sched, err := cron.ParseStandard(c.Schedule)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after.In(loc)), nil
}

// ValidateSchedule rejects cron expressions and timezones the scheduler
// cannot evaluate. Called on check create and update.
func ValidateSchedule(spec, tz string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return err
	}
	if tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return err
		}
	}
	return nil
}

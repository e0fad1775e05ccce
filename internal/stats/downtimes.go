// Package stats derives downtime summaries from a check's flip history.
package stats

import (
	"sort"
	"time"

	"github.com/pulsekeep/pulsekeep/internal/domain/check"
	"github.com/pulsekeep/pulsekeep/internal/domain/flip"
)

// Downtime is one month's outage summary. Counters are nil for months
// before the check existed.
type Downtime struct {
	Boundary time.Time      `json:"boundary"`
	Downtime *time.Duration `json:"downtime"`
	Outages  *int           `json:"outages"`
}

// MonthBoundaries returns the first instants of the last n months in loc,
// ascending, current month last.
func MonthBoundaries(now time.Time, n int, loc *time.Location) []time.Time {
	t := now.In(loc)
	y, m, _ := t.Date()
	out := make([]time.Time, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = time.Date(y, m-time.Month(i), 1, 0, 0, 0, 0, loc)
	}
	return out
}

type monthKey struct {
	y int
	m time.Month
}

func keyOf(t time.Time, loc *time.Location) monthKey {
	tt := t.In(loc)
	return monthKey{tt.Year(), tt.Month()}
}

// Downtimes walks flips and month boundaries newest-first, charging each
// down segment to the month the segment starts in. An outage crossing a
// month boundary counts once in each month it touches.
func Downtimes(c *check.Check, flips []*flip.Flip, now time.Time, months int, loc *time.Location) []Downtime {
	boundaries := MonthBoundaries(now, months, loc)
	earliest := boundaries[0]

	totals := make(map[monthKey]*Downtime, months)
	for _, b := range boundaries {
		totals[keyOf(b, loc)] = &Downtime{Boundary: b}
	}

	type event struct {
		at       time.Time
		status   check.Status
		boundary bool
	}
	events := make([]event, 0, len(boundaries)+len(flips))
	for _, b := range boundaries {
		events = append(events, event{at: b, boundary: true})
	}
	for _, f := range flips {
		if !f.CreatedAt.After(earliest) {
			continue
		}
		events = append(events, event{at: f.CreatedAt, status: f.OldStatus})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].at.Equal(events[j].at) {
			return events[i].at.After(events[j].at)
		}
		return !events[i].boundary && events[j].boundary
	})

	sums := make(map[monthKey]time.Duration, months)
	counts := make(map[monthKey]int, months)
	dt, status := now, c.Status
	for _, e := range events {
		if status == check.StatusDown {
			k := keyOf(e.at, loc)
			if _, ok := totals[k]; ok {
				sums[k] += dt.Sub(e.at)
				counts[k]++
			}
		}
		dt = e.at
		if !e.boundary {
			status = e.status
		}
	}

	created := keyOf(c.CreatedAt, loc)
	out := make([]Downtime, 0, months)
	for _, b := range boundaries {
		k := keyOf(b, loc)
		d := totals[k]
		if k.y > created.y || (k.y == created.y && k.m >= created.m) {
			sum, n := sums[k], counts[k]
			d.Downtime, d.Outages = &sum, &n
		}
		out = append(out, *d)
	}
	return out
}

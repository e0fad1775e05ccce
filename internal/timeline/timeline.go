// Package timeline turns a check's stored pings and its status history into
// a display-ready event log. The build is a pure transform: no I/O, no clock
// reads, identical inputs give identical output.
package timeline

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/pulsekeep/pulsekeep/internal/domain/check"
	"github.com/pulsekeep/pulsekeep/internal/domain/ping"
)

var (
	ErrInvalidLimit = errors.New("limit must be positive")
	ErrInvalidEvent = errors.New("event has no timestamp")
)

type RowKind string

const (
	RowEvent   RowKind = "event"
	RowMissing RowKind = "missing"
)

type Style string

const (
	StyleSuccess Style = "success"
	StyleDanger  Style = "danger"
	StyleStart   Style = "start"
	StyleIgnored Style = "ignored"
	StyleMissing Style = "missing"
)

// Window is one observation of the check's status, used to synthesize
// missing-ping markers. Only down and grace observations produce rows.
type Window struct {
	CreatedAt time.Time    `json:"created_at"`
	Status    check.Status `json:"status"`
}

// Row is one rendered line of the log, most recent first.
type Row struct {
	Kind        RowKind      `json:"kind"`
	N           int64        `json:"n,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	Label       string       `json:"label"`
	Style       Style        `json:"style"`
	Detail      string       `json:"detail,omitempty"`
	Delta       string       `json:"delta,omitempty"`
	CheckStatus check.Status `json:"check_status,omitempty"`
}

type Timeline struct {
	Rows      []Row `json:"rows"`
	Truncated bool  `json:"truncated"`
	Limit     int   `json:"limit"`
}

// Input carries an already-fetched snapshot. Now bounds marker synthesis;
// it is supplied by the caller so the build stays deterministic.
type Input struct {
	Events  []*ping.Ping
	Windows []Window
	Limit   int
	Now     time.Time
}

// Build merges real pings with synthetic missing markers into one sequence,
// descending by creation time, ties resolved real-event-first. Events beyond
// Limit are dropped (most recent kept) and the result is flagged truncated.
func Build(in Input) (*Timeline, error) {
	if in.Limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, in.Limit)
	}
	for i, ev := range in.Events {
		if ev == nil || ev.CreatedAt.IsZero() {
			return nil, fmt.Errorf("%w: event %d", ErrInvalidEvent, i)
		}
	}
	for i, w := range in.Windows {
		if w.CreatedAt.IsZero() {
			return nil, fmt.Errorf("%w: window %d", ErrInvalidEvent, i)
		}
	}

	events := make([]*ping.Ping, len(in.Events))
	copy(events, in.Events)
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.After(events[j].CreatedAt)
		}
		return events[i].N > events[j].N
	})

	// Pair run durations over the full snapshot before capping, so a start
	// that fell off the page still explains the completion on it.
	deltas := pairDeltas(events)

	truncated := false
	if len(events) >= in.Limit {
		events = events[:in.Limit]
		truncated = true
	}

	rows := make([]Row, 0, len(events)+len(in.Windows))
	for _, ev := range events {
		label, style := classify(ev)
		rows = append(rows, Row{
			Kind:      RowEvent,
			N:         ev.N,
			CreatedAt: ev.CreatedAt,
			Label:     label,
			Style:     style,
			Detail:    detail(ev),
			Delta:     deltas[ev],
		})
	}
	for _, w := range in.Windows {
		if w.Status != check.StatusDown && w.Status != check.StatusGrace {
			continue
		}
		if w.CreatedAt.After(in.Now) {
			continue
		}
		rows = append(rows, Row{
			Kind:        RowMissing,
			CreatedAt:   w.CreatedAt,
			Label:       "Missing",
			Style:       StyleMissing,
			Detail:      missingDetail(w.Status),
			CheckStatus: w.Status,
		})
	}

	// Stable sort keeps events ahead of markers at equal instants: events
	// were appended first.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})

	return &Timeline{Rows: rows, Truncated: truncated, Limit: in.Limit}, nil
}

// pairDeltas matches each completion with the nearest preceding unconsumed
// start. Pairs further apart than MaxDelta record no duration; the start is
// still consumed, mirroring how a completion always clears a pending start.
func pairDeltas(desc []*ping.Ping) map[*ping.Ping]string {
	out := make(map[*ping.Ping]string)
	var pendingStart *time.Time
	for i := len(desc) - 1; i >= 0; i-- {
		ev := desc[i]
		switch {
		case ev.Kind == ping.KindStart:
			t := ev.CreatedAt
			pendingStart = &t
		case ev.Completion():
			if ev.Delta != nil {
				if *ev.Delta < check.MaxDelta {
					out[ev] = FormatDuration(*ev.Delta)
				}
				continue
			}
			if pendingStart != nil {
				if d := ev.CreatedAt.Sub(*pendingStart); d >= 0 && d < check.MaxDelta {
					out[ev] = FormatDuration(d)
				}
				pendingStart = nil
			}
		}
	}
	return out
}

package check

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusNew    Status = "new"
	StatusUp     Status = "up"
	StatusDown   Status = "down"
	StatusPaused Status = "paused"
)

type Kind string

const (
	KindSimple Kind = "simple"
	KindCron   Kind = "cron"
)

const (
	DefaultTimeout = 24 * time.Hour
	DefaultGrace   = time.Hour
)

type Check struct {
	ID           int64          `json:"id"`
	Code         uuid.UUID      `json:"code"`
	ProjectID    int64          `json:"project_id"`
	Name         string         `json:"name"`
	Slug         string         `json:"slug"`
	Tags         string         `json:"tags"`
	Desc         string         `json:"desc"`
	Kind         Kind           `json:"kind"`
	Timeout      time.Duration  `json:"timeout"`
	Grace        time.Duration  `json:"grace"`
	Schedule     string         `json:"schedule"`
	TZ           string         `json:"tz"`
	Methods      string         `json:"methods"`
	ManualResume bool           `json:"manual_resume"`
	NPings       int64          `json:"n_pings"`
	LastPing     *time.Time     `json:"last_ping"`
	LastStart    *time.Time     `json:"last_start"`
	LastDuration *time.Duration `json:"last_duration"`
	AlertAfter   *time.Time     `json:"alert_after"`
	Status       Status         `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (c *Check) TagList() []string {
	return strings.Fields(c.Tags)
}

// AcceptsMethod reports whether a ping with the given HTTP method should
// register. Empty Methods accepts everything; "POST" demotes other methods
// to ignored pings.
func (c *Check) AcceptsMethod(m string) bool {
	return c.Methods == "" || c.Methods == m
}

// MatchesTags reports whether the check carries every tag in tags.
func (c *Check) MatchesTags(tags []string) bool {
	have := make(map[string]struct{})
	for _, t := range c.TagList() {
		have[t] = struct{}{}
	}
	for _, t := range tags {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}

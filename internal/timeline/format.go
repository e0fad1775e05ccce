package timeline

import (
	"fmt"
	"strings"
	"time"
)

const previewLimit = 150

// previewBody keeps the first 150 characters of a payload and marks the cut.
func previewBody(body string) string {
	runes := []rune(body)
	if len(runes) <= previewLimit {
		return body
	}
	return string(runes[:previewLimit]) + "…"
}

// FormatDuration renders an elapsed time like "2m 3s". Sub-second values
// round to the nearest second.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	s := d - m*time.Minute

	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if h > 0 || m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	parts = append(parts, fmt.Sprintf("%ds", s/time.Second))
	return strings.Join(parts, " ")
}

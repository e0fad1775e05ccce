package timeline

import (
	"fmt"
	"strings"

	"github.com/pulsekeep/pulsekeep/internal/domain/check"
	"github.com/pulsekeep/pulsekeep/internal/domain/ping"
)

// classify derives the display label. First match wins; a non-zero exit
// status trumps the ping kind.
func classify(p *ping.Ping) (string, Style) {
	switch {
	case p.ExitStatus != nil && *p.ExitStatus != 0:
		return fmt.Sprintf("Status %d", *p.ExitStatus), StyleDanger
	case p.Kind == ping.KindFail:
		return "Failure", StyleDanger
	case p.Kind == ping.KindStart:
		return "Started", StyleStart
	case p.Kind == ping.KindIgn:
		return "Ignored", StyleIgnored
	default:
		return "OK", StyleSuccess
	}
}

// detail renders the transport line. Email pings show only the sender agent
// and a body preview; HTTP-ish pings lead with scheme, method and origin.
func detail(p *ping.Ping) string {
	var parts []string
	if p.Scheme == "email" {
		if p.UserAgent != "" {
			parts = append(parts, p.UserAgent)
		}
		if p.HasBody() {
			parts = append(parts, previewBody(p.BodyText()))
		}
		return strings.Join(parts, "; ")
	}

	var head []string
	if p.Scheme != "" {
		head = append(head, strings.ToUpper(p.Scheme))
	}
	if p.Method != "" {
		head = append(head, p.Method)
	}
	if p.RemoteAddr != "" {
		head = append(head, "from "+p.RemoteAddr)
	}
	if len(head) > 0 {
		parts = append(parts, strings.Join(head, " "))
	}
	if p.UserAgent != "" {
		parts = append(parts, p.UserAgent)
	}
	switch {
	case p.HasBody():
		parts = append(parts, previewBody(p.BodyText()))
	case p.ObjectSize > 0:
		parts = append(parts, fmt.Sprintf("%d byte body", p.ObjectSize))
	}
	return strings.Join(parts, "; ")
}

func missingDetail(status check.Status) string {
	if status == check.StatusGrace {
		return "Ping overdue"
	}
	return "Expected ping did not arrive"
}

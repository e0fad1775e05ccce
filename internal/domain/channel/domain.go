package channel

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pulsekeep/pulsekeep/internal/domain/check"
)

type Kind string

const (
	KindEmail   Kind = "email"
	KindWebhook Kind = "webhook"
)

type Channel struct {
	ID         int64      `json:"id"`
	Code       uuid.UUID  `json:"code"`
	ProjectID  int64      `json:"project_id"`
	Name       string     `json:"name"`
	Kind       Kind       `json:"kind"`
	Value      string     `json:"value"`
	Disabled   bool       `json:"disabled"`
	LastNotify *time.Time `json:"last_notify"`
	LastError  string     `json:"last_error"`
}

// WebhookSpec is the parsed Value of a webhook channel. Down and up
// transitions can target different requests; empty URL means skip.
type WebhookSpec struct {
	MethodDown  string            `json:"method_down"`
	URLDown     string            `json:"url_down"`
	BodyDown    string            `json:"body_down"`
	HeadersDown map[string]string `json:"headers_down"`
	MethodUp    string            `json:"method_up"`
	URLUp       string            `json:"url_up"`
	BodyUp      string            `json:"body_up"`
	HeadersUp   map[string]string `json:"headers_up"`
}

func (c *Channel) Webhook() (*WebhookSpec, error) {
	if c.Kind != KindWebhook {
		return nil, fmt.Errorf("channel %d is %s, not webhook", c.ID, c.Kind)
	}
	var spec WebhookSpec
	if err := json.Unmarshal([]byte(c.Value), &spec); err != nil {
		return nil, fmt.Errorf("parse webhook value: %w", err)
	}
	return &spec, nil
}

// Request picks the webhook leg for a status, or empty values to skip.
func (s *WebhookSpec) Request(status check.Status) (method, url, body string, headers map[string]string) {
	if status == check.StatusDown {
		return orGet(s.MethodDown), s.URLDown, s.BodyDown, s.HeadersDown
	}
	return orGet(s.MethodUp), s.URLUp, s.BodyUp, s.HeadersUp
}

func orGet(method string) string {
	if method == "" {
		return "GET"
	}
	return method
}

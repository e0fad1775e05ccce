package notifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	config "github.com/pulsekeep/pulsekeep/internal/config/notifier"
	"github.com/pulsekeep/pulsekeep/internal/domain/channel"
	"github.com/pulsekeep/pulsekeep/internal/domain/check"
	"github.com/pulsekeep/pulsekeep/internal/obs/retry"
)

// Webhook fires the HTTP request a webhook channel configures for a
// status direction. Malformed channel values and 4xx responses come
// back wrapped in retry.Permanent so the channel can be disabled
// instead of hammered.
type Webhook struct {
	client *http.Client
	ua     string
	log    *zap.Logger
}

func NewWebhook(cfg config.Webhook) *Webhook {
	return &Webhook{
		client: &http.Client{Timeout: cfg.Timeout},
		ua:     cfg.UserAgent,
		log:    zap.L().With(zap.String("component", "notifier.webhook")),
	}
}

func (w *Webhook) WithLogger(l *zap.Logger) *Webhook {
	if l == nil {
		return w
	}
	cp := *w
	cp.log = l.With(zap.String("component", "notifier.webhook"))
	return &cp
}

func (w *Webhook) Send(ctx context.Context, ch *channel.Channel, status check.Status) error {
	spec, err := ch.Webhook()
	if err != nil {
		return fmt.Errorf("%w: %v", retry.Permanent, err)
	}
	method, url, body, headers := spec.Request(status)
	if url == "" {
		return nil
	}

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return fmt.Errorf("%w: %v", retry.Permanent, err)
	}
	req.Header.Set("User-Agent", w.ua)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("received status %d", resp.StatusCode)
		if resp.StatusCode < 500 {
			return fmt.Errorf("%w: %v", retry.Permanent, err)
		}
		return err
	}

	w.log.Debug("webhook delivered",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

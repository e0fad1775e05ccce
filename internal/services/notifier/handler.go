package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	config "github.com/pulsekeep/pulsekeep/internal/config/notifier"
	"github.com/pulsekeep/pulsekeep/internal/domain/channel"
	"github.com/pulsekeep/pulsekeep/internal/domain/check"
	"github.com/pulsekeep/pulsekeep/internal/domain/events"
	"github.com/pulsekeep/pulsekeep/internal/domain/flip"
	"github.com/pulsekeep/pulsekeep/internal/domain/notification"
	"github.com/pulsekeep/pulsekeep/internal/obs/retry"
	"github.com/pulsekeep/pulsekeep/internal/repository/postgres"
	"github.com/pulsekeep/pulsekeep/internal/services/notifier/repo"
)

var (
	mFlips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_flips_consumed_total",
		Help: "Status transitions consumed from Kafka.",
	})
	mSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_sent_total",
		Help: "Alerts delivered, by channel kind.",
	}, []string{"kind"})
	mErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_delivery_errors_total",
		Help: "Alert deliveries that exhausted retries, by channel kind.",
	}, []string{"kind"})
)

// HookSender posts a status transition to a webhook channel.
type HookSender interface {
	Send(ctx context.Context, ch *channel.Channel, status check.Status) error
}

// Limiter caps how often a single channel may be used.
type Limiter interface {
	Authorize(ctx context.Context, value string, capacity int, refill time.Duration) (bool, error)
}

type Handler struct {
	Checks   repo.CheckReader
	Channels repo.ChannelRepo
	Store    repo.NotificationRepo
	Flips    repo.FlipRepo
	Email    notification.EmailSender
	Hooks    HookSender
	Limits   Limiter
	Budget   config.RateLimit
	Clock    notification.Clock
	Log      *zap.Logger
}

// HandleFlip fans one status transition out to the check's channels.
// Transport failures are recorded on the notification row rather than
// returned: failing the message would redeliver it and re-alert the
// channels that already succeeded.
func (h *Handler) HandleFlip(ctx context.Context, ev *events.FlipEvent) error {
	mFlips.Inc()

	// Kafka delivers at least once. A flip already marked processed was
	// handled by an earlier attempt; fanning out again would double-alert.
	if ev.FlipID > 0 {
		f, err := h.Flips.GetByID(ctx, ev.FlipID)
		switch {
		case err == nil && f.Processed != nil:
			h.Log.Debug("flip already handled", zap.Int64("flip_id", ev.FlipID))
			return nil
		case err != nil && !errors.Is(err, postgres.ErrNotFound):
			h.Log.Warn("flip lookup failed", zap.Int64("flip_id", ev.FlipID), zap.Error(err))
		}
	}

	f := flip.Flip{CheckID: ev.CheckID, OldStatus: ev.OldStatus, NewStatus: ev.NewStatus}
	if !f.Actionable() {
		h.Log.Debug("routine transition, no alert",
			zap.Int64("check_id", ev.CheckID),
			zap.String("old", string(ev.OldStatus)),
			zap.String("new", string(ev.NewStatus)),
		)
		h.markProcessed(ctx, ev)
		return nil
	}

	chk, err := h.Checks.GetByID(ctx, ev.CheckID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			h.Log.Warn("transition for missing check", zap.Int64("check_id", ev.CheckID))
			return nil
		}
		return fmt.Errorf("get check: %w", err)
	}

	chans, err := h.Channels.ListByCheck(ctx, chk.ID)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}

	for _, ch := range chans {
		if ch.Disabled {
			continue
		}
		h.notify(ctx, chk, ch, ev)
	}
	h.markProcessed(ctx, ev)
	return nil
}

// markProcessed stamps the flip row so redeliveries become no-ops.
func (h *Handler) markProcessed(ctx context.Context, ev *events.FlipEvent) {
	if ev.FlipID <= 0 {
		return
	}
	if err := h.Flips.MarkProcessed(ctx, ev.FlipID, h.Clock.Now().UTC()); err != nil {
		h.Log.Warn("mark flip processed", zap.Int64("flip_id", ev.FlipID), zap.Error(err))
	}
}

// notify runs one delivery and records the outcome on the notification
// row and the channel itself.
func (h *Handler) notify(ctx context.Context, chk *check.Check, ch *channel.Channel, ev *events.FlipEvent) {
	now := h.Clock.Now().UTC()
	n := &notification.Notification{
		CheckID:     chk.ID,
		ChannelID:   ch.ID,
		CheckStatus: ev.NewStatus,
		CreatedAt:   now,
		Error:       "Sending",
	}
	if err := h.Store.Create(ctx, n); err != nil {
		h.Log.Error("create notification", zap.Int64("channel_id", ch.ID), zap.Error(err))
		return
	}

	ok, err := h.Limits.Authorize(ctx, bucketFor(ch), h.Budget.Capacity, h.Budget.Refill)
	if err != nil {
		// A budget that cannot be checked must not swallow the alert.
		h.Log.Warn("rate limit check failed", zap.Error(err))
		ok = true
	}
	if !ok {
		h.Log.Warn("delivery rate limited", zap.Int64("channel_id", ch.ID))
		if uerr := h.Store.UpdateError(ctx, n.ID, "Rate limit exceeded"); uerr != nil {
			h.Log.Error("update notification", zap.Error(uerr))
		}
		return
	}

	sendErr := h.deliver(ctx, chk, ch, ev)

	errText := ""
	if sendErr != nil {
		errText = sendErr.Error()
		mErrors.WithLabelValues(string(ch.Kind)).Inc()
	} else {
		mSent.WithLabelValues(string(ch.Kind)).Inc()
	}
	if uerr := h.Store.UpdateError(ctx, n.ID, errText); uerr != nil {
		h.Log.Error("update notification", zap.Error(uerr))
	}

	if sendErr == nil {
		t := now
		ch.LastNotify = &t
		ch.LastError = ""
	} else {
		ch.LastError = errText
		if retry.IsPermanent(sendErr) {
			ch.Disabled = true
			h.Log.Warn("channel disabled after permanent failure",
				zap.Int64("channel_id", ch.ID), zap.Error(sendErr))
		}
	}
	if uerr := h.Channels.Update(ctx, ch); uerr != nil {
		h.Log.Error("update channel", zap.Int64("channel_id", ch.ID), zap.Error(uerr))
	}
}

func (h *Handler) deliver(ctx context.Context, chk *check.Check, ch *channel.Channel, ev *events.FlipEvent) error {
	switch ch.Kind {
	case channel.KindEmail:
		subject, body := renderEmail(chk, ev)
		return retry.Do(ctx, func() error {
			return h.Email.Send(ctx, ch.Value, subject, body)
		}, retry.DeliveryPolicy("email", h.Log))
	case channel.KindWebhook:
		return retry.Do(ctx, func() error {
			return h.Hooks.Send(ctx, ch, ev.NewStatus)
		}, retry.DeliveryPolicy("webhook", h.Log))
	default:
		return fmt.Errorf("%w: unknown channel kind %q", retry.Permanent, ch.Kind)
	}
}

func renderEmail(chk *check.Check, ev *events.FlipEvent) (subject, body string) {
	name := chk.Name
	if name == "" {
		name = chk.Code.String()
	}
	subject = fmt.Sprintf("%s is %s", name, strings.ToUpper(string(ev.NewStatus)))
	body = fmt.Sprintf(
		"Hello!\n\nThe check %q changed status: %s → %s at %s.\n\n— PulseKeep",
		name, ev.OldStatus, ev.NewStatus, ev.CreatedAt.UTC().Format(time.RFC3339),
	)
	return subject, body
}

func bucketFor(ch *channel.Channel) string {
	return fmt.Sprintf("ch-%d", ch.ID)
}

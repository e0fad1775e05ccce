package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsekeep/pulsekeep/internal/domain/check"
	"github.com/pulsekeep/pulsekeep/internal/domain/notification"
)

var _ notification.Repo = (*NotificationRepoImpl)(nil)

type NotificationRepoImpl struct{ db *DB }

func NewNotificationRepo(db *DB) *NotificationRepoImpl { return &NotificationRepoImpl{db: db} }

const (
	qNotifInsert = `
INSERT INTO notifications (check_id, channel_id, check_status, created_at, error)
VALUES ($1, $2, $3, COALESCE($4, now()), $5)
RETURNING id, created_at;`

	qNotifUpdateError = `UPDATE notifications SET error = $2 WHERE id = $1;`

	qNotifByCheck = `
SELECT id, check_id, channel_id, check_status, created_at, error
FROM notifications
WHERE check_id = $1
ORDER BY created_at DESC
LIMIT $2;`

	qNotifDeleteOld = `DELETE FROM notifications WHERE check_id = $1 AND created_at < $2;`
)

func (r *NotificationRepoImpl) Create(ctx context.Context, n *notification.Notification) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	if err := eq.QueryRow(ctx, qNotifInsert,
		n.CheckID,
		n.ChannelID,
		string(n.CheckStatus),
		nullTime(n.CreatedAt),
		n.Error,
	).Scan(&n.ID, &n.CreatedAt); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepoImpl) UpdateError(ctx context.Context, id int64, errText string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	if _, err := eq.Exec(ctx, qNotifUpdateError, id, errText); err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	return nil
}

func (r *NotificationRepoImpl) ListByCheck(ctx context.Context, checkID int64, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	rows, err := eq.Query(ctx, qNotifByCheck, checkID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	out := make([]*notification.Notification, 0, limit)
	for rows.Next() {
		var (
			n      notification.Notification
			status string
		)
		if err := rows.Scan(&n.ID, &n.CheckID, &n.ChannelID, &status, &n.CreatedAt, &n.Error); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.CheckStatus = check.Status(status)
		nc := n
		out = append(out, &nc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *NotificationRepoImpl) DeleteOlderThan(ctx context.Context, checkID int64, cutoff time.Time) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	if _, err := eq.Exec(ctx, qNotifDeleteOld, checkID, cutoff); err != nil {
		return fmt.Errorf("prune notifications: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pulsekeep/pulsekeep/internal/domain/channel"
)

var _ channel.Repo = (*ChannelRepoImpl)(nil)

type ChannelRepoImpl struct{ db *DB }

func NewChannelRepo(db *DB) *ChannelRepoImpl { return &ChannelRepoImpl{db: db} }

const (
	qChannelInsert = `
INSERT INTO channels (code, project_id, name, kind, value)
VALUES ($1, $2, $3, $4, $5)
RETURNING id;`

	qChannelByID = `
SELECT id, code, project_id, name, kind, value, disabled, last_notify, last_error
FROM channels
WHERE id = $1;`

	qChannelsByProject = `
SELECT id, code, project_id, name, kind, value, disabled, last_notify, last_error
FROM channels
WHERE project_id = $1
ORDER BY id;`

	qChannelsByCheck = `
SELECT c.id, c.code, c.project_id, c.name, c.kind, c.value, c.disabled, c.last_notify, c.last_error
FROM channels c
JOIN check_channels cc ON cc.channel_id = c.id
WHERE cc.check_id = $1
ORDER BY c.id;`

	qChannelAssign = `
INSERT INTO check_channels (check_id, channel_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING;`

	qChannelUpdate = `
UPDATE channels
SET name = $2, value = $3, disabled = $4, last_notify = $5, last_error = $6
WHERE id = $1;`

	qChannelDelete = `DELETE FROM channels WHERE id = $1;`
)

func scanChannel(row pgx.Row, c *channel.Channel) error {
	var kind string
	if err := row.Scan(
		&c.ID, &c.Code, &c.ProjectID, &c.Name, &kind, &c.Value,
		&c.Disabled, &c.LastNotify, &c.LastError,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan channel: %w", err)
	}
	c.Kind = channel.Kind(kind)
	return nil
}

func (r *ChannelRepoImpl) Create(ctx context.Context, c *channel.Channel) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if c.Code == uuid.Nil {
		c.Code = uuid.New()
	}
	eq := r.db.execQueryer(ctx)
	err := eq.QueryRow(ctx, qChannelInsert,
		c.Code, c.ProjectID, c.Name, string(c.Kind), c.Value,
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert channel: %w", err)
	}
	return nil
}

func (r *ChannelRepoImpl) GetByID(ctx context.Context, id int64) (*channel.Channel, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var c channel.Channel
	eq := r.db.execQueryer(ctx)
	if err := scanChannel(eq.QueryRow(ctx, qChannelByID, id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ChannelRepoImpl) ListByProject(ctx context.Context, projectID int64) ([]*channel.Channel, error) {
	return r.list(ctx, qChannelsByProject, projectID)
}

func (r *ChannelRepoImpl) ListByCheck(ctx context.Context, checkID int64) ([]*channel.Channel, error) {
	return r.list(ctx, qChannelsByCheck, checkID)
}

func (r *ChannelRepoImpl) list(ctx context.Context, q string, arg int64) ([]*channel.Channel, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	rows, err := eq.Query(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var out []*channel.Channel
	for rows.Next() {
		var c channel.Channel
		if err := scanChannel(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *ChannelRepoImpl) Assign(ctx context.Context, checkID, channelID int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	if _, err := eq.Exec(ctx, qChannelAssign, checkID, channelID); err != nil {
		return fmt.Errorf("assign channel: %w", err)
	}
	return nil
}

func (r *ChannelRepoImpl) Update(ctx context.Context, c *channel.Channel) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	cmd, err := eq.Exec(ctx, qChannelUpdate,
		c.ID, c.Name, c.Value, c.Disabled, c.LastNotify, c.LastError,
	)
	if err != nil {
		return fmt.Errorf("update channel: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ChannelRepoImpl) Delete(ctx context.Context, id int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	cmd, err := eq.Exec(ctx, qChannelDelete, id)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

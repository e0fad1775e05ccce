package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pulsekeep/pulsekeep/internal/domain/ping"
)

var _ ping.Repo = (*PingRepoImpl)(nil)

type PingRepoImpl struct{ db *DB }

func NewPingRepo(db *DB) *PingRepoImpl { return &PingRepoImpl{db: db} }

const (
	qPingInsert = `
INSERT INTO pings (check_id, n, created_at, kind, scheme, method, remote_addr, ua, body, body_raw, object_size, exitstatus)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id;`

	qPingsByCheck = `
SELECT id, check_id, n, created_at, kind, scheme, method, remote_addr, ua, body, body_raw, object_size, exitstatus
FROM pings
WHERE check_id = $1
ORDER BY n DESC
LIMIT $2;`

	qPingByN = `
SELECT id, check_id, n, created_at, kind, scheme, method, remote_addr, ua, body, body_raw, object_size, exitstatus
FROM pings
WHERE check_id = $1 AND n = $2;`

	qPingEarliest = `
SELECT created_at
FROM pings
WHERE check_id = $1
ORDER BY id
LIMIT 1;`

	qPingDeleteUpToN = `DELETE FROM pings WHERE check_id = $1 AND n <= $2;`
)

func (r *PingRepoImpl) Insert(ctx context.Context, p *ping.Ping) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	return eq.QueryRow(ctx, qPingInsert,
		p.CheckID, p.N, p.CreatedAt, string(p.Kind), p.Scheme, p.Method,
		p.RemoteAddr, p.UserAgent, p.Body, p.BodyRaw, p.ObjectSize, p.ExitStatus,
	).Scan(&p.ID)
}

// ListByCheck returns the most recent pings, newest first. Ordering by n
// rather than id keeps postgres on the (check_id, n) index.
func (r *PingRepoImpl) ListByCheck(ctx context.Context, checkID int64, limit int) ([]*ping.Ping, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	rows, err := eq.Query(ctx, qPingsByCheck, checkID, limit)
	if err != nil {
		return nil, fmt.Errorf("query pings: %w", err)
	}
	defer rows.Close()

	out := make([]*ping.Ping, 0, limit)
	for rows.Next() {
		var (
			p    ping.Ping
			kind string
		)
		if err := rows.Scan(
			&p.ID, &p.CheckID, &p.N, &p.CreatedAt, &kind, &p.Scheme, &p.Method,
			&p.RemoteAddr, &p.UserAgent, &p.Body, &p.BodyRaw, &p.ObjectSize, &p.ExitStatus,
		); err != nil {
			return nil, fmt.Errorf("scan ping: %w", err)
		}
		p.Kind = ping.Kind(kind)
		pc := p
		out = append(out, &pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *PingRepoImpl) GetByN(ctx context.Context, checkID, n int64) (*ping.Ping, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var (
		p    ping.Ping
		kind string
	)
	eq := r.db.execQueryer(ctx)
	err := eq.QueryRow(ctx, qPingByN, checkID, n).Scan(
		&p.ID, &p.CheckID, &p.N, &p.CreatedAt, &kind, &p.Scheme, &p.Method,
		&p.RemoteAddr, &p.UserAgent, &p.Body, &p.BodyRaw, &p.ObjectSize, &p.ExitStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ping by n: %w", err)
	}
	p.Kind = ping.Kind(kind)
	return &p, nil
}

func (r *PingRepoImpl) EarliestCreated(ctx context.Context, checkID int64) (time.Time, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t time.Time
	eq := r.db.execQueryer(ctx)
	if err := eq.QueryRow(ctx, qPingEarliest, checkID).Scan(&t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("earliest ping: %w", err)
	}
	return t, nil
}

func (r *PingRepoImpl) DeleteUpToN(ctx context.Context, checkID, n int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	if _, err := eq.Exec(ctx, qPingDeleteUpToN, checkID, n); err != nil {
		return fmt.Errorf("prune pings: %w", err)
	}
	return nil
}

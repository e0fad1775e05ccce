package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pulsekeep/pulsekeep/internal/domain/check"
)

var _ check.Repo = (*CheckRepoImpl)(nil)

type CheckRepoImpl struct {
	db *DB
}

func NewCheckRepo(db *DB) *CheckRepoImpl { return &CheckRepoImpl{db: db} }

const checkCols = `id, code, project_id, name, slug, tags, description, kind,
timeout_sec, grace_sec, schedule, tz, methods, manual_resume, n_pings,
last_ping, last_start, last_duration_ms, alert_after, status, created_at, updated_at`

const (
	qCheckInsert = `
INSERT INTO checks (code, project_id, name, slug, tags, description, kind,
                    timeout_sec, grace_sec, schedule, tz, methods, manual_resume, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING ` + checkCols + `;`

	qCheckByID = `
SELECT ` + checkCols + `
FROM checks
WHERE id = $1;`

	qCheckByCode = `
SELECT ` + checkCols + `
FROM checks
WHERE code = $1;`

	qChecksByProject = `
SELECT ` + checkCols + `
FROM checks
WHERE project_id = $1
ORDER BY id;`

	qCheckUpdate = `
UPDATE checks
SET name = $2, slug = $3, tags = $4, description = $5, kind = $6,
    timeout_sec = $7, grace_sec = $8, schedule = $9, tz = $10, methods = $11,
    manual_resume = $12, n_pings = $13, last_ping = $14, last_start = $15,
    last_duration_ms = $16, alert_after = $17, status = $18, updated_at = now()
WHERE id = $1
RETURNING ` + checkCols + `;`

	qCheckDelete = `DELETE FROM checks WHERE id = $1;`

	qChecksOverdue = `
SELECT ` + checkCols + `
FROM checks
WHERE status = 'up' AND alert_after IS NOT NULL AND alert_after <= $1
ORDER BY alert_after
FOR UPDATE SKIP LOCKED
LIMIT $2;`
)

func scanCheck(row pgx.Row, c *check.Check) error {
	var (
		kind, status   string
		timeoutSec     int64
		graceSec       int64
		lastDurationMS *int64
	)
	if err := row.Scan(
		&c.ID,
		&c.Code,
		&c.ProjectID,
		&c.Name,
		&c.Slug,
		&c.Tags,
		&c.Desc,
		&kind,
		&timeoutSec,
		&graceSec,
		&c.Schedule,
		&c.TZ,
		&c.Methods,
		&c.ManualResume,
		&c.NPings,
		&c.LastPing,
		&c.LastStart,
		&lastDurationMS,
		&c.AlertAfter,
		&status,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan check: %w", err)
	}
	c.Kind = check.Kind(kind)
	c.Status = check.Status(status)
	c.Timeout = time.Duration(timeoutSec) * time.Second
	c.Grace = time.Duration(graceSec) * time.Second
	c.LastDuration = msDuration(lastDurationMS)
	return nil
}

func (r *CheckRepoImpl) Create(ctx context.Context, c *check.Check) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if c.Code == uuid.Nil {
		c.Code = uuid.New()
	}
	eq := r.db.execQueryer(ctx)
	row := eq.QueryRow(ctx, qCheckInsert,
		c.Code, c.ProjectID, c.Name, c.Slug, c.Tags, c.Desc, string(c.Kind),
		int64(c.Timeout/time.Second), int64(c.Grace/time.Second),
		c.Schedule, c.TZ, c.Methods, c.ManualResume, string(c.Status),
	)
	if err := scanCheck(row, c); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (r *CheckRepoImpl) GetByID(ctx context.Context, id int64) (*check.Check, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var c check.Check
	eq := r.db.execQueryer(ctx)
	if err := scanCheck(eq.QueryRow(ctx, qCheckByID, id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CheckRepoImpl) GetByCode(ctx context.Context, code uuid.UUID) (*check.Check, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var c check.Check
	eq := r.db.execQueryer(ctx)
	if err := scanCheck(eq.QueryRow(ctx, qCheckByCode, code), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CheckRepoImpl) ListByProject(ctx context.Context, projectID int64) ([]*check.Check, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	rows, err := eq.Query(ctx, qChecksByProject, projectID)
	if err != nil {
		return nil, fmt.Errorf("query checks: %w", err)
	}
	defer rows.Close()

	var out []*check.Check
	for rows.Next() {
		var c check.Check
		if err := scanCheck(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *CheckRepoImpl) Update(ctx context.Context, c *check.Check) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	row := eq.QueryRow(ctx, qCheckUpdate,
		c.ID, c.Name, c.Slug, c.Tags, c.Desc, string(c.Kind),
		int64(c.Timeout/time.Second), int64(c.Grace/time.Second),
		c.Schedule, c.TZ, c.Methods, c.ManualResume, c.NPings,
		c.LastPing, c.LastStart, durationMS(c.LastDuration), c.AlertAfter,
		string(c.Status),
	)
	return scanCheck(row, c)
}

func (r *CheckRepoImpl) Delete(ctx context.Context, id int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	cmd, err := eq.Exec(ctx, qCheckDelete, id)
	if err != nil {
		return fmt.Errorf("delete check: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FetchOverdue claims up and overdue checks with a row lock, skipping rows
// another sentinel already holds. Call inside a transaction so the lock
// survives until the flip is committed.
func (r *CheckRepoImpl) FetchOverdue(ctx context.Context, now time.Time, limit int) ([]*check.Check, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	rows, err := eq.Query(ctx, qChecksOverdue, now, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch overdue: %w", err)
	}
	defer rows.Close()

	var out []*check.Check
	for rows.Next() {
		var c check.Check
		if err := scanCheck(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

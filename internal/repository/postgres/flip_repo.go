package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pulsekeep/pulsekeep/internal/domain/check"
	"github.com/pulsekeep/pulsekeep/internal/domain/flip"
)

var _ flip.Repo = (*FlipRepoImpl)(nil)

type FlipRepoImpl struct{ db *DB }

func NewFlipRepo(db *DB) *FlipRepoImpl { return &FlipRepoImpl{db: db} }

const (
	qFlipInsert = `
INSERT INTO flips (check_id, created_at, old_status, new_status)
VALUES ($1, $2, $3, $4)
RETURNING id;`

	qFlipByID = `
SELECT id, check_id, created_at, processed, old_status, new_status
FROM flips
WHERE id = $1;`

	qFlipsByCheck = `
SELECT id, check_id, created_at, processed, old_status, new_status
FROM flips
WHERE check_id = $1 AND created_at > $2
ORDER BY created_at DESC;`

	qFlipMarkProcessed = `UPDATE flips SET processed = $2 WHERE id = $1;`
)

func scanFlip(row pgx.Row, f *flip.Flip) error {
	var oldS, newS string
	if err := row.Scan(&f.ID, &f.CheckID, &f.CreatedAt, &f.Processed, &oldS, &newS); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan flip: %w", err)
	}
	f.OldStatus = check.Status(oldS)
	f.NewStatus = check.Status(newS)
	return nil
}

func (r *FlipRepoImpl) Insert(ctx context.Context, f *flip.Flip) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	return eq.QueryRow(ctx, qFlipInsert,
		f.CheckID, f.CreatedAt, string(f.OldStatus), string(f.NewStatus),
	).Scan(&f.ID)
}

func (r *FlipRepoImpl) GetByID(ctx context.Context, id int64) (*flip.Flip, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var f flip.Flip
	eq := r.db.execQueryer(ctx)
	if err := scanFlip(eq.QueryRow(ctx, qFlipByID, id), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FlipRepoImpl) ListByCheck(ctx context.Context, checkID int64, since time.Time) ([]*flip.Flip, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	rows, err := eq.Query(ctx, qFlipsByCheck, checkID, since)
	if err != nil {
		return nil, fmt.Errorf("query flips: %w", err)
	}
	defer rows.Close()

	var out []*flip.Flip
	for rows.Next() {
		var f flip.Flip
		if err := scanFlip(rows, &f); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *FlipRepoImpl) MarkProcessed(ctx context.Context, id int64, at time.Time) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	if _, err := eq.Exec(ctx, qFlipMarkProcessed, id, at); err != nil {
		return fmt.Errorf("mark flip processed: %w", err)
	}
	return nil
}

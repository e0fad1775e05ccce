package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pulsekeep/pulsekeep/internal/domain/ratelimit"
)

var _ ratelimit.Repo = (*BucketRepoImpl)(nil)

type BucketRepoImpl struct{ db *DB }

func NewBucketRepo(db *DB) *BucketRepoImpl { return &BucketRepoImpl{db: db} }

const (
	qBucketGet = `
SELECT value, tokens, updated_at
FROM token_buckets
WHERE value = $1;`

	qBucketUpsert = `
INSERT INTO token_buckets (value, tokens, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (value) DO UPDATE SET tokens = EXCLUDED.tokens, updated_at = EXCLUDED.updated_at;`
)

func (r *BucketRepoImpl) Get(ctx context.Context, value string) (*ratelimit.Bucket, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var b ratelimit.Bucket
	err := r.db.Pool.QueryRow(ctx, qBucketGet, value).Scan(&b.Value, &b.Tokens, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bucket: %w", err)
	}
	return &b, nil
}

func (r *BucketRepoImpl) Upsert(ctx context.Context, b *ratelimit.Bucket) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.Pool.Exec(ctx, qBucketUpsert, b.Value, b.Tokens, b.UpdatedAt); err != nil {
		return fmt.Errorf("upsert bucket: %w", err)
	}
	return nil
}

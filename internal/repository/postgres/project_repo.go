package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pulsekeep/pulsekeep/internal/domain/project"
)

var _ project.Repo = (*ProjectRepoImpl)(nil)

type ProjectRepoImpl struct{ db *DB }

func NewProjectRepo(db *DB) *ProjectRepoImpl { return &ProjectRepoImpl{db: db} }

const (
	qProjectInsert = `
INSERT INTO projects (code, name, key_id, key_hash, ping_log_limit)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at;`

	qProjectByID = `
SELECT id, code, name, key_id, key_hash, ping_log_limit, created_at
FROM projects
WHERE id = $1;`

	qProjectByKeyID = `
SELECT id, code, name, key_id, key_hash, ping_log_limit, created_at
FROM projects
WHERE key_id = $1;`
)

func scanProject(row pgx.Row, p *project.Project) error {
	if err := row.Scan(
		&p.ID, &p.Code, &p.Name, &p.KeyID, &p.KeyHash, &p.PingLogLimit, &p.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan project: %w", err)
	}
	return nil
}

func (r *ProjectRepoImpl) Create(ctx context.Context, p *project.Project) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if p.Code == uuid.Nil {
		p.Code = uuid.New()
	}
	if p.PingLogLimit <= 0 {
		p.PingLogLimit = project.DefaultPingLogLimit
	}
	err := r.db.Pool.QueryRow(ctx, qProjectInsert,
		p.Code, p.Name, p.KeyID, p.KeyHash, p.PingLogLimit,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r *ProjectRepoImpl) GetByID(ctx context.Context, id int64) (*project.Project, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var p project.Project
	if err := scanProject(r.db.Pool.QueryRow(ctx, qProjectByID, id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepoImpl) GetByKeyID(ctx context.Context, keyID string) (*project.Project, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var p project.Project
	if err := scanProject(r.db.Pool.QueryRow(ctx, qProjectByKeyID, keyID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

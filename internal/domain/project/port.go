package project

import "context"

type Repo interface {
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, id int64) (*Project, error)
	GetByKeyID(ctx context.Context, keyID string) (*Project, error)
}

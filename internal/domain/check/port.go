package check

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repo interface {
	Create(ctx context.Context, c *Check) error
	GetByID(ctx context.Context, id int64) (*Check, error)
	GetByCode(ctx context.Context, code uuid.UUID) (*Check, error)
	ListByProject(ctx context.Context, projectID int64) ([]*Check, error)
	Update(ctx context.Context, c *Check) error
	Delete(ctx context.Context, id int64) error
	FetchOverdue(ctx context.Context, now time.Time, limit int) ([]*Check, error)
}

package flip

import (
	"context"
	"time"
)

type Repo interface {
	Insert(ctx context.Context, f *Flip) error
	GetByID(ctx context.Context, id int64) (*Flip, error)
	ListByCheck(ctx context.Context, checkID int64, since time.Time) ([]*Flip, error)
	MarkProcessed(ctx context.Context, id int64, at time.Time) error
}

package ping

import (
	"context"
	"time"
)

type Repo interface {
	Insert(ctx context.Context, p *Ping) error
	ListByCheck(ctx context.Context, checkID int64, limit int) ([]*Ping, error)
	GetByN(ctx context.Context, checkID, n int64) (*Ping, error)
	EarliestCreated(ctx context.Context, checkID int64) (time.Time, error)
	DeleteUpToN(ctx context.Context, checkID, n int64) error
}

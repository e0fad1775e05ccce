package channel

import "context"

type Repo interface {
	Create(ctx context.Context, c *Channel) error
	GetByID(ctx context.Context, id int64) (*Channel, error)
	ListByProject(ctx context.Context, projectID int64) ([]*Channel, error)
	ListByCheck(ctx context.Context, checkID int64) ([]*Channel, error)
	Assign(ctx context.Context, checkID, channelID int64) error
	Update(ctx context.Context, c *Channel) error
	Delete(ctx context.Context, id int64) error
}

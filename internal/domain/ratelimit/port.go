package ratelimit

import "context"

type Repo interface {
	// Get returns nil without error when no bucket exists yet.
	Get(ctx context.Context, value string) (*Bucket, error)
	Upsert(ctx context.Context, b *Bucket) error
}

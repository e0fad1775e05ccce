package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memRepo struct {
	buckets map[string]Bucket
}

func (m *memRepo) Get(_ context.Context, value string) (*Bucket, error) {
	if b, ok := m.buckets[value]; ok {
		cp := b
		return &cp, nil
	}
	return nil, nil
}

func (m *memRepo) Upsert(_ context.Context, b *Bucket) error {
	m.buckets[b.Value] = *b
	return nil
}

func TestAuthorizeSpendAndDeny(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{buckets: map[string]Bucket{}}
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lim := NewLimiter(repo, func() time.Time { return clock })

	// Capacity 2: a fresh bucket allows exactly two spends back to back.
	for i := 0; i < 2; i++ {
		ok, err := lim.Authorize(ctx, "email-ch-1", 2, time.Minute)
		require.NoError(t, err)
		require.True(t, ok, "spend %d", i)
	}
	ok, err := lim.Authorize(ctx, "email-ch-1", 2, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAuthorizeRefill(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{buckets: map[string]Bucket{}}
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lim := NewLimiter(repo, func() time.Time { return clock })

	for i := 0; i < 2; i++ {
		ok, err := lim.Authorize(ctx, "wh", 2, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := lim.Authorize(ctx, "wh", 2, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	// Half the refill window restores half a token: one more spend fits.
	clock = clock.Add(30 * time.Second)
	ok, err = lim.Authorize(ctx, "wh", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = lim.Authorize(ctx, "wh", 2, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAuthorizeDenyDoesNotTouchBucket(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{buckets: map[string]Bucket{}}
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lim := NewLimiter(repo, func() time.Time { return clock })

	ok, err := lim.Authorize(ctx, "b", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	saved := repo.buckets["b"]

	ok, err = lim.Authorize(ctx, "b", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, saved, repo.buckets["b"])
}

func TestAuthorizeBadBudget(t *testing.T) {
	lim := NewLimiter(&memRepo{buckets: map[string]Bucket{}}, nil)
	_, err := lim.Authorize(context.Background(), "b", 0, time.Minute)
	require.Error(t, err)
}

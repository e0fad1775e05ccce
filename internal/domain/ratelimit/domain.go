package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Bucket holds a normalized token balance in [0, 1]. One operation costs
// 1/capacity; the balance refills fully over the refill interval.
type Bucket struct {
	Value     string    `json:"value"`
	Tokens    float64   `json:"tokens"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Limiter struct {
	repo Repo
	now  func() time.Time
}

func NewLimiter(repo Repo, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{repo: repo, now: now}
}

// Authorize spends one token from the named bucket. A denied spend is not
// persisted, so refill keeps counting from the last allowed operation.
func (l *Limiter) Authorize(ctx context.Context, value string, capacity int, refill time.Duration) (bool, error) {
	if capacity <= 0 || refill <= 0 {
		return false, fmt.Errorf("ratelimit: bad budget %d/%s", capacity, refill)
	}
	now := l.now()

	b, err := l.repo.Get(ctx, value)
	if err != nil {
		return false, fmt.Errorf("ratelimit: get %q: %w", value, err)
	}
	if b == nil {
		b = &Bucket{Value: value, Tokens: 1.0, UpdatedAt: now}
	} else {
		delta := now.Sub(b.UpdatedAt).Seconds()
		b.Tokens = math.Min(1.0, b.Tokens+delta/refill.Seconds())
	}

	b.Tokens -= 1.0 / float64(capacity)
	if b.Tokens < 0 {
		return false, nil
	}

	b.UpdatedAt = now
	if err := l.repo.Upsert(ctx, b); err != nil {
		return false, fmt.Errorf("ratelimit: save %q: %w", value, err)
	}
	return true, nil
}

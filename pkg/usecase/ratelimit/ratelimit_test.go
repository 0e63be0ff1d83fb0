package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AustinJR6/wwjd-memory/pkg/model"
	"github.com/AustinJR6/wwjd-memory/pkg/repository"
	"github.com/AustinJR6/wwjd-memory/pkg/usecase/ratelimit"
	"github.com/m-mizutani/gt"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func newLimiter(t *testing.T) (*ratelimit.Limiter, *repository.Memory, *clock) {
	t.Helper()
	repo := repository.NewMemory()
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	return ratelimit.New(repo, ratelimit.WithClock(c.Now)), repo, c
}

func TestLimiterBoundary(t *testing.T) {
	ctx := context.Background()
	limiter, _, _ := newLimiter(t)

	for i := 0; i < ratelimit.DefaultLimit; i++ {
		gt.NoError(t, limiter.Check(ctx, "u1"))
	}

	err := limiter.Check(ctx, "u1")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrRateLimited))

	// other users have their own window
	gt.NoError(t, limiter.Check(ctx, "u2"))
}

func TestLimiterWindowExpiry(t *testing.T) {
	ctx := context.Background()
	limiter, _, c := newLimiter(t)

	for i := 0; i < ratelimit.DefaultLimit; i++ {
		gt.NoError(t, limiter.Check(ctx, "u1"))
	}
	gt.True(t, errors.Is(limiter.Check(ctx, "u1"), model.ErrRateLimited))

	// still inside the window one second before expiry
	c.now = c.now.Add(59 * time.Second)
	gt.True(t, errors.Is(limiter.Check(ctx, "u1"), model.ErrRateLimited))

	// events exactly window seconds old are dropped
	c.now = c.now.Add(1 * time.Second)
	gt.NoError(t, limiter.Check(ctx, "u1"))
}

func TestLimiterRejectedCallsAreRecorded(t *testing.T) {
	ctx := context.Background()
	limiter, repo, _ := newLimiter(t)

	for i := 0; i < 15; i++ {
		_ = limiter.Check(ctx, "u1")
	}
	gt.A(t, repo.RateLimitEvents("u1")).Length(15)
}

func TestLimiterCapsStoredEvents(t *testing.T) {
	ctx := context.Background()
	limiter, repo, _ := newLimiter(t)

	for i := 0; i < 80; i++ {
		_ = limiter.Check(ctx, "u1")
	}
	gt.A(t, repo.RateLimitEvents("u1")).Length(model.MaxRateLimitEvents)
}

func TestLimiterKeepsWindowSorted(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	base := time.Unix(1_700_000_000, 0)

	for _, ts := range []int64{base.Unix() - 5, base.Unix() - 30, base.Unix() - 100} {
		gt.NoError(t, repo.AppendRateLimitEvent(ctx, "u1", ts))
	}

	limiter := ratelimit.New(repo, ratelimit.WithClock(func() time.Time { return base }))
	gt.NoError(t, limiter.Check(ctx, "u1"))

	gt.Equal(t, repo.RateLimitEvents("u1"), []int64{base.Unix() - 30, base.Unix() - 5, base.Unix()})
}

func TestLimiterOptions(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	now := time.Unix(1_700_000_000, 0)
	limiter := ratelimit.New(repo,
		ratelimit.WithLimit(2),
		ratelimit.WithWindow(10*time.Second),
		ratelimit.WithClock(func() time.Time { return now }),
	)

	gt.NoError(t, limiter.Check(ctx, "u1"))
	gt.NoError(t, limiter.Check(ctx, "u1"))
	gt.True(t, errors.Is(limiter.Check(ctx, "u1"), model.ErrRateLimited))

	now = now.Add(10 * time.Second)
	gt.NoError(t, limiter.Check(ctx, "u1"))
}

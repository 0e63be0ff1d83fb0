// Package ratelimit implements the per-user sliding window shared by the
// memory endpoints.
package ratelimit

import (
	"context"
	"sort"
	"time"

	"github.com/AustinJR6/wwjd-memory/pkg/interfaces"
	"github.com/AustinJR6/wwjd-memory/pkg/model"
	"github.com/AustinJR6/wwjd-memory/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const (
	DefaultLimit  = 10
	DefaultWindow = 60 * time.Second
)

type Limiter struct {
	repo   interfaces.Repository
	limit  int
	window time.Duration
	now    func() time.Time
}

type Option func(*Limiter)

func WithLimit(limit int) Option {
	return func(l *Limiter) {
		l.limit = limit
	}
}

func WithWindow(window time.Duration) Option {
	return func(l *Limiter) {
		l.window = window
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func New(repo interfaces.Repository, opts ...Option) *Limiter {
	l := &Limiter{
		repo:   repo,
		limit:  DefaultLimit,
		window: DefaultWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one call for uid and fails with model.ErrRateLimited when
// the window holds more than the limit. The rejected call stays recorded.
func (l *Limiter) Check(ctx context.Context, uid string) error {
	now := l.now().Unix()

	if err := l.repo.AppendRateLimitEvent(ctx, uid, now); err != nil {
		// the transactional prune below still sees earlier events
		logging.From(ctx).Warn("failed to append rate limit event", "uid", uid, "error", err)
	}

	err := l.repo.UpdateRateLimitWindow(ctx, uid, func(events []int64) ([]int64, error) {
		return prune(events, now, int64(l.window/time.Second), l.limit)
	})
	if err != nil {
		return goerr.Wrap(err, "rate limit check failed", goerr.V("uid", uid))
	}

	return nil
}

func prune(events []int64, now, windowSec int64, limit int) ([]int64, error) {
	kept := make([]int64, 0, len(events))
	for _, t := range events {
		if t > now-windowSec {
			kept = append(kept, t)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i] < kept[j] })

	if len(kept) > model.MaxRateLimitEvents {
		kept = kept[len(kept)-model.MaxRateLimitEvents:]
	}

	if len(kept) > limit {
		return kept, goerr.Wrap(model.ErrRateLimited, "rate limit exceeded",
			goerr.V("count", len(kept)),
			goerr.V("limit", limit))
	}
	return kept, nil
}

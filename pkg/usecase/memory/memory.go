// Package memory implements ingestion, retrieval and reinforcement of user memories.
package memory

import (
	"context"
	"errors"
	"time"

	"github.com/AustinJR6/wwjd-memory/pkg/interfaces"
	"github.com/AustinJR6/wwjd-memory/pkg/model"
	"github.com/AustinJR6/wwjd-memory/pkg/usecase/ratelimit"
	"github.com/m-mizutani/goerr/v2"
)

const DefaultUpstreamTimeout = 10 * time.Second

// RateLimiter rejects a call with model.ErrRateLimited when uid is over its budget
type RateLimiter interface {
	Check(ctx context.Context, uid string) error
}

// UseCase provides memory operations for one authenticated user at a time
type UseCase struct {
	repo      interfaces.Repository
	embedder  interfaces.Embedder
	extractor interfaces.Extractor
	limiter   RateLimiter

	cfg     Config
	timeout time.Duration
	now     func() time.Time
}

// Option is a functional option for UseCase
type Option func(*UseCase)

func WithConfig(cfg Config) Option {
	return func(uc *UseCase) {
		uc.cfg = cfg
	}
}

// WithRateLimiter replaces the limiter built from Config
func WithRateLimiter(limiter RateLimiter) Option {
	return func(uc *UseCase) {
		uc.limiter = limiter
	}
}

// WithUpstreamTimeout bounds each embedding and extraction call
func WithUpstreamTimeout(d time.Duration) Option {
	return func(uc *UseCase) {
		uc.timeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		uc.now = now
	}
}

// New creates a new memory UseCase instance
func New(
	repo interfaces.Repository,
	embedder interfaces.Embedder,
	extractor interfaces.Extractor,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		repo:      repo,
		embedder:  embedder,
		extractor: extractor,
		cfg:       DefaultConfig(),
		timeout:   DefaultUpstreamTimeout,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	if uc.limiter == nil {
		uc.limiter = ratelimit.New(repo,
			ratelimit.WithLimit(uc.cfg.RateLimit),
			ratelimit.WithWindow(uc.cfg.RateWindow),
			ratelimit.WithClock(uc.now),
		)
	}

	return uc
}

// embed calls the embedding provider under the upstream timeout
func (u *UseCase) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	v, err := u.embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, goerr.Wrap(model.ErrUpstreamTimeout, "embedding timed out", goerr.V("timeout", u.timeout))
		}
		return nil, goerr.Wrap(err, "failed to embed text")
	}
	return v, nil
}

func (u *UseCase) extract(ctx context.Context, text string) ([]model.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	candidates, err := u.extractor.Extract(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to extract memories")
	}
	return candidates, nil
}

func requireUID(uid string) error {
	if uid == "" {
		return goerr.Wrap(model.ErrUnauthorized, "uid is required")
	}
	return nil
}

package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AustinJR6/wwjd-memory/pkg/interfaces"
	"github.com/AustinJR6/wwjd-memory/pkg/model"
	"github.com/google/uuid"
)

// Memory implements interfaces.Repository in process. It backs the
// --in-memory mode of the CLI and the usecase tests.
type Memory struct {
	mu sync.Mutex

	memories  map[string][]*model.Memory
	windows   map[string][]int64
	profiles  map[string]*model.Profile
	goals     map[string][]*model.Goal
	summaries map[string][]*model.SessionSummary

	now func() time.Time
}

var _ interfaces.Repository = (*Memory)(nil)

type MemoryOption func(*Memory)

// WithClock replaces the clock used to stamp CreatedAt and UpdatedAt
func WithClock(now func() time.Time) MemoryOption {
	return func(r *Memory) {
		r.now = now
	}
}

// NewMemory creates an empty in-process repository
func NewMemory(opts ...MemoryOption) *Memory {
	r := &Memory{
		memories:  make(map[string][]*model.Memory),
		windows:   make(map[string][]int64),
		profiles:  make(map[string]*model.Profile),
		goals:     make(map[string][]*model.Goal),
		summaries: make(map[string][]*model.SessionSummary),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func copyMemory(m *model.Memory) *model.Memory {
	c := *m
	c.Tags = append([]string(nil), m.Tags...)
	c.Embedding = append([]float32(nil), m.Embedding...)
	return &c
}

func (r *Memory) PutMemory(ctx context.Context, memory *model.Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	memory.ID = model.NewMemoryID()
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = r.now()
	}
	if memory.UpdatedAt.IsZero() {
		memory.UpdatedAt = memory.CreatedAt
	}
	r.memories[memory.UID] = append(r.memories[memory.UID], copyMemory(memory))
	return nil
}

func (r *Memory) ListRecentMemories(ctx context.Context, uid string, limit int) ([]*model.Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.memories[uid]
	sorted := make([]*model.Memory, len(stored))
	copy(sorted, stored)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt)
	})

	return copyMemories(sorted, limit), nil
}

func (r *Memory) ListMemories(ctx context.Context, uid string, limit int) ([]*model.Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return copyMemories(r.memories[uid], limit), nil
}

func copyMemories(src []*model.Memory, limit int) []*model.Memory {
	n := min(len(src), limit)
	out := make([]*model.Memory, 0, n)
	for _, m := range src[:n] {
		out = append(out, copyMemory(m))
	}
	return out
}

func (r *Memory) find(uid string, id model.MemoryID) *model.Memory {
	for _, m := range r.memories[uid] {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (r *Memory) UpdateMemoryDecayScore(ctx context.Context, uid string, id model.MemoryID, delta, ceiling float64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.find(uid, id)
	if m == nil {
		return false, nil
	}

	m.DecayScore = nextDecayScore(m.DecayScore, delta, ceiling)
	m.UpdatedAt = r.now()
	return true, nil
}

func (r *Memory) SetMemoryPinned(ctx context.Context, uid string, id model.MemoryID, pinned bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.find(uid, id)
	if m == nil {
		return model.ErrMemoryNotFound
	}

	m.Pinned = pinned
	m.UpdatedAt = r.now()
	return nil
}

func (r *Memory) AppendRateLimitEvent(ctx context.Context, uid string, ts int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.windows[uid] = append(r.windows[uid], ts)
	return nil
}

func (r *Memory) UpdateRateLimitWindow(ctx context.Context, uid string, update interfaces.RateLimitUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := append([]int64(nil), r.windows[uid]...)
	next, err := update(events)
	r.windows[uid] = next
	return err
}

// RateLimitEvents returns a copy of the stored window of uid
func (r *Memory) RateLimitEvents(uid string) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]int64(nil), r.windows[uid]...)
}

func (r *Memory) GetProfile(ctx context.Context, uid string) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[uid]
	if !ok {
		return &model.Profile{}, nil
	}
	c := *p
	return &c, nil
}

func (r *Memory) ListOpenGoals(ctx context.Context, uid string, limit int) ([]*model.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var goals []*model.Goal
	for _, g := range r.goals[uid] {
		if len(goals) >= limit {
			break
		}
		if g.Status == model.GoalStatusDone {
			continue
		}
		c := *g
		goals = append(goals, &c)
	}
	return goals, nil
}

func (r *Memory) GetLatestSessionSummary(ctx context.Context, uid string) (*model.SessionSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *model.SessionSummary
	for _, s := range r.summaries[uid] {
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	c := *latest
	return &c, nil
}

// PutProfile stores the profile of uid. Profiles are owned by another
// service in production; this exists for local runs and tests.
func (r *Memory) PutProfile(uid string, profile *model.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *profile
	r.profiles[uid] = &c
}

// PutGoal appends a goal for uid and assigns its ID when empty
func (r *Memory) PutGoal(uid string, goal *model.Goal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}
	c := *goal
	r.goals[uid] = append(r.goals[uid], &c)
}

// PutSessionSummary appends a session summary for uid
func (r *Memory) PutSessionSummary(uid string, summary *model.SessionSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *summary
	r.summaries[uid] = append(r.summaries[uid], &c)
}

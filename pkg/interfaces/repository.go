package interfaces

import (
	"context"

	"github.com/AustinJR6/wwjd-memory/pkg/model"
)

// RateLimitUpdate receives the stored events of a window and returns the
// events to persist. Returning an error still persists the returned events.
type RateLimitUpdate func(events []int64) ([]int64, error)

// Repository defines the per-user document store used by the memory engine
type Repository interface {
	// PutMemory creates a memory record. The store assigns memory.ID.
	PutMemory(ctx context.Context, memory *model.Memory) error

	// ListRecentMemories retrieves up to limit memories ordered by UpdatedAt descending
	ListRecentMemories(ctx context.Context, uid string, limit int) ([]*model.Memory, error)

	// ListMemories retrieves up to limit memories in store default order
	ListMemories(ctx context.Context, uid string, limit int) ([]*model.Memory, error)

	// UpdateMemoryDecayScore adds delta to the decay score, capped at ceiling, and
	// stamps UpdatedAt atomically. It returns false when the memory does not exist.
	UpdateMemoryDecayScore(ctx context.Context, uid string, id model.MemoryID, delta, ceiling float64) (bool, error)

	// SetMemoryPinned sets the pinned flag and stamps UpdatedAt. It returns
	// model.ErrMemoryNotFound when the memory does not exist.
	SetMemoryPinned(ctx context.Context, uid string, id model.MemoryID, pinned bool) error

	// AppendRateLimitEvent appends ts to the user's window with a merge write
	AppendRateLimitEvent(ctx context.Context, uid string, ts int64) error

	// UpdateRateLimitWindow runs update inside a read-modify-write transaction
	UpdateRateLimitWindow(ctx context.Context, uid string, update RateLimitUpdate) error

	// GetProfile retrieves the profile subset of a user. Missing users yield an empty profile.
	GetProfile(ctx context.Context, uid string) (*model.Profile, error)

	// ListOpenGoals retrieves up to limit goals whose status is not done
	ListOpenGoals(ctx context.Context, uid string, limit int) ([]*model.Goal, error)

	// GetLatestSessionSummary retrieves the newest session summary, or nil when none exists
	GetLatestSessionSummary(ctx context.Context, uid string) (*model.SessionSummary, error)
}

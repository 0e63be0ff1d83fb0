package memory

import (
	"context"

	"github.com/AustinJR6/wwjd-memory/pkg/model"
	"github.com/AustinJR6/wwjd-memory/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// ReinforceMemories boosts the decay score of each memory that still exists
// and returns how many were reinforced. Unknown ids are skipped. Reinforcement
// is not rate limited.
func (u *UseCase) ReinforceMemories(ctx context.Context, uid string, ids []string) (int, error) {
	if err := requireUID(uid); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, goerr.Wrap(model.ErrBadRequest, "memoryIds is required")
	}

	var reinforced int
	for _, id := range ids {
		if id == "" {
			continue
		}

		found, err := u.repo.UpdateMemoryDecayScore(ctx, uid, model.MemoryID(id), u.cfg.ReinforceStep, u.cfg.DecayCeiling)
		if err != nil {
			return reinforced, goerr.Wrap(err, "failed to reinforce memory", goerr.V("memory_id", id))
		}
		if found {
			reinforced++
		}
	}

	logging.From(ctx).Debug("memories reinforced", "uid", uid, "requested", len(ids), "reinforced", reinforced)
	return reinforced, nil
}

// SetPinned sets the pinned flag of one memory. It fails with
// model.ErrMemoryNotFound when the memory does not exist.
func (u *UseCase) SetPinned(ctx context.Context, uid, id string, pinned bool) error {
	if err := requireUID(uid); err != nil {
		return err
	}
	if id == "" {
		return goerr.Wrap(model.ErrBadRequest, "memoryId is required")
	}

	if err := u.repo.SetMemoryPinned(ctx, uid, model.MemoryID(id), pinned); err != nil {
		return goerr.Wrap(err, "failed to set pinned", goerr.V("memory_id", id), goerr.V("pinned", pinned))
	}
	return nil
}

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/AustinJR6/wwjd-memory/pkg/model"
	"github.com/AustinJR6/wwjd-memory/pkg/utils/logging"
	"github.com/AustinJR6/wwjd-memory/pkg/vector"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// Score ranks a memory against the query embedding. A memory without a
// usable embedding contributes 0 for the similarity term.
func Score(m *model.Memory, query []float32, w Weights) float64 {
	var cos float64
	if len(m.Embedding) > 0 && len(query) > 0 {
		cos = vector.Similarity(query, m.Embedding)
	}

	score := w.Similarity*cos +
		w.Importance*(float64(m.Importance)/model.MaxImportance) +
		w.Decay*m.DecayScore
	if m.Pinned {
		score += w.PinBoost
	}
	return score
}

// Render formats a memory as one prompt line
func Render(m *model.Memory) string {
	return fmt.Sprintf("(%s|%d) %s", m.Type, m.Importance, m.Text)
}

// PrepareUserContext ranks the user's memories against userMessage and bundles
// the best ones with profile, open goals and the latest session summary.
func (u *UseCase) PrepareUserContext(ctx context.Context, uid, userMessage string) (*model.UserContext, error) {
	if err := requireUID(uid); err != nil {
		return nil, err
	}
	if strings.TrimSpace(userMessage) == "" {
		return nil, goerr.Wrap(model.ErrBadRequest, "userMessage is required")
	}

	if err := u.limiter.Check(ctx, uid); err != nil {
		return nil, err
	}

	memories, err := u.repo.ListMemories(ctx, uid, u.cfg.CandidateLimit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load memories", goerr.V("uid", uid))
	}

	query, err := u.embed(ctx, userMessage)
	if err != nil {
		return nil, err
	}

	type scored struct {
		memory *model.Memory
		score  float64
	}
	ranked := make([]scored, 0, len(memories))
	for _, m := range memories {
		ranked = append(ranked, scored{memory: m, score: Score(m, query, u.cfg.Weights)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > u.cfg.TopK {
		ranked = ranked[:u.cfg.TopK]
	}

	result := &model.UserContext{
		Profile:           "{}",
		Goals:             []*model.Goal{},
		Memories:          make([]string, 0, len(ranked)),
		SelectedMemoryIDs: make([]string, 0, len(ranked)),
	}
	for _, r := range ranked {
		result.Memories = append(result.Memories, Render(r.memory))
		result.SelectedMemoryIDs = append(result.SelectedMemoryIDs, string(r.memory.ID))
	}

	u.readSideContext(ctx, uid, result)

	return result, nil
}

// readSideContext fills profile, goals and session summary. Failures are
// logged and leave the defaults in place.
func (u *UseCase) readSideContext(ctx context.Context, uid string, result *model.UserContext) {
	logger := logging.From(ctx)

	var g errgroup.Group

	g.Go(func() error {
		profile, err := u.repo.GetProfile(ctx, uid)
		if err != nil {
			logger.Warn("failed to read profile", "uid", uid, "error", err)
			return nil
		}
		raw, err := json.Marshal(profile)
		if err != nil {
			logger.Warn("failed to encode profile", "uid", uid, "error", err)
			return nil
		}
		result.Profile = string(raw)
		return nil
	})

	g.Go(func() error {
		goals, err := u.repo.ListOpenGoals(ctx, uid, u.cfg.GoalLimit)
		if err != nil {
			logger.Warn("failed to read goals", "uid", uid, "error", err)
			return nil
		}
		if goals != nil {
			result.Goals = goals
		}
		return nil
	})

	g.Go(func() error {
		summary, err := u.repo.GetLatestSessionSummary(ctx, uid)
		if err != nil {
			logger.Warn("failed to read session summary", "uid", uid, "error", err)
			return nil
		}
		if summary != nil {
			result.SessionSummary = summary.Summary
		}
		return nil
	})

	_ = g.Wait()
}

package memory

import (
	"context"
	"strings"

	"github.com/AustinJR6/wwjd-memory/pkg/model"
	"github.com/AustinJR6/wwjd-memory/pkg/utils/logging"
	"github.com/AustinJR6/wwjd-memory/pkg/vector"
	"github.com/m-mizutani/goerr/v2"
)

// IngestResult reports what one ingestion call did
type IngestResult struct {
	// Candidates is the number of items returned by the extractor
	Candidates int
	// Written is the number of memories persisted
	Written int
	IDs     []model.MemoryID
}

// ExtractMemoriesFromText extracts durable facts from text and persists the
// ones that are not near-duplicates of the user's recent memories.
func (u *UseCase) ExtractMemoriesFromText(ctx context.Context, uid, text, source string) (*IngestResult, error) {
	if err := requireUID(uid); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(model.ErrBadRequest, "text is required")
	}
	if source == "" {
		source = u.cfg.DefaultSource
	}

	if err := u.limiter.Check(ctx, uid); err != nil {
		return nil, err
	}

	logger := logging.From(ctx)

	candidates, err := u.extract(ctx, text)
	if err != nil {
		return nil, err
	}
	result := &IngestResult{Candidates: len(candidates)}
	if len(candidates) == 0 {
		return result, nil
	}

	recent, err := u.repo.ListRecentMemories(ctx, uid, u.cfg.BaselineLimit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load novelty baseline", goerr.V("uid", uid))
	}
	baseline := make([][]float32, 0, len(recent))
	for _, m := range recent {
		baseline = append(baseline, m.Embedding)
	}

	for _, c := range candidates {
		if !model.ValidTextLength(c.Text) {
			logger.Debug("skip candidate by length", "uid", uid, "length", len([]rune(c.Text)))
			continue
		}
		if err := c.Type.Validate(); err != nil {
			logger.Debug("skip candidate by type", "uid", uid, "type", c.Type)
			continue
		}

		vec, err := u.embed(ctx, c.Text)
		if err != nil {
			return nil, err
		}

		maxCos := vector.MaxSimilarity(vec, baseline, u.cfg.DuplicateThreshold)
		if maxCos > u.cfg.DuplicateThreshold {
			logger.Debug("skip near-duplicate candidate", "uid", uid, "similarity", maxCos)
			continue
		}

		memory := &model.Memory{
			UID:        uid,
			Type:       c.Type,
			Text:       c.Text,
			Importance: min(max(c.Importance, model.MinImportance), model.MaxImportance),
			Tags:       normalizeTags(c.Tags),
			Embedding:  vector.Round(vec, u.cfg.EmbeddingDecimals),
			Novelty:    maxCos,
			DecayScore: model.InitialDecayScore,
			Source:     source,
		}
		if err := u.repo.PutMemory(ctx, memory); err != nil {
			return nil, goerr.Wrap(err, "failed to persist memory", goerr.V("uid", uid))
		}

		result.Written++
		result.IDs = append(result.IDs, memory.ID)
	}

	logger.Info("memories ingested", "uid", uid, "candidates", result.Candidates, "written", result.Written)
	return result, nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, min(len(tags), model.MaxTags))
	for _, t := range tags {
		if len(out) >= model.MaxTags {
			break
		}
		out = append(out, t)
	}
	return out
}

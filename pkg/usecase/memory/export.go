package memory

import (
	"context"
	"encoding/json"
	"io"

	"github.com/m-mizutani/goerr/v2"
)

const ExportLimit = 1000

// ExportMemories writes up to ExportLimit memories of uid to w as JSON lines,
// newest first. Embeddings are left out.
func (u *UseCase) ExportMemories(ctx context.Context, uid string, w io.Writer) (int, error) {
	if err := requireUID(uid); err != nil {
		return 0, err
	}

	memories, err := u.repo.ListRecentMemories(ctx, uid, ExportLimit)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to load memories", goerr.V("uid", uid))
	}

	enc := json.NewEncoder(w)
	for i, m := range memories {
		m.Embedding = nil
		if err := enc.Encode(m); err != nil {
			return i, goerr.Wrap(err, "failed to write memory", goerr.V("memory_id", m.ID))
		}
	}

	return len(memories), nil
}

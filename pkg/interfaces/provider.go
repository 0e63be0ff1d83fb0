package interfaces

import (
	"context"

	"github.com/AustinJR6/wwjd-memory/pkg/model"
)

// Embedder converts text into a fixed-dimension vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dims returns the dimension of vectors produced by Embed
	Dims() int
}

// Extractor turns free-form text into at most a few memory candidates.
// Implementations degrade to an empty list instead of failing.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]model.Candidate, error)
}

// IdentityVerifier resolves a bearer credential to the owning user id
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

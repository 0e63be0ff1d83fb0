// Package embedding converts text into vectors for similarity search. The
// provider is chosen once at startup.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/AustinJR6/wwjd-memory/pkg/adapter"
	"github.com/AustinJR6/wwjd-memory/pkg/interfaces"
	"github.com/AustinJR6/wwjd-memory/pkg/vector"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

const (
	ProviderAuto   = "auto"
	ProviderGemini = "gemini"
	ProviderLocal  = "local"

	RemoteDims = 1536
	LocalDims  = 512
)

var ErrUnknownProvider = goerr.New("unknown embedding provider")

// Config selects the embedding provider
type Config struct {
	// Provider is one of auto, gemini or local. auto picks gemini when a client is available.
	Provider string
	// Dims overrides the output dimensionality of the remote provider
	Dims int
}

// ProviderError is a non-success response from the remote provider
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider returned status %d: %s", e.Status, e.Body)
}

// New returns the embedder described by cfg. client may be nil when no
// remote credential is configured.
func New(cfg Config, client adapter.Gemini) (interfaces.Embedder, error) {
	switch cfg.Provider {
	case ProviderGemini:
		if client == nil {
			return nil, goerr.New("gemini embedding requires gemini credentials")
		}
		return NewRemote(client, cfg.Dims), nil

	case ProviderLocal:
		return NewLocal(), nil

	case ProviderAuto, "":
		if client != nil {
			return NewRemote(client, cfg.Dims), nil
		}
		return NewLocal(), nil

	default:
		return nil, goerr.Wrap(ErrUnknownProvider, "invalid embedding provider", goerr.V("provider", cfg.Provider))
	}
}

// Remote embeds text with the Gemini embedding model
type Remote struct {
	client adapter.Gemini
	dims   int
}

var _ interfaces.Embedder = (*Remote)(nil)

func NewRemote(client adapter.Gemini, dims int) *Remote {
	if dims <= 0 {
		dims = RemoteDims
	}
	return &Remote{client: client, dims: dims}
}

func (r *Remote) Dims() int { return r.dims }

func (r *Remote) Embed(ctx context.Context, text string) ([]float32, error) {
	values, err := r.client.Embedding(ctx, text, r.dims)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, goerr.Wrap(&ProviderError{Status: apiErr.Code, Body: apiErr.Message},
				"failed to embed text", goerr.V("status", apiErr.Status))
		}
		return nil, goerr.Wrap(err, "failed to embed text")
	}

	return values, nil
}

// Local is a deterministic histogram of code points. It needs no credentials
// and is meant for development and tests, not for retrieval quality.
type Local struct{}

var _ interfaces.Embedder = (*Local)(nil)

func NewLocal() *Local { return &Local{} }

func (l *Local) Dims() int { return LocalDims }

func (l *Local) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, LocalDims)
	for _, r := range text {
		v[int(r)%LocalDims]++
	}
	return vector.Normalize(v), nil
}

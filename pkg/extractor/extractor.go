// Package extractor asks an LLM for durable facts in conversation text. Every
// implementation degrades to an empty list instead of failing ingestion.
package extractor

import (
	"context"
	_ "embed"

	"github.com/AustinJR6/wwjd-memory/pkg/adapter"
	"github.com/AustinJR6/wwjd-memory/pkg/interfaces"
	"github.com/AustinJR6/wwjd-memory/pkg/model"
	"github.com/AustinJR6/wwjd-memory/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

const (
	MaxCandidates       = 3
	MaxCandidateTextLen = 160
)

//go:embed prompt/extract.md
var extractPrompt string

// New picks Gemini when available, then Claude, and otherwise an extractor
// that never finds anything.
func New(gemini adapter.Gemini, claude adapter.Claude) interfaces.Extractor {
	switch {
	case gemini != nil:
		return NewGemini(gemini)
	case claude != nil:
		return NewClaude(claude)
	default:
		return &Nop{}
	}
}

// Gemini extracts with structured JSON output
type Gemini struct {
	client adapter.Gemini
}

var _ interfaces.Extractor = (*Gemini)(nil)

func NewGemini(client adapter.Gemini) *Gemini {
	return &Gemini{client: client}
}

func (g *Gemini) config() (*genai.GenerateContentConfig, error) {
	schema, err := toGenaiSchema(responseSchema())
	if err != nil {
		return nil, err
	}

	thinkingBudget := int32(0)
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(extractPrompt, ""),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
		Temperature:       genai.Ptr(float32(0.2)),
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
	}, nil
}

func (g *Gemini) Extract(ctx context.Context, text string) ([]model.Candidate, error) {
	logger := logging.From(ctx)

	config, err := g.config()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build extraction config")
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := g.client.GenerateContent(ctx, contents, config)
	if err != nil {
		logger.Warn("memory extraction failed", "error", err)
		return nil, nil
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		logger.Warn("empty extraction response")
		return nil, nil
	}

	return parseOrEmpty(ctx, resp.Candidates[0].Content.Parts[0].Text), nil
}

// Claude extracts by prompting for a JSON document
type Claude struct {
	client adapter.Claude
}

var _ interfaces.Extractor = (*Claude)(nil)

func NewClaude(client adapter.Claude) *Claude {
	return &Claude{client: client}
}

func (c *Claude) Extract(ctx context.Context, text string) ([]model.Candidate, error) {
	reply, err := c.client.Generate(ctx, extractPrompt, text)
	if err != nil {
		logging.From(ctx).Warn("memory extraction failed", "error", err)
		return nil, nil
	}

	return parseOrEmpty(ctx, reply), nil
}

// Nop is used when no LLM is configured
type Nop struct{}

var _ interfaces.Extractor = (*Nop)(nil)

func (n *Nop) Extract(ctx context.Context, text string) ([]model.Candidate, error) {
	return nil, nil
}

func parseOrEmpty(ctx context.Context, raw string) []model.Candidate {
	candidates, err := ParseCandidates(raw)
	if err != nil {
		logging.From(ctx).Warn("discarding extraction output", "error", err, "raw", truncate(raw, 200))
		return nil
	}
	return candidates
}

package extractor_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AustinJR6/wwjd-memory/pkg/extractor"
	"github.com/AustinJR6/wwjd-memory/pkg/model"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

func TestParseCandidates(t *testing.T) {
	t.Run("items object", func(t *testing.T) {
		got, err := extractor.ParseCandidates(`{"items":[{"type":"preference","text":"User loves hiking","importance":4,"tags":["hiking"]}]}`)
		gt.NoError(t, err)
		gt.A(t, got).Length(1)
		gt.Equal(t, got[0].Type, model.MemoryTypePreference)
		gt.Equal(t, got[0].Text, "User loves hiking")
		gt.Equal(t, got[0].Importance, 4)
		gt.Equal(t, got[0].Tags, []string{"hiking"})
	})

	t.Run("bare array in fences", func(t *testing.T) {
		raw := "```json\n[{\"type\":\"fact\",\"text\":\"Has two daughters\"}]\n```"
		got, err := extractor.ParseCandidates(raw)
		gt.NoError(t, err)
		gt.A(t, got).Length(1)
		gt.Equal(t, got[0].Type, model.MemoryTypeFact)
	})

	t.Run("at most three accepted", func(t *testing.T) {
		raw := `[
			{"type":"fact","text":"fact number one"},
			{"type":"fact","text":"fact number two"},
			{"type":"fact","text":"fact number three"},
			{"type":"fact","text":"fact number four"}
		]`
		got, err := extractor.ParseCandidates(raw)
		gt.NoError(t, err)
		gt.A(t, got).Length(3)
		gt.Equal(t, got[2].Text, "fact number three")
	})

	t.Run("invalid items dropped", func(t *testing.T) {
		raw := `[
			{"type":"rumor","text":"unknown type here"},
			{"type":"fact"},
			{"type":"fact","text":42},
			"just a string",
			{"type":"story","text":"Walked the Camino last year"}
		]`
		got, err := extractor.ParseCandidates(raw)
		gt.NoError(t, err)
		gt.A(t, got).Length(1)
		gt.Equal(t, got[0].Type, model.MemoryTypeStory)
	})

	t.Run("text truncated to 160 characters", func(t *testing.T) {
		long := strings.Repeat("あ", 200)
		got, err := extractor.ParseCandidates(`[{"type":"fact","text":"` + long + `"}]`)
		gt.NoError(t, err)
		gt.Equal(t, len([]rune(got[0].Text)), 160)
	})

	t.Run("importance coercion", func(t *testing.T) {
		testCases := []struct {
			raw    string
			expect int
		}{
			{`9`, 5},
			{`-2`, 1},
			{`0`, 3},
			{`"4"`, 4},
			{`"high"`, 3},
			{`null`, 3},
			{`2.6`, 3},
		}
		for _, tc := range testCases {
			got, err := extractor.ParseCandidates(`[{"type":"fact","text":"some durable fact","importance":` + tc.raw + `}]`)
			gt.NoError(t, err)
			gt.Equal(t, got[0].Importance, tc.expect)
		}

		got, err := extractor.ParseCandidates(`[{"type":"fact","text":"some durable fact"}]`)
		gt.NoError(t, err)
		gt.Equal(t, got[0].Importance, model.DefaultImportance)
	})

	t.Run("tags filtered and capped", func(t *testing.T) {
		got, err := extractor.ParseCandidates(`[{"type":"fact","text":"some durable fact","tags":["a",1,"b","c","d","e","f"]}]`)
		gt.NoError(t, err)
		gt.Equal(t, got[0].Tags, []string{"a", "b", "c", "d", "e"})

		got, err = extractor.ParseCandidates(`[{"type":"fact","text":"some durable fact","tags":"a,b"}]`)
		gt.NoError(t, err)
		gt.A(t, got[0].Tags).Length(0)
	})

	t.Run("unparseable", func(t *testing.T) {
		for _, raw := range []string{"", "sorry, I cannot help", `{"memories":[]}`, `"text"`} {
			_, err := extractor.ParseCandidates(raw)
			gt.True(t, errors.Is(err, extractor.ErrUnparseable))
		}
	})
}

type mockGemini struct {
	generateFn func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.generateFn(ctx, contents, config)
}

func (m *mockGemini) Embedding(ctx context.Context, text string, dims int) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(text, genai.RoleModel)},
		},
	}
}

func TestGeminiExtract(t *testing.T) {
	ctx := context.Background()

	t.Run("structured output request", func(t *testing.T) {
		var gotConfig *genai.GenerateContentConfig
		var gotText string
		g := extractor.NewGemini(&mockGemini{
			generateFn: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				gotConfig = config
				gotText = contents[0].Parts[0].Text
				return textResponse(`{"items":[{"type":"goal_hint","text":"Wants to visit Japan","importance":3,"tags":["travel"]}]}`), nil
			},
		})

		got, err := g.Extract(ctx, "I want to go to Japan someday")
		gt.NoError(t, err)
		gt.A(t, got).Length(1)
		gt.Equal(t, got[0].Type, model.MemoryTypeGoalHint)

		gt.Equal(t, gotText, "I want to go to Japan someday")
		gt.Equal(t, gotConfig.ResponseMIMEType, "application/json")
		gt.V(t, gotConfig.ResponseSchema).NotNil()
		gt.Equal(t, gotConfig.ResponseSchema.Type, genai.TypeObject)
		items := gotConfig.ResponseSchema.Properties["items"]
		gt.Equal(t, items.Type, genai.TypeArray)
		gt.Equal(t, items.Items.Properties["type"].Enum, []string{"story", "fact", "preference", "goal_hint"})
		gt.Equal(t, items.Items.Properties["importance"].Type, genai.TypeInteger)
	})

	t.Run("llm error degrades to empty", func(t *testing.T) {
		g := extractor.NewGemini(&mockGemini{
			generateFn: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return nil, errors.New("503 unavailable")
			},
		})

		got, err := g.Extract(ctx, "anything")
		gt.NoError(t, err)
		gt.A(t, got).Length(0)
	})

	t.Run("unparseable output degrades to empty", func(t *testing.T) {
		g := extractor.NewGemini(&mockGemini{
			generateFn: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return textResponse("I could not find anything"), nil
			},
		})

		got, err := g.Extract(ctx, "anything")
		gt.NoError(t, err)
		gt.A(t, got).Length(0)
	})

	t.Run("empty response degrades to empty", func(t *testing.T) {
		g := extractor.NewGemini(&mockGemini{
			generateFn: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return &genai.GenerateContentResponse{}, nil
			},
		})

		got, err := g.Extract(ctx, "anything")
		gt.NoError(t, err)
		gt.A(t, got).Length(0)
	})
}

type mockClaude struct {
	reply string
	err   error
}

func (m *mockClaude) Generate(ctx context.Context, system, prompt string) (string, error) {
	return m.reply, m.err
}

func TestClaudeExtract(t *testing.T) {
	ctx := context.Background()

	c := extractor.NewClaude(&mockClaude{reply: "```json\n{\"items\":[{\"type\":\"fact\",\"text\":\"Works as a nurse\"}]}\n```"})
	got, err := c.Extract(ctx, "I'm a nurse")
	gt.NoError(t, err)
	gt.A(t, got).Length(1)

	c = extractor.NewClaude(&mockClaude{err: errors.New("overloaded")})
	got, err = c.Extract(ctx, "I'm a nurse")
	gt.NoError(t, err)
	gt.A(t, got).Length(0)
}

func TestNewSelection(t *testing.T) {
	_, ok := extractor.New(&mockGemini{}, &mockClaude{}).(*extractor.Gemini)
	gt.True(t, ok)

	_, ok = extractor.New(nil, &mockClaude{}).(*extractor.Claude)
	gt.True(t, ok)

	nop := extractor.New(nil, nil)
	got, err := nop.Extract(context.Background(), "I love hiking")
	gt.NoError(t, err)
	gt.A(t, got).Length(0)
}

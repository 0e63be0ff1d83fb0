package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/AustinJR6/wwjd-memory/pkg/embedding"
	"github.com/AustinJR6/wwjd-memory/pkg/model"
	"github.com/AustinJR6/wwjd-memory/pkg/repository"
	"github.com/AustinJR6/wwjd-memory/pkg/server"
	"github.com/AustinJR6/wwjd-memory/pkg/usecase/memory"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

const validToken = "valid-token"

type fakeVerifier struct{}

func (fakeVerifier) Verify(ctx context.Context, token string) (string, error) {
	if token == validToken {
		return "u1", nil
	}
	return "", goerr.Wrap(model.ErrUnauthorized, "signature mismatch for kid abc")
}

type mockExtractor struct {
	candidates []model.Candidate
	received   string
}

func (m *mockExtractor) Extract(ctx context.Context, text string) ([]model.Candidate, error) {
	m.received = text
	return m.candidates, nil
}

// stubUseCase returns err from every operation
type stubUseCase struct {
	err error
}

func (s *stubUseCase) ExtractMemoriesFromText(ctx context.Context, uid, text, source string) (*memory.IngestResult, error) {
	return nil, s.err
}

func (s *stubUseCase) PrepareUserContext(ctx context.Context, uid, userMessage string) (*model.UserContext, error) {
	return nil, s.err
}

func (s *stubUseCase) ReinforceMemories(ctx context.Context, uid string, ids []string) (int, error) {
	return 0, s.err
}

func (s *stubUseCase) SetPinned(ctx context.Context, uid, id string, pinned bool) error {
	return s.err
}

type response struct {
	OK      bool               `json:"ok"`
	Error   string             `json:"error"`
	Written int                `json:"written"`
	Context *model.UserContext `json:"context"`
}

func setup(t *testing.T, ext *mockExtractor) (*server.Server, *repository.Memory) {
	t.Helper()
	repo := repository.NewMemory()
	uc := memory.New(repo, embedding.NewLocal(), ext)
	return server.New(uc, fakeVerifier{}), repo
}

func post(t *testing.T, h http.Handler, path, token, body string) (int, response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp response
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestHealth(t *testing.T) {
	srv, _ := setup(t, &mockExtractor{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	gt.Equal(t, rec.Code, http.StatusOK)
	gt.S(t, rec.Body.String()).Contains(`"status":"ok"`)
	gt.NotEqual(t, rec.Header().Get("X-Request-Id"), "")
}

func TestAuthentication(t *testing.T) {
	srv, _ := setup(t, &mockExtractor{})

	t.Run("missing header", func(t *testing.T) {
		code, resp := post(t, srv, "/memories/context", "", `{"userMessage":"hi"}`)
		gt.Equal(t, code, http.StatusUnauthorized)
		gt.False(t, resp.OK)
		gt.Equal(t, resp.Error, "unauthorized")
	})

	t.Run("invalid token does not leak details", func(t *testing.T) {
		code, resp := post(t, srv, "/memories/context", "forged", `{"userMessage":"hi"}`)
		gt.Equal(t, code, http.StatusUnauthorized)
		gt.Equal(t, resp.Error, "unauthorized")
	})

	t.Run("non bearer scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/memories/context", strings.NewReader(`{"userMessage":"hi"}`))
		req.Header.Set("Authorization", "Basic "+validToken)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		gt.Equal(t, rec.Code, http.StatusUnauthorized)
	})
}

func TestAdd(t *testing.T) {
	t.Run("written", func(t *testing.T) {
		ext := &mockExtractor{candidates: []model.Candidate{
			{Type: model.MemoryTypePreference, Text: "Loves hiking in the mountains", Importance: 4, Tags: []string{"outdoors"}},
		}}
		srv, repo := setup(t, ext)

		code, resp := post(t, srv, "/memories/add", validToken, `{"text":"I love hiking in the mountains","source":"journal"}`)
		gt.Equal(t, code, http.StatusOK)
		gt.True(t, resp.OK)
		gt.Equal(t, resp.Written, 1)

		stored, err := repo.ListMemories(context.Background(), "u1", 10)
		gt.NoError(t, err)
		gt.A(t, stored).Length(1)
		gt.Equal(t, stored[0].Source, "journal")
	})

	t.Run("nothing extracted", func(t *testing.T) {
		srv, _ := setup(t, &mockExtractor{})

		code, resp := post(t, srv, "/memories/add", validToken, `{"text":"ok thanks"}`)
		gt.Equal(t, code, http.StatusAccepted)
		gt.True(t, resp.OK)
		gt.Equal(t, resp.Written, 0)
	})

	t.Run("text truncated", func(t *testing.T) {
		ext := &mockExtractor{}
		srv, _ := setup(t, ext)

		long := strings.Repeat("あ", server.MaxTextLength+500)
		body, err := json.Marshal(map[string]string{"text": long})
		gt.NoError(t, err)

		code, _ := post(t, srv, "/memories/add", validToken, string(body))
		gt.Equal(t, code, http.StatusAccepted)
		gt.Equal(t, utf8.RuneCountInString(ext.received), server.MaxTextLength)
	})

	t.Run("missing text", func(t *testing.T) {
		srv, _ := setup(t, &mockExtractor{})

		code, resp := post(t, srv, "/memories/add", validToken, `{"source":"chat"}`)
		gt.Equal(t, code, http.StatusBadRequest)
		gt.False(t, resp.OK)
		gt.Equal(t, resp.Error, "text is required")
	})

	t.Run("invalid json", func(t *testing.T) {
		srv, _ := setup(t, &mockExtractor{})

		code, resp := post(t, srv, "/memories/add", validToken, `{"text":`)
		gt.Equal(t, code, http.StatusBadRequest)
		gt.Equal(t, resp.Error, "invalid JSON body")
	})

	t.Run("rate limited", func(t *testing.T) {
		srv, _ := setup(t, &mockExtractor{})

		for range 10 {
			code, _ := post(t, srv, "/memories/add", validToken, `{"text":"hello there"}`)
			gt.Equal(t, code, http.StatusAccepted)
		}
		code, resp := post(t, srv, "/memories/add", validToken, `{"text":"hello there"}`)
		gt.Equal(t, code, http.StatusTooManyRequests)
		gt.False(t, resp.OK)
	})
}

func TestContext(t *testing.T) {
	srv, repo := setup(t, &mockExtractor{})
	ctx := context.Background()
	gt.NoError(t, repo.PutMemory(ctx, &model.Memory{
		UID:        "u1",
		Type:       model.MemoryTypePreference,
		Text:       "Loves hiking in the mountains",
		Importance: 4,
		Embedding:  []float32{1, 0},
		DecayScore: model.InitialDecayScore,
	}))
	repo.PutProfile("u1", &model.Profile{DisplayName: "Sam"})

	t.Run("bundle", func(t *testing.T) {
		code, resp := post(t, srv, "/memories/context", validToken, `{"userMessage":"any hikes planned?"}`)
		gt.Equal(t, code, http.StatusOK)
		gt.True(t, resp.OK)
		gt.NotNil(t, resp.Context)
		gt.A(t, resp.Context.Memories).Length(1)
		gt.Equal(t, resp.Context.Memories[0], "(preference|4) Loves hiking in the mountains")
		gt.A(t, resp.Context.SelectedMemoryIDs).Length(1)
		gt.S(t, resp.Context.Profile).Contains("Sam")
		gt.A(t, resp.Context.Goals).Length(0)
	})

	t.Run("missing message", func(t *testing.T) {
		code, resp := post(t, srv, "/memories/context", validToken, `{}`)
		gt.Equal(t, code, http.StatusBadRequest)
		gt.Equal(t, resp.Error, "userMessage is required")
	})
}

func TestReinforce(t *testing.T) {
	srv, repo := setup(t, &mockExtractor{})
	ctx := context.Background()
	m := &model.Memory{UID: "u1", Type: model.MemoryTypeFact, Text: "Has two daughters", Importance: 3, DecayScore: model.InitialDecayScore}
	gt.NoError(t, repo.PutMemory(ctx, m))

	t.Run("updates decay score", func(t *testing.T) {
		code, resp := post(t, srv, "/memories/reinforce", validToken, `{"memoryIds":["`+string(m.ID)+`","missing"]}`)
		gt.Equal(t, code, http.StatusOK)
		gt.True(t, resp.OK)

		stored, err := repo.ListMemories(ctx, "u1", 10)
		gt.NoError(t, err)
		gt.True(t, stored[0].DecayScore > model.InitialDecayScore)
	})

	t.Run("empty ids", func(t *testing.T) {
		code, _ := post(t, srv, "/memories/reinforce", validToken, `{"memoryIds":[]}`)
		gt.Equal(t, code, http.StatusBadRequest)
	})

	t.Run("not rate limited", func(t *testing.T) {
		for range 15 {
			code, _ := post(t, srv, "/memories/reinforce", validToken, `{"memoryIds":["`+string(m.ID)+`"]}`)
			gt.Equal(t, code, http.StatusOK)
		}
	})
}

func TestPin(t *testing.T) {
	srv, repo := setup(t, &mockExtractor{})
	ctx := context.Background()
	m := &model.Memory{UID: "u1", Type: model.MemoryTypeFact, Text: "Has two daughters", Importance: 3, DecayScore: model.InitialDecayScore}
	gt.NoError(t, repo.PutMemory(ctx, m))

	t.Run("pin", func(t *testing.T) {
		code, resp := post(t, srv, "/memories/pin", validToken, `{"memoryId":"`+string(m.ID)+`","pinned":true}`)
		gt.Equal(t, code, http.StatusOK)
		gt.True(t, resp.OK)

		stored, err := repo.ListMemories(ctx, "u1", 10)
		gt.NoError(t, err)
		gt.True(t, stored[0].Pinned)
	})

	t.Run("unpin", func(t *testing.T) {
		code, _ := post(t, srv, "/memories/pin", validToken, `{"memoryId":"`+string(m.ID)+`","pinned":false}`)
		gt.Equal(t, code, http.StatusOK)

		stored, err := repo.ListMemories(ctx, "u1", 10)
		gt.NoError(t, err)
		gt.False(t, stored[0].Pinned)
	})

	t.Run("missing pinned flag", func(t *testing.T) {
		code, _ := post(t, srv, "/memories/pin", validToken, `{"memoryId":"`+string(m.ID)+`"}`)
		gt.Equal(t, code, http.StatusBadRequest)
	})

	t.Run("unknown memory", func(t *testing.T) {
		code, resp := post(t, srv, "/memories/pin", validToken, `{"memoryId":"nope","pinned":true}`)
		gt.Equal(t, code, http.StatusNotFound)
		gt.Equal(t, resp.Error, "memory not found")
	})
}

func TestErrorMapping(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
	}{
		{"rate limited", goerr.Wrap(model.ErrRateLimited, "window full"), http.StatusTooManyRequests},
		{"upstream timeout", goerr.Wrap(model.ErrUpstreamTimeout, "embedding"), http.StatusServiceUnavailable},
		{"provider error", goerr.Wrap(&embedding.ProviderError{Status: 500, Body: "boom"}, "embed"), http.StatusBadGateway},
		{"not found", model.ErrMemoryNotFound, http.StatusNotFound},
		{"bad request", model.ErrBadRequest, http.StatusBadRequest},
		{"unknown", errors.New("firestore unavailable"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := server.New(&stubUseCase{err: tc.err}, fakeVerifier{})

			code, resp := post(t, srv, "/memories/context", validToken, `{"userMessage":"hello"}`)
			gt.Equal(t, code, tc.status)
			gt.False(t, resp.OK)
			gt.NotEqual(t, resp.Error, "")
			gt.S(t, resp.Error).NotContains("firestore")
		})
	}
}

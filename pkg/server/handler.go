package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/AustinJR6/wwjd-memory/pkg/embedding"
	"github.com/AustinJR6/wwjd-memory/pkg/model"
	"github.com/AustinJR6/wwjd-memory/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

type addRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

type addResponse struct {
	OK      bool `json:"ok"`
	Written int  `json:"written"`
}

type reinforceRequest struct {
	MemoryIDs []string `json:"memoryIds"`
}

type pinRequest struct {
	MemoryID string `json:"memoryId"`
	Pinned   *bool  `json:"pinned"`
}

type contextRequest struct {
	UserMessage string `json:"userMessage"`
}

type contextResponse struct {
	OK      bool               `json:"ok"`
	Context *model.UserContext `json:"context"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addRequest
	if err := decode(w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(ctx, w, goerr.Wrap(model.ErrBadRequest, "text is required"))
		return
	}
	if runes := []rune(req.Text); len(runes) > MaxTextLength {
		req.Text = string(runes[:MaxTextLength])
	}

	result, err := s.uc.ExtractMemoriesFromText(ctx, uidFrom(ctx), req.Text, req.Source)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if result.Candidates == 0 {
		status = http.StatusAccepted
	}
	writeJSON(ctx, w, status, addResponse{OK: true, Written: result.Written})
}

func (s *Server) handleReinforce(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req reinforceRequest
	if err := decode(w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if len(req.MemoryIDs) == 0 {
		writeError(ctx, w, goerr.Wrap(model.ErrBadRequest, "memoryIds is required"))
		return
	}

	if _, err := s.uc.ReinforceMemories(ctx, uidFrom(ctx), req.MemoryIDs); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req pinRequest
	if err := decode(w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if req.MemoryID == "" || req.Pinned == nil {
		writeError(ctx, w, goerr.Wrap(model.ErrBadRequest, "memoryId and pinned are required"))
		return
	}

	if err := s.uc.SetPinned(ctx, uidFrom(ctx), req.MemoryID, *req.Pinned); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req contextRequest
	if err := decode(w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.UserMessage) == "" {
		writeError(ctx, w, goerr.Wrap(model.ErrBadRequest, "userMessage is required"))
		return
	}

	userContext, err := s.uc.PrepareUserContext(ctx, uidFrom(ctx), req.UserMessage)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, contextResponse{OK: true, Context: userContext})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return goerr.Wrap(model.ErrBadRequest, "invalid JSON body")
	}
	return nil
}

// statusOf maps an error to its HTTP status and the message shown to clients
func statusOf(err error) (int, string) {
	var providerErr *embedding.ProviderError
	switch {
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, model.ErrBadRequest):
		return http.StatusBadRequest, badRequestReason(err)
	case errors.Is(err, model.ErrRateLimited):
		return http.StatusTooManyRequests, "too many requests"
	case errors.Is(err, model.ErrMemoryNotFound):
		return http.StatusNotFound, "memory not found"
	case errors.Is(err, model.ErrUpstreamTimeout):
		return http.StatusServiceUnavailable, "upstream timeout, retry later"
	case errors.As(err, &providerErr):
		return http.StatusBadGateway, "embedding provider error"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// badRequestReason returns the outermost message of a wrapped ErrBadRequest
func badRequestReason(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx > 0 {
		return msg[:idx]
	}
	return msg
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, msg := statusOf(err)

	logger := logging.From(ctx)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Debug("request rejected", "status", status, "error", err)
	}

	writeJSON(ctx, w, status, errorResponse{OK: false, Error: msg})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.From(ctx).Warn("failed to write response", "error", err)
	}
}

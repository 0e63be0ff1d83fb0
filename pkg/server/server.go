// Package server exposes the memory operations over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/AustinJR6/wwjd-memory/pkg/interfaces"
	"github.com/AustinJR6/wwjd-memory/pkg/model"
	"github.com/AustinJR6/wwjd-memory/pkg/usecase/memory"
	"github.com/AustinJR6/wwjd-memory/pkg/utils/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
)

// UseCase is the subset of memory.UseCase served over HTTP
type UseCase interface {
	ExtractMemoriesFromText(ctx context.Context, uid, text, source string) (*memory.IngestResult, error)
	PrepareUserContext(ctx context.Context, uid, userMessage string) (*model.UserContext, error)
	ReinforceMemories(ctx context.Context, uid string, ids []string) (int, error)
	SetPinned(ctx context.Context, uid, id string, pinned bool) error
}

const (
	// MaxTextLength is the number of characters of text kept by the add endpoint
	MaxTextLength = 2000

	maxBodyBytes = 64 << 10
)

// Server is the HTTP front of the memory engine
type Server struct {
	router   chi.Router
	uc       UseCase
	verifier interfaces.IdentityVerifier
}

// New creates a new Server
func New(uc UseCase, verifier interfaces.IdentityVerifier) *Server {
	s := &Server{
		uc:       uc,
		verifier: verifier,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)

	r.Route("/memories", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/add", s.handleAdd)
		r.Post("/reinforce", s.handleReinforce)
		r.Post("/pin", s.handlePin)
		r.Post("/context", s.handleContext)
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logging.From(ctx).Info("memory server listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return goerr.Wrap(err, "failed to serve", goerr.V("addr", addr))

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return goerr.Wrap(err, "failed to shutdown server")
		}
		return nil
	}
}

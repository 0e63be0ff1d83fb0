package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/AustinJR6/wwjd-memory/pkg/model"
	"github.com/AustinJR6/wwjd-memory/pkg/utils/logging"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type uidKey struct{}

func withUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, uidKey{}, uid)
}

func uidFrom(ctx context.Context) string {
	uid, _ := ctx.Value(uidKey{}).(string)
	return uid
}

// requestLogger attaches a per-request logger and logs the outcome
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		logger := logging.From(r.Context()).With(
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
		)
		ctx := logging.With(r.Context(), logger)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.Info("request handled",
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

// authenticate resolves the bearer token to a uid. Verification details are
// logged but never returned to the client.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(ctx, w, model.ErrUnauthorized)
			return
		}

		uid, err := s.verifier.Verify(ctx, token)
		if err != nil {
			logging.From(ctx).Warn("token verification failed", "error", err)
			writeError(ctx, w, model.ErrUnauthorized)
			return
		}

		ctx = withUID(ctx, uid)
		ctx = logging.With(ctx, logging.From(ctx).With("uid", uid))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// internal/api/middleware.go
package api

import (
	"context"
	"net/http"
	"strings"

	"commitsync/internal/model"
)

type contextKey string

const apiKeyContextKey contextKey = "api_key"

// requireKey verifies the bearer credential and checks that it carries the
// required scope. Authorization failures are never retryable, so the response
// is a plain 401/403 with no retry hint.
func (h *Handler) requireKey(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				respondWithError(w, http.StatusUnauthorized, "missing bearer credential")
				return
			}

			key, err := h.authority.Verify(r.Context(), token, r.RemoteAddr)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, err.Error())
				return
			}
			if !key.HasScope(scope) {
				respondWithError(w, http.StatusForbidden, "credential lacks scope "+scope)
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyContextKey, &key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// rateLimit throttles per credential at a fixed rate. Exceeding it yields a
// 429, which clients treat as retryable and distinct from validation failure.
func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := keyFromContext(r.Context())
		if key == nil {
			respondWithError(w, http.StatusUnauthorized, "missing credential")
			return
		}
		if !h.limiter.allow(key.Prefix) {
			h.metrics.RateLimited.Inc()
			w.Header().Set("Retry-After", "1")
			respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func keyFromContext(ctx context.Context) *model.APIKey {
	key, _ := ctx.Value(apiKeyContextKey).(*model.APIKey)
	return key
}

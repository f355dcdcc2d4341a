// internal/api/handlers_keys.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	custom_errors "commitsync/internal/errors"
	"commitsync/internal/model"
)

type createKeyRequest struct {
	Principal     string   `json:"principal"`
	Name          string   `json:"name"`
	Scopes        []string `json:"scopes,omitempty"`
	ExpiresInDays int      `json:"expires_in_days,omitempty"`
}

type keyMetadata struct {
	ID         string     `json:"id"`
	Principal  string     `json:"principal"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	Scopes     []string   `json:"scopes"`
	Status     string     `json:"status"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	UsageCount int64      `json:"usage_count"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toKeyMetadata(k model.APIKey) keyMetadata {
	return keyMetadata{
		ID:         k.ID,
		Principal:  k.Principal,
		Name:       k.Name,
		Prefix:     k.Prefix,
		Scopes:     k.Scopes,
		Status:     string(k.Status),
		ExpiresAt:  k.ExpiresAt,
		LastUsedAt: k.LastUsedAt,
		UsageCount: k.UsageCount,
		CreatedAt:  k.CreatedAt,
	}
}

// createKey issues a new API key. The full secret appears in this response and
// nowhere else, ever.
// POST /v1/keys
func (h *Handler) createKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	if req.Principal == "" || req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "principal and name are required")
		return
	}

	ttl := time.Duration(req.ExpiresInDays) * 24 * time.Hour
	key, fullKey, err := h.authority.Create(r.Context(), req.Principal, req.Name, req.Scopes, ttl)
	if err != nil {
		h.logger.Error("Failed to create API key", "principal", req.Principal, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]any{
		"key":      fullKey,
		"metadata": toKeyMetadata(key),
	})
}

// listKeys returns key metadata for a principal; never the secrets.
// GET /v1/keys?principal=...&include_revoked=true
func (h *Handler) listKeys(w http.ResponseWriter, r *http.Request) {
	principal := r.URL.Query().Get("principal")
	if principal == "" {
		respondWithError(w, http.StatusBadRequest, "principal query parameter is required")
		return
	}
	includeRevoked := r.URL.Query().Get("include_revoked") == "true"

	keys, err := h.authority.List(r.Context(), principal, includeRevoked)
	if err != nil {
		h.logger.Error("Failed to list API keys", "principal", principal, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	out := make([]keyMetadata, 0, len(keys))
	for _, k := range keys {
		out = append(out, toKeyMetadata(k))
	}
	respondWithJSON(w, http.StatusOK, out)
}

// revokeKey disables a key immediately.
// DELETE /v1/keys/{keyID}
func (h *Handler) revokeKey(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "keyID")
	actor := r.URL.Query().Get("actor")
	if actor == "" {
		actor = "admin"
	}

	if err := h.authority.Revoke(r.Context(), keyID, actor); err != nil {
		var notFound *custom_errors.ErrNotFound
		if errors.As(err, &notFound) {
			respondWithError(w, http.StatusNotFound, notFound.Error())
			return
		}
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

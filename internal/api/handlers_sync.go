// internal/api/handlers_sync.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	custom_errors "commitsync/internal/errors"
	"commitsync/internal/model"
)

type submitCommitsRequest struct {
	Commits       []model.Commit `json:"commits"`
	ClientVersion string         `json:"client_version,omitempty"`
}

// submitCommits handles the push-transport ingestion endpoint.
// POST /v1/repos/{repoID}/commits
func (h *Handler) submitCommits(w http.ResponseWriter, r *http.Request) {
	repoID := chi.URLParam(r, "repoID")
	key := keyFromContext(r.Context())

	var req submitCommitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	result, err := h.ingestion.SubmitBatch(r.Context(), repoID, key.Principal, req.ClientVersion, req.Commits)
	if err != nil {
		var invalid *custom_errors.ErrBatchInvalid
		var mismatch *custom_errors.ErrTransportMismatch
		var notFound *custom_errors.ErrNotFound
		switch {
		case errors.As(err, &invalid):
			respondWithJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":   "batch validation failed",
				"details": invalid.Problems,
			})
		case errors.As(err, &mismatch):
			respondWithError(w, http.StatusBadRequest, mismatch.Error())
		case errors.As(err, &notFound):
			respondWithError(w, http.StatusNotFound, notFound.Error())
		default:
			h.logger.Error("Batch ingestion failed", "repo_id", repoID, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, result)
}

type syncStatusResponse struct {
	RepoID          string     `json:"repo_id"`
	Status          string     `json:"status"`
	Transport       string     `json:"transport"`
	LastSyncAt      *time.Time `json:"last_sync_at"`
	LastIngestedSHA *string    `json:"last_ingested_sha"`
	TotalCommits    int64      `json:"total_commits"`
	ErrorMessage    *string    `json:"error_message"`
}

// syncStatus returns the current state-machine status for a repository.
// GET /v1/repos/{repoID}/status
func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	repoID := chi.URLParam(r, "repoID")

	repo, err := h.db.GetRepository(r.Context(), repoID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Repository not found")
			return
		}
		h.logger.Error("Failed to get repository", "repo_id", repoID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := syncStatusResponse{
		RepoID:          repo.ID,
		Status:          string(repo.Status),
		Transport:       string(repo.Transport),
		LastIngestedSHA: repo.LastIngestedSHA,
		TotalCommits:    repo.TotalCommits,
		ErrorMessage:    repo.ErrorMessage,
	}
	if repo.LastSyncAt.Valid {
		t := repo.LastSyncAt.Time
		resp.LastSyncAt = &t
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// internal/api/handlers_repos.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"commitsync/internal/model"
	"commitsync/internal/store"
)

type createRepositoryRequest struct {
	Name         string `json:"name"`
	RemoteURL    string `json:"remote_url"`
	Branch       string `json:"branch"`
	Transport    string `json:"transport"`
	SyncInterval string `json:"sync_interval,omitempty"`
}

type repositoryResponse struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	RemoteURL       string  `json:"remote_url"`
	Branch          string  `json:"branch"`
	Transport       string  `json:"transport"`
	Status          string  `json:"status"`
	LastIngestedSHA *string `json:"last_ingested_sha"`
	TotalCommits    int64   `json:"total_commits"`
}

func toRepositoryResponse(r model.Repository) repositoryResponse {
	return repositoryResponse{
		ID:              r.ID,
		Name:            r.Name,
		RemoteURL:       r.RemoteURL,
		Branch:          r.Branch,
		Transport:       string(r.Transport),
		Status:          string(r.Status),
		LastIngestedSHA: r.LastIngestedSHA,
		TotalCommits:    r.TotalCommits,
	}
}

// createRepository registers a new repository in the pending state.
// POST /v1/repos
func (h *Handler) createRepository(w http.ResponseWriter, r *http.Request) {
	var req createRepositoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	if req.Name == "" || req.RemoteURL == "" {
		respondWithError(w, http.StatusBadRequest, "name and remote_url are required")
		return
	}
	transport := model.Transport(req.Transport)
	if transport != model.TransportPull && transport != model.TransportPush {
		respondWithError(w, http.StatusBadRequest, `transport must be "pull" or "push"`)
		return
	}
	branch := req.Branch
	if branch == "" {
		branch = "main"
	}
	interval := time.Hour
	if req.SyncInterval != "" {
		parsed, err := time.ParseDuration(req.SyncInterval)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "sync_interval must be a positive duration")
			return
		}
		interval = parsed
	}

	repo, err := h.db.CreateRepository(r.Context(), store.CreateRepositoryParams{
		Name:         req.Name,
		RemoteURL:    req.RemoteURL,
		Branch:       branch,
		Transport:    transport,
		SyncInterval: interval,
		NextSyncAt:   time.Now(),
	})
	if err != nil {
		h.logger.Error("Failed to create repository", "name", req.Name, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusCreated, toRepositoryResponse(repo))
}

// listRepositories returns all repositories, optionally filtered by transport.
// GET /v1/repos?transport=pull|push
func (h *Handler) listRepositories(w http.ResponseWriter, r *http.Request) {
	transport := model.Transport(r.URL.Query().Get("transport"))
	repos, err := h.db.ListRepositories(r.Context(), transport)
	if err != nil {
		h.logger.Error("Failed to list repositories", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	out := make([]repositoryResponse, 0, len(repos))
	for _, repo := range repos {
		out = append(out, toRepositoryResponse(repo))
	}
	respondWithJSON(w, http.StatusOK, out)
}

// deleteRepository removes a repository and cascades its commits.
// DELETE /v1/repos/{repoID}
func (h *Handler) deleteRepository(w http.ResponseWriter, r *http.Request) {
	repoID := chi.URLParam(r, "repoID")

	if _, err := h.db.GetRepository(r.Context(), repoID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Repository not found")
			return
		}
		h.logger.Error("Failed to get repository", "repo_id", repoID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := h.db.DeleteRepository(r.Context(), repoID); err != nil {
		h.logger.Error("Failed to delete repository", "repo_id", repoID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

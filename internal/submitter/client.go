// internal/submitter/client.go
package submitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	custom_errors "commitsync/internal/errors"
	"commitsync/internal/ingest"
	"commitsync/internal/model"
)

// ClientVersion is sent with every batch so the server can track client
// rollouts in its audit trail.
const ClientVersion = "gitsync/1.2.0"

// Client talks to the ingestion service's network endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	maxRetries int
}

// NewClient creates a Client for the given server.
func NewClient(baseURL, apiKey string, maxRetries int, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
		maxRetries: maxRetries,
	}
}

type submitRequest struct {
	Commits       []model.Commit `json:"commits"`
	ClientVersion string         `json:"client_version"`
}

// StatusResponse mirrors the server's status endpoint payload.
type StatusResponse struct {
	RepoID          string  `json:"repo_id"`
	Status          string  `json:"status"`
	Transport       string  `json:"transport"`
	LastIngestedSHA *string `json:"last_ingested_sha"`
	TotalCommits    int64   `json:"total_commits"`
	ErrorMessage    *string `json:"error_message"`
}

// SubmitBatch sends one batch, retrying rate limits and transient failures
// with exponential backoff. Validation errors (any other 4xx) are surfaced
// immediately: retrying a malformed batch cannot succeed.
func (c *Client) SubmitBatch(ctx context.Context, repoID string, commits []model.Commit) (*ingest.Result, error) {
	body, err := json.Marshal(submitRequest{Commits: commits, ClientVersion: ClientVersion})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/v1/repos/%s/commits", c.baseURL, repoID)

	operation := func() (*ingest.Result, error) {
		return c.doSubmit(ctx, url, body)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)), ctx)
	return backoff.RetryWithData(operation, policy)
}

func (c *Client) doSubmit(ctx context.Context, url string, body []byte) (*ingest.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Batch submission failed, will retry", "error", err)
		return nil, err // network failures are retryable
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn("Rate limited, backing off")
		return nil, &custom_errors.ErrRateLimited{}
	case resp.StatusCode >= 500:
		c.logger.Warn("Server error, will retry", "status", resp.StatusCode)
		return nil, fmt.Errorf("server error (HTTP %d): %s", resp.StatusCode, respBody)
	case resp.StatusCode >= 400:
		return nil, backoff.Permanent(fmt.Errorf("batch rejected (HTTP %d): %s", resp.StatusCode, respBody))
	}

	var result ingest.Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("parsing batch response: %w", err))
	}
	return &result, nil
}

// Status fetches the server-side sync status, including the checkpoint the
// next extraction should start from.
func (c *Client) Status(ctx context.Context, repoID string) (*StatusResponse, error) {
	url := fmt.Sprintf("%s/v1/repos/%s/status", c.baseURL, repoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status request failed (HTTP %d): %s", resp.StatusCode, body)
	}

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("parsing status response: %w", err)
	}
	return &status, nil
}

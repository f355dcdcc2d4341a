// internal/errors/errors.go
package errors

import (
	"fmt"
	"strings"
)

// ErrRepositoryUnavailable is returned when a working copy cannot be opened or
// the configured branch does not exist. The caller decides whether to retry,
// since recovering may require a fresh fetch.
type ErrRepositoryUnavailable struct {
	Path   string
	Reason string
	Err    error
}

func (e *ErrRepositoryUnavailable) Error() string {
	return fmt.Sprintf("repository unavailable at %q: %s", e.Path, e.Reason)
}

func (e *ErrRepositoryUnavailable) Unwrap() error { return e.Err }

// ErrCorruptHistory is returned when a commit cannot be parsed during extraction.
type ErrCorruptHistory struct {
	SHA string
	Err error
}

func (e *ErrCorruptHistory) Error() string {
	return fmt.Sprintf("corrupt history at commit %s: %v", e.SHA, e.Err)
}

func (e *ErrCorruptHistory) Unwrap() error { return e.Err }

// ErrNotFound is returned when a referenced resource does not exist.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrTransportMismatch is returned when a push batch targets a repository that
// is not configured for push transport (or the inverse for the puller).
type ErrTransportMismatch struct {
	RepoID    string
	Transport string
}

func (e *ErrTransportMismatch) Error() string {
	return fmt.Sprintf("repository %s is not configured for push-based sync (current transport: %s)", e.RepoID, e.Transport)
}

// ErrUnauthorized is returned for an invalid, revoked, expired, or under-scoped
// credential. Never retryable.
type ErrUnauthorized struct {
	Reason string
}

func (e *ErrUnauthorized) Error() string {
	return fmt.Sprintf("unauthorized: %s", e.Reason)
}

// ErrRateLimited is returned when a credential exceeds its request budget.
// Retryable after backing off.
type ErrRateLimited struct{}

func (e *ErrRateLimited) Error() string { return "rate limit exceeded" }

// CommitProblem describes why one commit in a batch failed structural validation.
type CommitProblem struct {
	SHA    string `json:"sha"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ErrBatchInvalid rejects a whole batch: a single structurally invalid commit
// causes zero insertions so the client can fix and resubmit.
type ErrBatchInvalid struct {
	Problems []CommitProblem
}

func (e *ErrBatchInvalid) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("%s: %s (%s)", shortSHA(p.SHA), p.Reason, p.Field))
	}
	return fmt.Sprintf("batch rejected, %d invalid commit(s): %s", len(e.Problems), strings.Join(parts, "; "))
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	if sha == "" {
		return "<missing sha>"
	}
	return sha
}

// internal/ingest/validate.go
package ingest

import (
	"fmt"
	"strings"
	"unicode/utf8"

	custom_errors "commitsync/internal/errors"
	"commitsync/internal/model"
)

const (
	shaLen      = 40
	maxTitleLen = 500
)

// validateBatch checks batch bounds and every commit's shape before any
// storage is touched.
func (s *Service) validateBatch(commits []model.Commit) error {
	if len(commits) == 0 {
		return &custom_errors.ErrBatchInvalid{Problems: []custom_errors.CommitProblem{
			{Field: "commits", Reason: "batch must contain at least one commit"},
		}}
	}
	if len(commits) > s.maxBatch {
		return &custom_errors.ErrBatchInvalid{Problems: []custom_errors.CommitProblem{
			{Field: "commits", Reason: fmt.Sprintf("batch of %d exceeds maximum of %d", len(commits), s.maxBatch)},
		}}
	}

	var problems []custom_errors.CommitProblem
	for i := range commits {
		problems = append(problems, validateCommit(&commits[i])...)
	}
	if len(problems) > 0 {
		return &custom_errors.ErrBatchInvalid{Problems: problems}
	}
	return nil
}

// validateCommit checks identifier format, email normalization, and numeric
// sanity. Anything git itself permits (empty messages, empty or odd author
// identities) passes: rejecting it would wedge ingestion on a history the
// client cannot change.
func validateCommit(c *model.Commit) []custom_errors.CommitProblem {
	var problems []custom_errors.CommitProblem
	add := func(field, reason string) {
		problems = append(problems, custom_errors.CommitProblem{SHA: c.SHA, Field: field, Reason: reason})
	}

	if !validSHA(c.SHA) {
		add("sha", "must be a 40-character hexadecimal identifier")
	}
	if !normalizedEmail(c.AuthorEmail) {
		add("author_email", "must be lowercased")
	}
	if !normalizedEmail(c.CommitterEmail) {
		add("committer_email", "must be lowercased")
	}
	if c.CommitDate.IsZero() {
		add("commit_date", "must be set")
	}
	if utf8.RuneCountInString(c.MessageTitle) > maxTitleLen {
		add("message_title", fmt.Sprintf("must be at most %d characters", maxTitleLen))
	}
	if c.Additions < 0 {
		add("additions", "must be non-negative")
	}
	if c.Deletions < 0 {
		add("deletions", "must be non-negative")
	}
	if c.FilesChanged < 0 {
		add("files_changed", "must be non-negative")
	}
	if c.ParentCount < 0 {
		add("parent_count", "must be non-negative")
	}
	if c.IsMerge && c.ParentCount < 2 {
		add("is_merge", "merge commits must have at least two parents")
	}
	return problems
}

func validSHA(sha string) bool {
	if len(sha) != shaLen {
		return false
	}
	for _, r := range sha {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// normalizedEmail accepts whatever git recorded as long as it is lowercased,
// including the empty string.
func normalizedEmail(email string) bool {
	return email == strings.ToLower(email)
}

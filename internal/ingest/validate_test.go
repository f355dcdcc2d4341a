// internal/ingest/validate_test.go
package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	custom_errors "commitsync/internal/errors"
	"commitsync/internal/model"
)

func batchError(t *testing.T, err error) *custom_errors.ErrBatchInvalid {
	t.Helper()
	var batchErr *custom_errors.ErrBatchInvalid
	require.ErrorAs(t, err, &batchErr)
	return batchErr
}

func TestValidateBatch(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := testService(nil)

	t.Run("well formed batch passes", func(t *testing.T) {
		err := s.validateBatch([]model.Commit{
			makeCommit(makeSHA('a'), base),
			makeCommit(makeSHA('b'), base.Add(time.Minute)),
		})
		assert.NoError(t, err)
	})

	t.Run("empty batch is rejected", func(t *testing.T) {
		batchErr := batchError(t, s.validateBatch(nil))
		require.Len(t, batchErr.Problems, 1)
		assert.Equal(t, "commits", batchErr.Problems[0].Field)
	})

	t.Run("oversized batch is rejected", func(t *testing.T) {
		small := testService(nil)
		small.maxBatch = 2

		commits := []model.Commit{
			makeCommit(makeSHA('a'), base),
			makeCommit(makeSHA('b'), base),
			makeCommit(makeSHA('c'), base),
		}
		batchErr := batchError(t, small.validateBatch(commits))
		require.Len(t, batchErr.Problems, 1)
		assert.Contains(t, batchErr.Problems[0].Reason, "exceeds maximum of 2")
	})

	t.Run("one malformed commit rejects the whole batch", func(t *testing.T) {
		bad := makeCommit("not-a-sha", base)
		err := s.validateBatch([]model.Commit{makeCommit(makeSHA('a'), base), bad})
		batchErr := batchError(t, err)
		require.Len(t, batchErr.Problems, 1)
		assert.Equal(t, "sha", batchErr.Problems[0].Field)
		assert.Equal(t, "not-a-sha", batchErr.Problems[0].SHA)
	})

	t.Run("problems accumulate across commits", func(t *testing.T) {
		first := makeCommit(makeSHA('a'), base)
		first.AuthorEmail = "Alice@Example.COM"
		second := makeCommit(makeSHA('b'), base)
		second.Additions = -1

		batchErr := batchError(t, s.validateBatch([]model.Commit{first, second}))
		assert.Len(t, batchErr.Problems, 2)
	})
}

func TestValidateCommit(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		mutate func(*model.Commit)
		field  string
	}{
		{"uppercase sha", func(c *model.Commit) { c.SHA = strings.ToUpper(c.SHA) }, "sha"},
		{"short sha", func(c *model.Commit) { c.SHA = "abc123" }, "sha"},
		{"non-hex sha", func(c *model.Commit) { c.SHA = strings.Repeat("g", 40) }, "sha"},
		{"uppercase author email", func(c *model.Commit) { c.AuthorEmail = "Alice@example.com" }, "author_email"},
		{"uppercase committer email", func(c *model.Commit) { c.CommitterEmail = "Alice@example.com" }, "committer_email"},
		{"zero commit date", func(c *model.Commit) { c.CommitDate = time.Time{} }, "commit_date"},
		{"oversized title", func(c *model.Commit) { c.MessageTitle = strings.Repeat("x", 501) }, "message_title"},
		{"oversized multibyte title", func(c *model.Commit) { c.MessageTitle = strings.Repeat("é", 501) }, "message_title"},
		{"negative additions", func(c *model.Commit) { c.Additions = -1 }, "additions"},
		{"negative deletions", func(c *model.Commit) { c.Deletions = -1 }, "deletions"},
		{"negative files changed", func(c *model.Commit) { c.FilesChanged = -1 }, "files_changed"},
		{"negative parent count", func(c *model.Commit) { c.ParentCount = -1 }, "parent_count"},
		{"merge with one parent", func(c *model.Commit) { c.IsMerge = true; c.ParentCount = 1 }, "is_merge"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := makeCommit(makeSHA('a'), base)
			tc.mutate(&c)

			problems := validateCommit(&c)
			require.NotEmpty(t, problems)
			assert.Equal(t, tc.field, problems[0].Field)
		})
	}

	t.Run("valid merge commit", func(t *testing.T) {
		c := makeCommit(makeSHA('a'), base)
		c.IsMerge = true
		c.ParentCount = 2
		assert.Empty(t, validateCommit(&c))
	})

	// Histories git itself permits must pass, or one odd commit wedges
	// ingestion for the whole repository on both transports.
	t.Run("empty commit message is accepted", func(t *testing.T) {
		c := makeCommit(makeSHA('a'), base)
		c.MessageTitle = ""
		c.MessageBody = ""
		assert.Empty(t, validateCommit(&c))
	})

	t.Run("empty author identity is accepted", func(t *testing.T) {
		c := makeCommit(makeSHA('a'), base)
		c.AuthorName = ""
		c.AuthorEmail = ""
		assert.Empty(t, validateCommit(&c))
	})

	t.Run("email without at sign is accepted", func(t *testing.T) {
		c := makeCommit(makeSHA('a'), base)
		c.AuthorEmail = "alice"
		assert.Empty(t, validateCommit(&c))
	})

	t.Run("multibyte title within the limit is accepted", func(t *testing.T) {
		c := makeCommit(makeSHA('a'), base)
		c.MessageTitle = strings.Repeat("é", 500)
		assert.Empty(t, validateCommit(&c))
	})
}

// internal/store/commits.go
package store

import (
	"context"

	"commitsync/internal/model"
)

// InsertCommit attempts an idempotent insert keyed by SHA. It reports true if
// the row was newly created and false if a commit with the same identifier was
// already stored (from either transport).
func (s *Store) InsertCommit(ctx context.Context, c model.Commit) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO commits (sha, repository_id, author_name, author_email,
			committer_name, committer_email, commit_date, message_title,
			message_body, additions, deletions, files_changed, is_merge, parent_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (sha) DO NOTHING`,
		c.SHA, c.RepositoryID, c.AuthorName, c.AuthorEmail,
		c.CommitterName, c.CommitterEmail, c.CommitDate, c.MessageTitle,
		c.MessageBody, c.Additions, c.Deletions, c.FilesChanged, c.IsMerge, c.ParentCount,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CountCommits returns the number of stored commits for a repository.
func (s *Store) CountCommits(ctx context.Context, repoID string) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM commits WHERE repository_id = $1`, repoID).Scan(&n)
	return n, err
}

// internal/store/repositories.go
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"commitsync/internal/model"
)

const repositoryColumns = `id, name, remote_url, branch, transport, last_ingested_sha,
	status, error_message, last_sync_at, total_commits, next_sync_at,
	sync_interval_seconds, remote_token_sealed, created_at, updated_at`

func scanRepository(row interface{ Scan(dest ...any) error }) (model.Repository, error) {
	var r model.Repository
	var intervalSeconds int64
	err := row.Scan(
		&r.ID, &r.Name, &r.RemoteURL, &r.Branch, &r.Transport, &r.LastIngestedSHA,
		&r.Status, &r.ErrorMessage, &r.LastSyncAt, &r.TotalCommits, &r.NextSyncAt,
		&intervalSeconds, &r.RemoteTokenSealed, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return model.Repository{}, err
	}
	r.SyncInterval = time.Duration(intervalSeconds) * time.Second
	return r, nil
}

// CreateRepository registers a new repository in the pending state.
func (s *Store) CreateRepository(ctx context.Context, arg CreateRepositoryParams) (model.Repository, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO repositories (id, name, remote_url, branch, transport, status,
			next_sync_at, sync_interval_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+repositoryColumns,
		uuid.NewString(), arg.Name, arg.RemoteURL, arg.Branch, arg.Transport,
		model.StatusPending, arg.NextSyncAt, int64(arg.SyncInterval/time.Second),
	)
	return scanRepository(row)
}

// GetRepository fetches one repository by id. Returns pgx.ErrNoRows if absent.
func (s *Store) GetRepository(ctx context.Context, id string) (model.Repository, error) {
	row := s.db.QueryRow(ctx, `SELECT `+repositoryColumns+` FROM repositories WHERE id = $1`, id)
	return scanRepository(row)
}

// ListRepositories returns repositories, optionally filtered by transport
// (empty transport means all).
func (s *Store) ListRepositories(ctx context.Context, transport model.Transport) ([]model.Repository, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+repositoryColumns+` FROM repositories
		WHERE ($1 = '' OR transport = $1)
		ORDER BY created_at`, string(transport))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// DeleteRepository removes a repository; its commits go with it via the
// ON DELETE CASCADE constraint.
func (s *Store) DeleteRepository(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM repositories WHERE id = $1`, id)
	return err
}

// DueRepositories returns pull-transport repositories whose next_sync_at has
// passed, oldest due first.
func (s *Store) DueRepositories(ctx context.Context, now time.Time, limit int) ([]model.Repository, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+repositoryColumns+` FROM repositories
		WHERE transport = $1 AND next_sync_at <= $2
		ORDER BY next_sync_at
		LIMIT $3`, model.TransportPull, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// LockRepository takes the per-repository advisory lock for the duration of
// the enclosing transaction. It blocks until any concurrent ingestion for the
// same repository commits or rolls back, so checkpoint updates never interleave.
func (s *Store) LockRepository(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, id)
	return err
}

// SetRepositoryStatus moves the state machine, retaining the error message when
// status is "error" and clearing it otherwise.
func (s *Store) SetRepositoryStatus(ctx context.Context, id string, status model.RepoStatus, errMsg *string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE repositories
		SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1`, id, status, errMsg)
	return err
}

// FinishSync records a successful ingestion operation: status becomes healthy,
// the checkpoint advances (if one was produced), and the commit counter grows.
// Must run in the same transaction as the inserts it accounts for, so the
// checkpoint never references a commit that is not durably stored.
func (s *Store) FinishSync(ctx context.Context, arg FinishSyncParams) error {
	_, err := s.db.Exec(ctx, `
		UPDATE repositories
		SET status = $2,
		    error_message = NULL,
		    last_ingested_sha = COALESCE($3, last_ingested_sha),
		    last_sync_at = $4,
		    total_commits = total_commits + $5,
		    updated_at = now()
		WHERE id = $1`,
		arg.RepoID, model.StatusHealthy, arg.Checkpoint, arg.CompletedAt, arg.NewCommits)
	return err
}

// SetRepositoryTransport flips the transport mode, leaving the checkpoint
// untouched. clearRemoteToken erases the sealed remote credential, which is
// what pull→push migration requires.
func (s *Store) SetRepositoryTransport(ctx context.Context, id string, transport model.Transport, clearRemoteToken bool) error {
	_, err := s.db.Exec(ctx, `
		UPDATE repositories
		SET transport = $2,
		    remote_token_sealed = CASE WHEN $3 THEN NULL ELSE remote_token_sealed END,
		    updated_at = now()
		WHERE id = $1`, id, transport, clearRemoteToken)
	return err
}

// SetRemoteToken stores the sealed remote access token for pull transport.
func (s *Store) SetRemoteToken(ctx context.Context, id string, sealed []byte) error {
	_, err := s.db.Exec(ctx, `
		UPDATE repositories SET remote_token_sealed = $2, updated_at = now() WHERE id = $1`,
		id, sealed)
	return err
}

// RescheduleRepository sets the next due time for the pull scheduler.
func (s *Store) RescheduleRepository(ctx context.Context, id string, next time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE repositories SET next_sync_at = $2, updated_at = now() WHERE id = $1`,
		id, next)
	return err
}

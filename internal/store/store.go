// internal/store/store.go
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"commitsync/internal/model"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx, so the same queries run
// pooled or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store executes queries against a DBTX.
type Store struct {
	db DBTX
}

// New creates a Store bound to the given connection or transaction.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// CreateRepositoryParams are the caller-supplied fields of a new repository.
type CreateRepositoryParams struct {
	Name         string
	RemoteURL    string
	Branch       string
	Transport    model.Transport
	SyncInterval time.Duration
	NextSyncAt   time.Time
}

// FinishSyncParams records the outcome of one successful ingestion operation.
type FinishSyncParams struct {
	RepoID      string
	Checkpoint  *string // nil leaves the checkpoint untouched
	NewCommits  int64
	CompletedAt time.Time
}

// Querier is the query surface the rest of the engine depends on. Mocked in
// tests; implemented by Store.
type Querier interface {
	CreateRepository(ctx context.Context, arg CreateRepositoryParams) (model.Repository, error)
	GetRepository(ctx context.Context, id string) (model.Repository, error)
	ListRepositories(ctx context.Context, transport model.Transport) ([]model.Repository, error)
	DeleteRepository(ctx context.Context, id string) error
	DueRepositories(ctx context.Context, now time.Time, limit int) ([]model.Repository, error)
	LockRepository(ctx context.Context, id string) error
	SetRepositoryStatus(ctx context.Context, id string, status model.RepoStatus, errMsg *string) error
	FinishSync(ctx context.Context, arg FinishSyncParams) error
	SetRepositoryTransport(ctx context.Context, id string, transport model.Transport, clearRemoteToken bool) error
	SetRemoteToken(ctx context.Context, id string, sealed []byte) error
	RescheduleRepository(ctx context.Context, id string, next time.Time) error

	InsertCommit(ctx context.Context, c model.Commit) (bool, error)
	CountCommits(ctx context.Context, repoID string) (int64, error)

	CreateAPIKey(ctx context.Context, key model.APIKey) error
	GetAPIKeyByPrefix(ctx context.Context, prefix string) (model.APIKey, error)
	GetAPIKey(ctx context.Context, id string) (model.APIKey, error)
	ListAPIKeys(ctx context.Context, principal string, includeRevoked bool) ([]model.APIKey, error)
	RevokeAPIKey(ctx context.Context, id string, at time.Time) error
	TouchAPIKeyUsage(ctx context.Context, id string, ip string, at time.Time) error

	AppendAudit(ctx context.Context, entry model.AuditEntry) error
}

var _ Querier = (*Store)(nil)

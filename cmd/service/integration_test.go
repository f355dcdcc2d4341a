//go:build integration

// cmd/service/integration_test.go
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"commitsync/internal/ingest"
	"commitsync/internal/metrics"
	"commitsync/internal/model"
	"commitsync/internal/store"
)

func setupTestDatabase(ctx context.Context, t *testing.T) (*pgxpool.Pool, func()) {
	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	m, err := migrate.New("file://../../migrations", connStr)
	require.NoError(t, err)
	require.NoError(t, m.Up())

	dbpool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	teardown := func() {
		dbpool.Close()
		require.NoError(t, pgContainer.Terminate(ctx))
	}
	return dbpool, teardown
}

func integrationCommit(c byte, date time.Time) model.Commit {
	return model.Commit{
		SHA:            strings.Repeat(string(c), 40),
		AuthorName:     "Alice Dev",
		AuthorEmail:    "alice@example.com",
		CommitterName:  "Alice Dev",
		CommitterEmail: "alice@example.com",
		CommitDate:     date,
		MessageTitle:   "change " + string(c),
		Additions:      1,
		FilesChanged:   1,
		ParentCount:    1,
	}
}

func TestIngestion_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool, teardown := setupTestDatabase(ctx, t)
	defer teardown()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	q := store.New(dbpool)
	svc := ingest.NewService(dbpool, q, logger, metrics.NewUnregistered(), 1000)

	repo, err := q.CreateRepository(ctx, store.CreateRepositoryParams{
		Name:         "acme/widgets",
		RemoteURL:    "https://git.example.com/acme/widgets.git",
		Branch:       "main",
		Transport:    model.TransportPush,
		SyncInterval: time.Hour,
		NextSyncAt:   time.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, repo.Status)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	batchABC := []model.Commit{
		integrationCommit('a', base),
		integrationCommit('b', base.Add(time.Minute)),
		integrationCommit('c', base.Add(2*time.Minute)),
	}

	// First submission: everything inserts and the checkpoint lands on C.
	result, err := svc.SubmitBatch(ctx, repo.ID, "ci-bot", "gitsync/1.2.0", batchABC)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Inserted)
	assert.Equal(t, 0, result.Skipped)
	require.NotNil(t, result.LastIngestedSHA)
	assert.Equal(t, strings.Repeat("c", 40), *result.LastIngestedSHA)

	stored, err := q.GetRepository(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusHealthy, stored.Status)
	require.NotNil(t, stored.LastIngestedSHA)
	assert.Equal(t, strings.Repeat("c", 40), *stored.LastIngestedSHA)
	assert.EqualValues(t, 3, stored.TotalCommits)

	// Full resubmission: pure dedup, checkpoint and totals unchanged.
	result, err = svc.SubmitBatch(ctx, repo.ID, "ci-bot", "gitsync/1.2.0", batchABC)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 3, result.Skipped)
	assert.Nil(t, result.LastIngestedSHA)

	stored, err = q.GetRepository(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("c", 40), *stored.LastIngestedSHA)
	assert.EqualValues(t, 3, stored.TotalCommits)

	// Overlapping batch: B is skipped, D inserts, checkpoint advances to D.
	batchBD := []model.Commit{
		integrationCommit('b', base.Add(time.Minute)),
		integrationCommit('d', base.Add(3*time.Minute)),
	}
	result, err = svc.SubmitBatch(ctx, repo.ID, "ci-bot", "gitsync/1.2.0", batchBD)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Skipped)
	require.NotNil(t, result.LastIngestedSHA)
	assert.Equal(t, strings.Repeat("d", 40), *result.LastIngestedSHA)

	stored, err = q.GetRepository(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("d", 40), *stored.LastIngestedSHA)
	assert.EqualValues(t, 4, stored.TotalCommits)

	count, err := q.CountCommits(ctx, repo.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)

	// Push batches against a pull repository are refused outright.
	pullRepo, err := q.CreateRepository(ctx, store.CreateRepositoryParams{
		Name:         "acme/pulled",
		RemoteURL:    "https://git.example.com/acme/pulled.git",
		Branch:       "main",
		Transport:    model.TransportPull,
		SyncInterval: time.Hour,
		NextSyncAt:   time.Now(),
	})
	require.NoError(t, err)

	_, err = svc.SubmitBatch(ctx, pullRepo.ID, "ci-bot", "gitsync/1.2.0", batchBD)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured for push")

	// A rejected batch must not leave the pull repository dirty.
	stored, err = q.GetRepository(ctx, pullRepo.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
	assert.Nil(t, stored.LastIngestedSHA)
}

func TestTransportMigration_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool, teardown := setupTestDatabase(ctx, t)
	defer teardown()

	q := store.New(dbpool)

	repo, err := q.CreateRepository(ctx, store.CreateRepositoryParams{
		Name:         "acme/migrating",
		RemoteURL:    "https://git.example.com/acme/migrating.git",
		Branch:       "main",
		Transport:    model.TransportPull,
		SyncInterval: time.Hour,
		NextSyncAt:   time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, q.SetRemoteToken(ctx, repo.ID, []byte("sealed-token")))
	require.NoError(t, q.FinishSync(ctx, store.FinishSyncParams{
		RepoID:      repo.ID,
		Checkpoint:  ptr(strings.Repeat("c", 40)),
		NewCommits:  3,
		CompletedAt: time.Now(),
	}))

	// pull -> push: checkpoint survives, stored credential does not.
	require.NoError(t, q.SetRepositoryTransport(ctx, repo.ID, model.TransportPush, true))

	stored, err := q.GetRepository(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransportPush, stored.Transport)
	require.NotNil(t, stored.LastIngestedSHA)
	assert.Equal(t, strings.Repeat("c", 40), *stored.LastIngestedSHA)
	assert.Empty(t, stored.RemoteTokenSealed)

	// push -> pull: checkpoint survives again.
	require.NoError(t, q.SetRepositoryTransport(ctx, repo.ID, model.TransportPull, false))

	stored, err = q.GetRepository(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransportPull, stored.Transport)
	assert.Equal(t, strings.Repeat("c", 40), *stored.LastIngestedSHA)
}

func ptr(s string) *string { return &s }

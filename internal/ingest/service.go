// internal/ingest/service.go

// Package ingest is the core of the engine: validated, idempotent, per-batch
// commit insertion with checkpoint advancement, shared by both transports.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	custom_errors "commitsync/internal/errors"
	"commitsync/internal/metrics"
	"commitsync/internal/model"
	"commitsync/internal/store"
)

// Per-commit outcome values.
const (
	OutcomeInserted = "inserted"
	OutcomeSkipped  = "skipped"
	OutcomeError    = "error"
)

const maxErrorMsgLen = 1000

// CommitOutcome reports what happened to one commit of a batch.
type CommitOutcome struct {
	SHA    string `json:"sha"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Result is the structured outcome of one batch submission. A fully skipped
// resubmission is still a normal, successful result.
type Result struct {
	Total           int             `json:"total"`
	Inserted        int             `json:"inserted"`
	Skipped         int             `json:"skipped"`
	Errors          int             `json:"errors"`
	LastIngestedSHA *string         `json:"last_ingested_sha"`
	Details         []CommitOutcome `json:"details"`
}

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service applies commit batches to the durable store.
type Service struct {
	db TxBeginner
	// q runs outside the batch transaction: status transitions that must be
	// visible before commit (or survive a rollback) and audit entries.
	q        store.Querier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	maxBatch int
	now      func() time.Time

	// txQuerier binds a Querier to an open transaction. Swappable in tests.
	txQuerier func(tx pgx.Tx) store.Querier
}

// NewService creates the ingestion service.
func NewService(db TxBeginner, q store.Querier, logger *slog.Logger, m *metrics.Metrics, maxBatch int) *Service {
	return &Service{
		db:        db,
		q:         q,
		logger:    logger,
		metrics:   m,
		maxBatch:  maxBatch,
		now:       time.Now,
		txQuerier: func(tx pgx.Tx) store.Querier { return store.New(tx) },
	}
}

// SubmitBatch ingests a push-transport batch. The whole batch runs inside one
// transaction holding the per-repository advisory lock, so two batches for the
// same repository serialize while different repositories proceed in parallel.
func (s *Service) SubmitBatch(ctx context.Context, repoID, actor, clientVersion string, commits []model.Commit) (*Result, error) {
	return s.ingest(ctx, repoID, actor, clientVersion, model.TransportPush, commits)
}

// IngestPulled is the puller's internal insertion path: no network hop, same
// dedup and state-machine contract.
func (s *Service) IngestPulled(ctx context.Context, repoID string, commits []model.Commit) (*Result, error) {
	return s.ingest(ctx, repoID, "puller", "", model.TransportPull, commits)
}

func (s *Service) ingest(ctx context.Context, repoID, actor, clientVersion string, expect model.Transport, commits []model.Commit) (*Result, error) {
	// Structural validation happens before any storage is touched. One bad
	// commit rejects the whole batch with zero insertions, so a client never
	// has to reason about partially applied malformed data.
	if err := s.validateBatch(commits); err != nil {
		s.metrics.BatchesRejected.WithLabelValues("validation").Inc()
		s.audit(ctx, actor, repoID, clientVersion, map[string]any{
			"outcome": "rejected",
			"reason":  truncateMsg(err.Error()),
		})
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning ingestion transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op once committed or rolled back

	q := s.txQuerier(tx)

	if err := q.LockRepository(ctx, repoID); err != nil {
		return nil, fmt.Errorf("acquiring repository lock: %w", err)
	}

	repo, err := q.GetRepository(ctx, repoID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &custom_errors.ErrNotFound{Resource: "repository", ID: repoID}
	} else if err != nil {
		return nil, err
	}

	if repo.Transport != expect {
		s.metrics.BatchesRejected.WithLabelValues("transport").Inc()
		mismatch := &custom_errors.ErrTransportMismatch{RepoID: repoID, Transport: string(repo.Transport)}
		s.audit(ctx, actor, repoID, clientVersion, map[string]any{
			"outcome": "rejected",
			"reason":  mismatch.Error(),
		})
		return nil, mismatch
	}

	// Written on the pooled connection, not the transaction, so the in-flight
	// state is visible to status readers while the batch runs. The advisory
	// lock is held, so no concurrent operation writes this row.
	if err := s.q.SetRepositoryStatus(ctx, repoID, model.StatusSyncing, nil); err != nil {
		return nil, err
	}

	result, checkpoint, err := s.insertAll(ctx, q, repoID, commits)
	if err != nil {
		// Storage fault mid-batch: the transaction rolls back, the checkpoint
		// is untouched, and the repository lands in the error state with the
		// message retained for the operator.
		s.abort(ctx, tx, actor, repoID, clientVersion, err)
		return nil, err
	}

	if err := q.FinishSync(ctx, store.FinishSyncParams{
		RepoID:      repoID,
		Checkpoint:  checkpoint,
		NewCommits:  int64(result.Inserted),
		CompletedAt: s.now(),
	}); err != nil {
		s.abort(ctx, tx, actor, repoID, clientVersion, err)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		s.abort(ctx, tx, actor, repoID, clientVersion, err)
		return nil, fmt.Errorf("committing ingestion transaction: %w", err)
	}

	s.metrics.BatchesAccepted.Inc()
	s.metrics.CommitsInserted.Add(float64(result.Inserted))
	s.metrics.CommitsSkipped.Add(float64(result.Skipped))

	s.audit(ctx, actor, repoID, clientVersion, map[string]any{
		"outcome":  "accepted",
		"total":    result.Total,
		"inserted": result.Inserted,
		"skipped":  result.Skipped,
	})

	s.logger.Info("Batch ingested",
		"repo_id", repoID,
		"total", result.Total,
		"inserted", result.Inserted,
		"skipped", result.Skipped)
	return result, nil
}

// insertAll attempts an idempotent insert per commit, in submission order. The
// client submits ascending by commit date; the server does not reorder, so the
// checkpoint is simply the last newly inserted SHA.
func (s *Service) insertAll(ctx context.Context, q store.Querier, repoID string, commits []model.Commit) (*Result, *string, error) {
	result := &Result{Total: len(commits), Details: make([]CommitOutcome, 0, len(commits))}
	var checkpoint *string

	for i := range commits {
		c := commits[i]
		c.RepositoryID = repoID

		inserted, err := q.InsertCommit(ctx, c)
		if err != nil {
			return nil, nil, fmt.Errorf("inserting commit %s: %w", c.SHA, err)
		}
		if inserted {
			result.Inserted++
			sha := c.SHA
			checkpoint = &sha
			result.Details = append(result.Details, CommitOutcome{SHA: c.SHA, Status: OutcomeInserted})
		} else {
			result.Skipped++
			result.Details = append(result.Details, CommitOutcome{SHA: c.SHA, Status: OutcomeSkipped})
		}
	}

	result.LastIngestedSHA = checkpoint
	return result, checkpoint, nil
}

// abort rolls the batch transaction back, then records the error state and an
// audit entry on the pooled connection. The rollback must happen first: the
// transaction may hold a lock on the repository row, and the pooled status
// update would wait on it.
func (s *Service) abort(ctx context.Context, tx pgx.Tx, actor, repoID, clientVersion string, cause error) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		s.logger.Error("Failed to roll back ingestion transaction", "repo_id", repoID, "error", err)
	}
	s.failRepository(ctx, repoID, cause)
	s.audit(ctx, actor, repoID, clientVersion, map[string]any{
		"outcome": "failed",
		"error":   truncateMsg(cause.Error()),
	})
}

// failRepository records a storage fault on the repository, with the message
// retained for the operator.
func (s *Service) failRepository(ctx context.Context, repoID string, cause error) {
	msg := truncateMsg(cause.Error())
	if err := s.q.SetRepositoryStatus(ctx, repoID, model.StatusError, &msg); err != nil {
		s.logger.Error("Failed to record repository error state", "repo_id", repoID, "error", err)
	}
}

// audit appends one entry per ingestion attempt, whatever its outcome.
func (s *Service) audit(ctx context.Context, actor, repoID, clientVersion string, details map[string]any) {
	if clientVersion != "" {
		details["client_version"] = clientVersion
	}
	if err := s.q.AppendAudit(ctx, model.AuditEntry{
		Actor:        actor,
		Action:       "sync_commits",
		ResourceType: "repository",
		ResourceID:   repoID,
		Details:      details,
	}); err != nil {
		s.logger.Error("Failed to append audit entry", "repo_id", repoID, "error", err)
	}
}

func truncateMsg(msg string) string {
	if len(msg) > maxErrorMsgLen {
		return msg[:maxErrorMsgLen]
	}
	return msg
}

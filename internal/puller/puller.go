// internal/puller/puller.go

// Package puller is the server-initiated transport: a scheduled worker pool
// that fetches pull-transport repositories and feeds their commits through the
// same insertion path the push endpoint uses.
package puller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"commitsync/internal/extractor"
	"commitsync/internal/ingest"
	"commitsync/internal/metrics"
	"commitsync/internal/model"
	"commitsync/internal/secrets"
	"commitsync/internal/store"
)

// Config controls scheduling and retry behavior.
type Config struct {
	MirrorDir    string
	PollInterval time.Duration
	Concurrency  int
	MaxAttempts  int
	FetchTimeout time.Duration
	BatchSize    int
	SealKey      [32]byte
}

// Ingestor is the internal insertion path shared with the push endpoint.
type Ingestor interface {
	IngestPulled(ctx context.Context, repoID string, commits []model.Commit) (*ingest.Result, error)
}

// Puller drives pull-transport synchronization.
type Puller struct {
	q         store.Querier
	ingestion Ingestor
	ext       *extractor.Extractor
	logger    *slog.Logger
	metrics   *metrics.Metrics
	cfg       Config

	// cloneOrFetch is swappable in tests.
	cloneOrFetch func(ctx context.Context, remoteURL, mirrorPath, token string) error
}

// New creates a Puller.
func New(q store.Querier, ingestion Ingestor, ext *extractor.Extractor, logger *slog.Logger, m *metrics.Metrics, cfg Config) *Puller {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	// A zero attempt count would underflow the backoff retry bound.
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Puller{
		q:            q,
		ingestion:    ingestion,
		ext:          ext,
		logger:       logger,
		metrics:      m,
		cfg:          cfg,
		cloneOrFetch: extractor.CloneOrFetch,
	}
}

// Start begins the continuous polling loop. It blocks until ctx is cancelled.
func (p *Puller) Start(ctx context.Context) {
	p.logger.Info("Starting puller",
		"poll_interval", p.cfg.PollInterval.String(),
		"concurrency", p.cfg.Concurrency)
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.runCycle(ctx)

	for {
		select {
		case <-ticker.C:
			p.runCycle(ctx)
		case <-ctx.Done():
			p.logger.Info("Puller shutting down", "reason", ctx.Err())
			return
		}
	}
}

// runCycle syncs every due repository concurrently, bounded by the worker pool.
func (p *Puller) runCycle(ctx context.Context) {
	due, err := p.q.DueRepositories(ctx, time.Now(), 100)
	if err != nil {
		p.logger.Error("Failed to query due repositories", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}
	p.logger.Info("Starting pull cycle", "due", len(due))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for _, repo := range due {
		repo := repo
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if err := p.SyncRepo(gctx, repo); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Error("Failed to sync repository", "repo_id", repo.ID, "name", repo.Name, "error", err)
			}
			return nil
		})
	}

	g.Wait()
	p.logger.Info("Pull cycle finished")
}

// SyncRepo runs one pull operation for a repository: fetch, extract since the
// stored checkpoint, ingest. The repository is rescheduled whether the
// operation succeeds or fails, and any failure lands it in the error state
// rather than leaving it stuck in syncing.
func (p *Puller) SyncRepo(ctx context.Context, repo model.Repository) error {
	logger := p.logger.With("repo_id", repo.ID, "name", repo.Name)
	logger.Info("Syncing repository")

	if err := p.q.RescheduleRepository(ctx, repo.ID, time.Now().Add(repo.SyncInterval)); err != nil {
		return fmt.Errorf("rescheduling repository: %w", err)
	}

	// The fetch and extract phases can run for a while; status readers see
	// syncing for their whole duration.
	if err := p.q.SetRepositoryStatus(ctx, repo.ID, model.StatusSyncing, nil); err != nil {
		return fmt.Errorf("entering syncing state: %w", err)
	}

	if err := p.fetchWithRetry(ctx, repo); err != nil {
		p.fail(ctx, repo.ID, err)
		return err
	}

	mirror := p.mirrorPath(repo.ID)
	commits, err := p.ext.Extract(ctx, mirror, repo.Branch, repo.LastIngestedSHA)
	if err != nil {
		p.fail(ctx, repo.ID, err)
		return err
	}

	if len(commits) == 0 {
		logger.Info("No new commits found")
		// Still a successful sync: status becomes healthy and the sync time
		// advances, checkpoint untouched.
		if err := p.q.FinishSync(ctx, store.FinishSyncParams{RepoID: repo.ID, CompletedAt: time.Now()}); err != nil {
			return err
		}
		p.metrics.PullCycles.Inc()
		return nil
	}

	logger.Info("Found new commits", "count", len(commits))

	// The ingestion service bounds batch size, so oversized extractions are
	// split here the same way a push client would split them.
	for start := 0; start < len(commits); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(commits))
		result, err := p.ingestion.IngestPulled(ctx, repo.ID, commits[start:end])
		if err != nil {
			// Rejections on this path (a history the validator will never
			// accept, a storage fault) must not strand the repository in
			// syncing.
			p.fail(ctx, repo.ID, err)
			return err
		}
		logger.Info("Ingested batch", "inserted", result.Inserted, "skipped", result.Skipped)
	}

	p.metrics.PullCycles.Inc()
	return nil
}

// fetchWithRetry clones or fetches the remote mirror, retrying transient
// failures with exponential backoff up to a bounded attempt count.
func (p *Puller) fetchWithRetry(ctx context.Context, repo model.Repository) error {
	token, err := p.remoteToken(repo)
	if err != nil {
		return err
	}
	mirror := p.mirrorPath(repo.ID)

	operation := func() error {
		fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
		defer cancel()
		return p.cloneOrFetch(fetchCtx, repo.RemoteURL, mirror, token)
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(p.cfg.MaxAttempts-1))
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return fmt.Errorf("fetching %s: %w", repo.RemoteURL, err)
	}
	return nil
}

func (p *Puller) remoteToken(repo model.Repository) (string, error) {
	if len(repo.RemoteTokenSealed) == 0 {
		return "", nil
	}
	raw, err := secrets.Open(p.cfg.SealKey, repo.RemoteTokenSealed)
	if err != nil {
		return "", fmt.Errorf("unsealing remote token: %w", err)
	}
	return string(raw), nil
}

func (p *Puller) mirrorPath(repoID string) string {
	return filepath.Join(p.cfg.MirrorDir, repoID+".git")
}

func (p *Puller) fail(ctx context.Context, repoID string, cause error) {
	p.metrics.PullFailures.Inc()
	msg := cause.Error()
	if len(msg) > 1000 {
		msg = msg[:1000]
	}
	if err := p.q.SetRepositoryStatus(ctx, repoID, model.StatusError, &msg); err != nil {
		p.logger.Error("Failed to record repository error state", "repo_id", repoID, "error", err)
	}
}

// internal/submitter/submitter.go

// Package submitter is the client side of push transport: it extracts commits
// from local working copies, batches them, and submits them to the ingestion
// service with retry and rate-limit handling.
package submitter

import (
	"context"
	"log/slog"

	"commitsync/internal/extractor"
)

// Report summarizes the outcome for one configured repository.
type Report struct {
	RepoID     string
	Extracted  int
	Batches    int
	Inserted   int
	Skipped    int
	Checkpoint *string
	DryRun     bool
	Err        error
}

// Submitter orchestrates extraction and batch submission for all configured
// repositories.
type Submitter struct {
	cfg    *Config
	client *Client
	ext    *extractor.Extractor
	logger *slog.Logger
	dryRun bool
}

// New creates a Submitter. In dry-run mode it extracts and batches but skips
// the network call, reporting what would be sent.
func New(cfg *Config, client *Client, ext *extractor.Extractor, logger *slog.Logger, dryRun bool) *Submitter {
	return &Submitter{cfg: cfg, client: client, ext: ext, logger: logger, dryRun: dryRun}
}

// Run processes every configured repository sequentially, continuing past
// individual failures, and returns one report per repository.
func (s *Submitter) Run(ctx context.Context) []Report {
	reports := make([]Report, 0, len(s.cfg.Repos))
	for _, target := range s.cfg.Repos {
		if ctx.Err() != nil {
			break
		}
		reports = append(reports, s.syncRepo(ctx, target))
	}
	return reports
}

func (s *Submitter) syncRepo(ctx context.Context, target RepoTarget) Report {
	logger := s.logger.With("repo_id", target.ID, "path", target.Path)
	report := Report{RepoID: target.ID, DryRun: s.dryRun}

	// The server's checkpoint bounds extraction, so a fresh client picks up
	// exactly where the previous transport (or a previous run) left off.
	var checkpoint *string
	if !s.dryRun {
		status, err := s.client.Status(ctx, target.ID)
		if err != nil {
			report.Err = err
			return report
		}
		checkpoint = status.LastIngestedSHA
		report.Checkpoint = checkpoint
	}

	commits, err := s.ext.Extract(ctx, target.Path, target.Branch, checkpoint)
	if err != nil {
		report.Err = err
		return report
	}
	report.Extracted = len(commits)

	if len(commits) == 0 {
		logger.Info("No new commits to submit")
		return report
	}

	// Commits arrive from the extractor in ascending date order; chunking
	// preserves that, so the server's checkpoint always lands on the newest
	// acknowledged commit.
	for start := 0; start < len(commits); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(commits))
		batch := commits[start:end]
		report.Batches++

		if s.dryRun {
			logger.Info("Dry run: would submit batch",
				"batch", report.Batches, "commits", len(batch),
				"first", batch[0].SHA, "last", batch[len(batch)-1].SHA)
			continue
		}

		result, err := s.client.SubmitBatch(ctx, target.ID, batch)
		if err != nil {
			report.Err = err
			return report
		}

		report.Inserted += result.Inserted
		report.Skipped += result.Skipped
		// Advance the local checkpoint only on acknowledgment. A batch where
		// everything was skipped confirms storage without moving it.
		if result.LastIngestedSHA != nil {
			report.Checkpoint = result.LastIngestedSHA
		}
		logger.Info("Batch acknowledged",
			"batch", report.Batches,
			"inserted", result.Inserted,
			"skipped", result.Skipped)
	}

	return report
}

// internal/migration/orchestrator.go

// Package migration flips repositories between pull and push transport. Both
// transports share one checkpoint, so migration is a metadata change, never a
// data migration.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	custom_errors "commitsync/internal/errors"
	"commitsync/internal/model"
	"commitsync/internal/store"
)

// Direction of a transport migration.
type Direction string

const (
	PullToPush Direction = "pull_to_push"
	PushToPull Direction = "push_to_pull"
)

func (d Direction) target() (from, to model.Transport, err error) {
	switch d {
	case PullToPush:
		return model.TransportPull, model.TransportPush, nil
	case PushToPull:
		return model.TransportPush, model.TransportPull, nil
	default:
		return "", "", fmt.Errorf("unknown migration direction %q", d)
	}
}

// Outcome describes what happened (or would happen, for dry runs) to one
// repository.
type Outcome struct {
	RepoID     string
	Name       string
	From       model.Transport
	To         model.Transport
	Checkpoint *string
	Applied    bool
	Skipped    bool
	Err        error
}

// Orchestrator applies transport migrations.
type Orchestrator struct {
	q      store.Querier
	logger *slog.Logger
	dryRun bool
}

// New creates an Orchestrator. With dryRun set, it reports intended changes
// without applying them.
func New(q store.Querier, logger *slog.Logger, dryRun bool) *Orchestrator {
	return &Orchestrator{q: q, logger: logger, dryRun: dryRun}
}

// Migrate flips one repository's transport. The checkpoint is preserved
// unchanged in both directions, so the next transport resumes exactly where
// the previous one left off. pull→push erases the stored remote credential;
// push→pull requires the owner to re-supply it out of band before the puller
// can resume.
func (o *Orchestrator) Migrate(ctx context.Context, repoID string, dir Direction, actor string) Outcome {
	from, to, err := dir.target()
	if err != nil {
		return Outcome{RepoID: repoID, Err: err}
	}

	repo, err := o.q.GetRepository(ctx, repoID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Outcome{RepoID: repoID, Err: &custom_errors.ErrNotFound{Resource: "repository", ID: repoID}}
	} else if err != nil {
		return Outcome{RepoID: repoID, Err: err}
	}

	out := Outcome{
		RepoID:     repo.ID,
		Name:       repo.Name,
		From:       repo.Transport,
		To:         to,
		Checkpoint: repo.LastIngestedSHA,
	}

	if repo.Transport == to {
		out.Skipped = true
		o.logger.Warn("Repository already on target transport", "repo_id", repo.ID, "transport", to)
		return out
	}
	if repo.Transport != from {
		out.Err = fmt.Errorf("repository %s has unexpected transport %q, want %q", repo.ID, repo.Transport, from)
		return out
	}

	if o.dryRun {
		o.logger.Info("Dry run: would migrate repository",
			"repo_id", repo.ID, "from", from, "to", to,
			"checkpoint_preserved", deref(repo.LastIngestedSHA))
		return out
	}

	clearToken := dir == PullToPush
	if err := o.q.SetRepositoryTransport(ctx, repo.ID, to, clearToken); err != nil {
		out.Err = fmt.Errorf("updating transport: %w", err)
		return out
	}

	if err := o.q.AppendAudit(ctx, model.AuditEntry{
		Actor:        actor,
		Action:       "migrate_transport",
		ResourceType: "repository",
		ResourceID:   repo.ID,
		Details: map[string]any{
			"from":                 string(from),
			"to":                   string(to),
			"checkpoint_preserved": deref(repo.LastIngestedSHA),
			"credentials_cleared":  clearToken,
		},
	}); err != nil {
		out.Err = err
		return out
	}

	out.Applied = true
	o.logger.Info("Repository migrated", "repo_id", repo.ID, "from", from, "to", to)
	return out
}

// MigrateAll applies the migration to every repository currently on the
// direction's source transport, continuing past individual failures.
func (o *Orchestrator) MigrateAll(ctx context.Context, dir Direction, actor string) ([]Outcome, error) {
	from, _, err := dir.target()
	if err != nil {
		return nil, err
	}

	repos, err := o.q.ListRepositories(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}

	outcomes := make([]Outcome, 0, len(repos))
	for _, repo := range repos {
		outcomes = append(outcomes, o.Migrate(ctx, repo.ID, dir, actor))
	}
	return outcomes, nil
}

// Summarize counts applied, skipped, and failed outcomes.
func Summarize(outcomes []Outcome) (applied, skipped, failed int) {
	for _, out := range outcomes {
		switch {
		case out.Err != nil:
			failed++
		case out.Skipped:
			skipped++
		case out.Applied:
			applied++
		}
	}
	return applied, skipped, failed
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

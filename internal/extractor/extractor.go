// internal/extractor/extractor.go

// Package extractor reads commit metadata out of local git working copies and
// mirrors. Extraction is read-only and restartable: the same checkpoint always
// yields the same set of commits.
package extractor

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	custom_errors "commitsync/internal/errors"
	"commitsync/internal/model"
)

const maxTitleLen = 500

// Extractor produces commit records from local repositories.
type Extractor struct {
	logger *slog.Logger
}

// New creates an Extractor.
func New(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract returns all commits reachable from the branch tip that are not
// ancestors of the checkpoint (checkpoint..tip), oldest first. A nil checkpoint
// yields the full branch history. A checkpoint that no longer exists in the
// repository (history rewrite) also yields the full history; callers rely on
// idempotent insertion to make that safe.
func (e *Extractor) Extract(ctx context.Context, path, branch string, checkpoint *string) ([]model.Commit, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, &custom_errors.ErrRepositoryUnavailable{Path: path, Reason: "cannot open repository", Err: err}
	}

	tip, err := resolveBranchTip(repo, branch)
	if err != nil {
		return nil, &custom_errors.ErrRepositoryUnavailable{Path: path, Reason: "branch " + branch + " does not exist", Err: err}
	}

	tipCommit, err := repo.CommitObject(tip)
	if err != nil {
		return nil, &custom_errors.ErrCorruptHistory{SHA: tip.String(), Err: err}
	}

	var ignore []plumbing.Hash
	if checkpoint != nil {
		cpHash := plumbing.NewHash(*checkpoint)
		if _, err := repo.CommitObject(cpHash); err == nil {
			ignore = append(ignore, cpHash)
		} else {
			e.logger.Warn("Checkpoint no longer reachable, re-extracting full history",
				"path", path, "checkpoint", *checkpoint)
		}
	}

	var out []model.Commit
	iter := object.NewCommitPreorderIter(tipCommit, nil, ignore)
	err = iter.ForEach(func(c *object.Commit) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rec, err := e.commitRecord(c)
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		var corrupt *custom_errors.ErrCorruptHistory
		if errors.As(err, &corrupt) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &custom_errors.ErrCorruptHistory{SHA: tip.String(), Err: err}
	}

	// The submitter and puller both want ascending commit-date order so the
	// checkpoint lands on the newest commit of the batch.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CommitDate.Before(out[j].CommitDate)
	})
	return out, nil
}

// Tip resolves the branch tip SHA without extracting anything.
func (e *Extractor) Tip(path, branch string) (string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", &custom_errors.ErrRepositoryUnavailable{Path: path, Reason: "cannot open repository", Err: err}
	}
	tip, err := resolveBranchTip(repo, branch)
	if err != nil {
		return "", &custom_errors.ErrRepositoryUnavailable{Path: path, Reason: "branch " + branch + " does not exist", Err: err}
	}
	return tip.String(), nil
}

func (e *Extractor) commitRecord(c *object.Commit) (model.Commit, error) {
	title, body := splitMessage(c.Message)

	additions, deletions, filesChanged := 0, 0, 0
	stats, err := c.Stats()
	if err == nil {
		for _, fs := range stats {
			additions += fs.Addition
			deletions += fs.Deletion
		}
		filesChanged = len(stats)
	}
	// A failed diff is not fatal: the commit itself is intact, only its stats
	// are unavailable (common for exotic merge topologies).

	return model.Commit{
		SHA:            c.Hash.String(),
		AuthorName:     c.Author.Name,
		AuthorEmail:    strings.ToLower(c.Author.Email),
		CommitterName:  c.Committer.Name,
		CommitterEmail: strings.ToLower(c.Committer.Email),
		CommitDate:     c.Committer.When.UTC(),
		MessageTitle:   title,
		MessageBody:    body,
		Additions:      additions,
		Deletions:      deletions,
		FilesChanged:   filesChanged,
		IsMerge:        c.NumParents() > 1,
		ParentCount:    c.NumParents(),
	}, nil
}

func resolveBranchTip(repo *git.Repository, branch string) (plumbing.Hash, error) {
	// Local branch first, then the mirror/remote-tracking ref.
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err == nil {
		return ref.Hash(), nil
	}
	ref, err = repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err == nil {
		return ref.Hash(), nil
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(branch))
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return *hash, nil
}

func splitMessage(message string) (title, body string) {
	parts := strings.SplitN(message, "\n", 2)
	title = strings.TrimRight(parts[0], "\r")
	// Truncate on a rune boundary: cutting mid-rune would produce invalid
	// UTF-8 the store rejects.
	if utf8.RuneCountInString(title) > maxTitleLen {
		title = string([]rune(title)[:maxTitleLen])
	}
	if len(parts) > 1 {
		body = strings.TrimSpace(parts[1])
	}
	return title, body
}

// CloneOrFetch clones remoteURL into mirrorPath as a bare mirror on first use
// and fetches updates afterwards. token, when non-empty, is used as an HTTP
// bearer credential. Already-up-to-date is not an error.
func CloneOrFetch(ctx context.Context, remoteURL, mirrorPath, token string) error {
	var auth transport.AuthMethod
	if token != "" {
		auth = &githttp.BasicAuth{Username: "token", Password: token}
	}

	repo, err := git.PlainOpen(mirrorPath)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		_, err = git.PlainCloneContext(ctx, mirrorPath, true, &git.CloneOptions{
			URL:    remoteURL,
			Mirror: true,
			Auth:   auth,
		})
		return err
	}
	if err != nil {
		return err
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		Auth:       auth,
		Force:      true,
		Prune:      true,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}

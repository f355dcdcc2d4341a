// Package main provides migratectl, the administrative tool that moves
// repositories between pull and push transport. It talks to the database
// directly, like the other operator tooling.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"commitsync/internal/migration"
	"commitsync/internal/store"
)

var (
	dbURL    string
	toMode   string
	all      bool
	dryRun   bool
	actor    string
	levelVar = new(slog.LevelVar)
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "migratectl [repo-id...]",
		Short: "Migrate repositories between pull and push transport",
		Long: `Migrate repositories between pull and push transport.

The checkpoint is preserved in both directions, so the new transport resumes
exactly where the old one stopped. Migrating to push erases any stored remote
credential; migrating back to pull requires re-supplying it before the puller
can resume.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runMigrate,
	}
	root.Flags().StringVar(&dbURL, "db-url", os.Getenv("DB_URL"), "database connection string (defaults to $DB_URL)")
	root.Flags().StringVar(&toMode, "to", "push", `target transport: "push" or "pull"`)
	root.Flags().BoolVar(&all, "all", false, "migrate every repository currently on the source transport")
	root.Flags().BoolVar(&dryRun, "dry-run", false, "report intended changes without applying them")
	root.Flags().StringVar(&actor, "actor", "migratectl", "actor recorded in the audit log")
	return root
}

func runMigrate(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))

	var dir migration.Direction
	switch toMode {
	case "push":
		dir = migration.PullToPush
	case "pull":
		dir = migration.PushToPull
	default:
		return fmt.Errorf(`--to must be "push" or "pull", got %q`, toMode)
	}

	if dbURL == "" {
		return fmt.Errorf("--db-url or DB_URL is required")
	}
	if !all && len(args) == 0 {
		return fmt.Errorf("pass repository ids or --all")
	}

	ctx := context.Background()
	dbpool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer dbpool.Close()

	orch := migration.New(store.New(dbpool), logger, dryRun)

	var outcomes []migration.Outcome
	if all {
		outcomes, err = orch.MigrateAll(ctx, dir, actor)
		if err != nil {
			return err
		}
	} else {
		for _, repoID := range args {
			outcomes = append(outcomes, orch.Migrate(ctx, repoID, dir, actor))
		}
	}

	for _, out := range outcomes {
		switch {
		case out.Err != nil:
			fmt.Printf("✗ %s: %v\n", out.RepoID, out.Err)
		case out.Skipped:
			fmt.Printf("· %s (%s): already %s\n", out.RepoID, out.Name, out.To)
		case dryRun:
			fmt.Printf("· %s (%s): would migrate %s → %s, checkpoint preserved\n",
				out.RepoID, out.Name, out.From, out.To)
		default:
			fmt.Printf("✓ %s (%s): migrated %s → %s\n", out.RepoID, out.Name, out.From, out.To)
		}
	}

	applied, skipped, failed := migration.Summarize(outcomes)
	fmt.Printf("\n%d migrated, %d skipped, %d failed", applied, skipped, failed)
	if dryRun {
		fmt.Print(" (dry run)")
	}
	fmt.Println()

	if failed > 0 {
		return fmt.Errorf("%d migration(s) failed", failed)
	}
	return nil
}

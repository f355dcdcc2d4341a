// Package main provides the gitsync CLI: the push-transport client that
// extracts commits from local working copies and submits them to the
// ingestion service.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"commitsync/internal/extractor"
	"commitsync/internal/submitter"
)

var (
	configPath string
	dryRun     bool
	verbose    bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gitsync",
		Short:         "Push local git commit metadata to a commitsync server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "gitsync.yaml", "path to the client configuration file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(pushCmd())
	root.AddCommand(statusCmd())
	return root
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func pushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Extract and submit new commits for all configured repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cfg, err := submitter.LoadConfig(configPath)
			if err != nil {
				return err
			}

			client := submitter.NewClient(cfg.ServerURL, cfg.APIKey, cfg.MaxRetries, logger)
			ext := extractor.New(logger)
			sub := submitter.New(cfg, client, ext, logger, dryRun)

			reports := sub.Run(cmd.Context())

			failed := 0
			for _, report := range reports {
				if report.Err != nil {
					failed++
					fmt.Printf("✗ %s: %v\n", report.RepoID, report.Err)
					continue
				}
				if report.DryRun {
					fmt.Printf("· %s: would submit %d commits in %d batches (dry run)\n",
						report.RepoID, report.Extracted, report.Batches)
					continue
				}
				fmt.Printf("✓ %s: %d extracted, %d inserted, %d skipped",
					report.RepoID, report.Extracted, report.Inserted, report.Skipped)
				if report.Checkpoint != nil {
					fmt.Printf(", checkpoint %s", (*report.Checkpoint)[:12])
				}
				fmt.Println()
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d repositories failed", failed, len(reports))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "extract and batch but skip the network call")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server-side sync status for all configured repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cfg, err := submitter.LoadConfig(configPath)
			if err != nil {
				return err
			}
			client := submitter.NewClient(cfg.ServerURL, cfg.APIKey, cfg.MaxRetries, logger)

			for _, repo := range cfg.Repos {
				status, err := client.Status(cmd.Context(), repo.ID)
				if err != nil {
					fmt.Printf("✗ %s: %v\n", repo.ID, err)
					continue
				}
				checkpoint := "<none>"
				if status.LastIngestedSHA != nil {
					checkpoint = (*status.LastIngestedSHA)[:12]
				}
				fmt.Printf("%s  status=%s transport=%s commits=%d checkpoint=%s\n",
					status.RepoID, status.Status, status.Transport, status.TotalCommits, checkpoint)
				if status.ErrorMessage != nil {
					fmt.Printf("    last error: %s\n", *status.ErrorMessage)
				}
			}
			return nil
		},
	}
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/news-crawler/internal/crawler"
)

// newCleanupCmd creates the 'cleanup' subcommand, which deletes expired
// article content.
func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete article content past its expiry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			n, err := appInstance.Orchestrator().Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"deleted": n})
		},
	}
}

// newRequeueCmd creates the 'requeue' subcommand, which returns jobs in a
// given status to PENDING.
func newRequeueCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "requeue",
		Short: "Return jobs in --status to PENDING",
		Long: `FAILED and FORBIDDEN_BY_ROBOTS jobs are never retried automatically.
requeue makes them eligible again; IN_PROGRESS recovers jobs left behind by a
killed run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := crawler.JobStatus(strings.ToUpper(strings.TrimSpace(status)))
			if !s.Requeueable() {
				return fmt.Errorf("status %q cannot be requeued: %w", status, crawler.ErrInvalidStatus)
			}
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			n, err := appInstance.Orchestrator().Requeue(cmd.Context(), s)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"status": s, "requeued": n})
		},
	}
	cmd.Flags().StringVar(&status, "status", string(crawler.JobStatusFailed), "job status to requeue")
	return cmd
}

// newStatsCmd creates the 'stats' subcommand.
func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print job status counts and content statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := appInstance.Orchestrator().Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

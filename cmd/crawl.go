package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type crawlOptions struct {
	maxJobs int
	dryRun  bool
}

// newCrawlCmd creates the 'crawl' subcommand, which runs one bounded batch.
func newCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Process up to --max-jobs pending crawl jobs",
		Long: `Creates jobs for articles that have none, then fetches, extracts and
scores up to --max-jobs pending articles. Individual job failures are recorded
on the jobs and do not change the exit code.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, opts)
		},
	}
	cmd.Flags().IntVar(&opts.maxJobs, "max-jobs", 0, "maximum jobs to process (default crawler.max_jobs_default)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print planned actions without network calls or writes")
	return cmd
}

func runCrawl(cmd *cobra.Command, opts *crawlOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	maxJobs := opts.maxJobs
	if maxJobs <= 0 {
		maxJobs = appInstance.Config().Crawler.MaxJobsDefault
	}
	logger := appInstance.Logger()
	orch := appInstance.Orchestrator()

	if opts.dryRun {
		plan, err := orch.Plan(cmd.Context(), maxJobs)
		if err != nil {
			return fmt.Errorf("plan crawl: %w", err)
		}
		logger.Info("dry run",
			zap.Int("new_jobs", len(plan.NewJobArticles)),
			zap.Int("pending_jobs", len(plan.PendingJobs)))
		return printJSON(cmd.OutOrStdout(), plan)
	}

	summary, err := orch.Run(cmd.Context(), maxJobs)
	if perr := printJSON(cmd.OutOrStdout(), summary); perr != nil {
		logger.Warn("print summary failed", zap.Error(perr))
	}
	if err != nil {
		if cmd.Context().Err() != nil {
			return fmt.Errorf("crawl interrupted: %w", err)
		}
		return fmt.Errorf("run crawler: %w", err)
	}
	logger.Info("crawl command finished")
	return nil
}

// Package scheduler runs crawl batches and content cleanup on cron schedules
// inside the serve process.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/worker"
)

// Runner is the orchestrator surface the scheduler triggers.
type Runner interface {
	Run(ctx context.Context, maxJobs int) (worker.Summary, error)
	Cleanup(ctx context.Context) (int, error)
}

// Config holds the cron expressions. An empty expression disables that
// schedule.
type Config struct {
	CrawlCron   string
	CleanupCron string
	MaxJobs     int
}

// Scheduler wraps a cron instance.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	maxJobs int
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	entries int
}

// New parses the schedules and registers them. Overlapping triggers of the
// same schedule are skipped while the previous one is still running.
func New(cfg Config, runner Runner, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{s: logger.Sugar()}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s := &Scheduler{cron: c, runner: runner, maxJobs: cfg.MaxJobs, logger: logger}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if cfg.CrawlCron != "" {
		if _, err := c.AddFunc(cfg.CrawlCron, s.runCrawl); err != nil {
			return nil, fmt.Errorf("parse crawl schedule %q: %w", cfg.CrawlCron, err)
		}
		s.entries++
	}
	if cfg.CleanupCron != "" {
		if _, err := c.AddFunc(cfg.CleanupCron, s.runCleanup); err != nil {
			return nil, fmt.Errorf("parse cleanup schedule %q: %w", cfg.CleanupCron, err)
		}
		s.entries++
	}
	return s, nil
}

// Enabled reports whether any schedule is registered.
func (s *Scheduler) Enabled() bool {
	return s.entries > 0
}

// Start begins firing schedules in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("schedule registered", zap.Time("next_run", e.Next))
	}
}

// Stop cancels running triggers and waits for them to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) runCrawl() {
	start := time.Now()
	summary, err := s.runner.Run(s.ctx, s.maxJobs)
	if err != nil {
		s.logger.Error("scheduled crawl failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled crawl finished",
		zap.Int("processed", summary.Processed),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", time.Since(start)))
}

func (s *Scheduler) runCleanup() {
	n, err := s.runner.Cleanup(s.ctx)
	if err != nil {
		s.logger.Error("scheduled cleanup failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled cleanup finished", zap.Int("deleted", n))
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

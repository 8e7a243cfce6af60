// Package worker implements the crawl orchestrator: it turns pending crawl
// jobs into fetched, extracted and scored articles while honouring robots.txt
// and per-domain crawl delays.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/metrics"
	"github.com/JakeFAU/news-crawler/internal/sentiment"
)

// Run status values reported in Summary.Status.
const (
	RunCompleted   = "completed"
	RunInterrupted = "interrupted"
)

const (
	defaultNewJobsLimit    = 20
	defaultMaxContentChars = 1024
	defaultContentTTL      = 24 * time.Hour
	defaultSentimentTopic  = "article.sentiment"
)

// RobotsChecker answers robots.txt questions. robots.Cache satisfies it.
type RobotsChecker interface {
	IsAllowed(ctx context.Context, domain, path, userAgent string) (bool, string)
}

// RateGate tracks per-domain fetch times. ratelimit.Limiter satisfies it.
type RateGate interface {
	MayFetchNow(ctx context.Context, domain string, lastFetch time.Time) bool
	LastFetch(domain string) time.Time
	MarkFetched(domain string)
}

// Extractor pulls article text out of HTML. extract.Extractor satisfies it.
type Extractor interface {
	Extract(rawHTML []byte, pageURL string) (string, bool)
}

// Pacer spaces consecutive jobs. ratelimit.Pacer satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Config controls Orchestrator behavior.
type Config struct {
	UserAgent       string
	ContentTTL      time.Duration
	MaxContentChars int
	NewJobsLimit    int
	// StaleAfter enables reclaiming IN_PROGRESS jobs older than this at the
	// start of each run. Zero disables it.
	StaleAfter     time.Duration
	SentimentTopic string
}

// Deps are the collaborators of an Orchestrator. Publisher and Pacer are
// optional.
type Deps struct {
	Store     crawler.Store
	Robots    RobotsChecker
	Limiter   RateGate
	Fetcher   crawler.Fetcher
	Extractor Extractor
	Analyzer  sentiment.Analyzer
	Publisher crawler.Publisher
	Pacer     Pacer
	Clock     crawler.Clock
}

// Orchestrator processes crawl jobs sequentially.
type Orchestrator struct {
	store     crawler.Store
	robots    RobotsChecker
	limiter   RateGate
	fetcher   crawler.Fetcher
	extractor Extractor
	analyzer  sentiment.Analyzer
	publisher crawler.Publisher
	pacer     Pacer
	clock     crawler.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Orchestrator.
func New(deps Deps, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NewJobsLimit <= 0 {
		cfg.NewJobsLimit = defaultNewJobsLimit
	}
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = defaultMaxContentChars
	}
	if cfg.ContentTTL <= 0 {
		cfg.ContentTTL = defaultContentTTL
	}
	if cfg.SentimentTopic == "" {
		cfg.SentimentTopic = defaultSentimentTopic
	}
	return &Orchestrator{
		store:     deps.Store,
		robots:    deps.Robots,
		limiter:   deps.Limiter,
		fetcher:   deps.Fetcher,
		extractor: deps.Extractor,
		analyzer:  deps.Analyzer,
		publisher: deps.Publisher,
		pacer:     deps.Pacer,
		clock:     deps.Clock,
		cfg:       cfg,
		logger:    logger.Named("orchestrator"),
	}
}

// Summary reports the outcome of one Run.
type Summary struct {
	Status         string                    `json:"status"`
	Processed      int                       `json:"processed"`
	Successful     int                       `json:"successful"`
	Failed         int                       `json:"failed"`
	NewJobsCreated int                       `json:"new_jobs_created"`
	Reclaimed      int                       `json:"reclaimed,omitempty"`
	Outcomes       map[crawler.JobStatus]int `json:"outcomes,omitempty"`
	Duration       time.Duration             `json:"-"`
	// DurationSeconds mirrors Duration for JSON consumers.
	DurationSeconds float64 `json:"duration_seconds"`
}

// Run creates jobs for new articles and processes up to maxJobs pending jobs.
// Per-job failures are recorded on the jobs; only failures to read the queue
// are returned. A cancelled ctx stops the run between jobs and is returned
// alongside the partial summary.
func (o *Orchestrator) Run(ctx context.Context, maxJobs int) (summary Summary, err error) {
	start := o.clock.Now()
	summary = Summary{Status: RunCompleted, Outcomes: make(map[crawler.JobStatus]int)}
	defer func() {
		summary.Duration = o.clock.Now().Sub(start)
		summary.DurationSeconds = summary.Duration.Seconds()
	}()

	summary.Reclaimed = o.reclaimStale(ctx)

	created, err := o.createJobs(ctx)
	if err != nil {
		return summary, err
	}
	summary.NewJobsCreated = created

	jobs, err := o.store.ListPending(ctx, maxJobs)
	if err != nil {
		return summary, fmt.Errorf("list pending jobs: %w", err)
	}
	o.logger.Info("crawl run started",
		zap.Int("pending", len(jobs)),
		zap.Int("new_jobs", created),
		zap.Int("max_jobs", maxJobs))

	for _, job := range jobs {
		if err := o.pause(ctx); err != nil {
			summary.Status = RunInterrupted
			o.logger.Warn("crawl run interrupted", zap.Int("processed", summary.Processed))
			return summary, err
		}
		status, claimed := o.processJob(ctx, job)
		if !claimed {
			continue
		}
		summary.Processed++
		summary.Outcomes[status]++
		if status == crawler.JobStatusSuccess {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}

	o.logger.Info("crawl run finished",
		zap.Int("processed", summary.Processed),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func (o *Orchestrator) pause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run cancelled: %w", err)
	}
	if o.pacer == nil {
		return nil
	}
	if err := o.pacer.Wait(ctx); err != nil {
		return fmt.Errorf("run cancelled: %w", err)
	}
	return nil
}

func (o *Orchestrator) reclaimStale(ctx context.Context) int {
	if o.cfg.StaleAfter <= 0 {
		return 0
	}
	n, err := o.store.ReclaimStale(ctx, o.clock.Now().Add(-o.cfg.StaleAfter))
	if err != nil {
		o.logger.Warn("reclaim stale jobs failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		o.logger.Info("reclaimed stale jobs", zap.Int("count", n))
		metrics.ObserveStaleReclaimed(n)
	}
	return n
}

func (o *Orchestrator) createJobs(ctx context.Context) (int, error) {
	articles, err := o.store.FindArticlesWithoutJob(ctx, o.cfg.NewJobsLimit)
	if err != nil {
		return 0, fmt.Errorf("find articles without job: %w", err)
	}
	created := 0
	for _, article := range articles {
		job, err := o.store.CreateJob(ctx, article.ID)
		if err != nil {
			o.logger.Warn("create crawl job failed",
				zap.Int64("article_id", article.ID), zap.Error(err))
			continue
		}
		created++
		o.logger.Debug("created crawl job",
			zap.String("job_id", job.ID), zap.Int64("article_id", article.ID))
	}
	return created, nil
}

// Plan lists what Run would do without writing anything or touching the
// network.
type Plan struct {
	NewJobArticles []crawler.Article  `json:"new_job_articles"`
	PendingJobs    []crawler.CrawlJob `json:"pending_jobs"`
}

// Plan is the dry-run counterpart of Run.
func (o *Orchestrator) Plan(ctx context.Context, maxJobs int) (Plan, error) {
	articles, err := o.store.FindArticlesWithoutJob(ctx, o.cfg.NewJobsLimit)
	if err != nil {
		return Plan{}, fmt.Errorf("find articles without job: %w", err)
	}
	jobs, err := o.store.ListPending(ctx, maxJobs)
	if err != nil {
		return Plan{}, fmt.Errorf("list pending jobs: %w", err)
	}
	return Plan{NewJobArticles: articles, PendingJobs: jobs}, nil
}

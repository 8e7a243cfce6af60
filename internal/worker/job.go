package worker

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/extract"
	"github.com/JakeFAU/news-crawler/internal/metrics"
)

const (
	msgRateLimited = "Rate limited - respecting crawl delay"
	msgNoContent   = "No article content could be extracted"
	defaultLang    = "en"
)

// step reports whether processing continues after a pipeline stage.
type step int

const (
	next step = iota
	stop
)

// jobRun carries the state of one job through the pipeline.
type jobRun struct {
	job     crawler.CrawlJob
	article crawler.Article
	domain  string
	path    string
	started time.Time
	resp    crawler.FetchResponse
	text    string
	logger  *zap.Logger
}

// processJob runs one job to a terminal status. The boolean is false when
// the job was claimed by someone else and therefore skipped.
func (o *Orchestrator) processJob(ctx context.Context, job crawler.CrawlJob) (status crawler.JobStatus, claimed bool) {
	run := &jobRun{
		job:     job,
		started: o.clock.Now(),
		logger:  o.logger.With(zap.String("job_id", job.ID), zap.Int64("article_id", job.ArticleID)),
	}

	defer func() {
		if r := recover(); r != nil {
			run.logger.Error("job panicked", zap.Any("panic", r))
			status, claimed = o.failProcessing(ctx, run, fmt.Errorf("panic: %v", r)), true
		}
	}()

	ok, err := o.store.ClaimJob(ctx, job.ID, run.started)
	if err != nil {
		return o.failProcessing(ctx, run, fmt.Errorf("claim job: %w", err)), true
	}
	if !ok {
		run.logger.Info("job already claimed; skipping")
		return job.Status, false
	}
	run.job.Status = crawler.JobStatusInProgress
	run.job.UpdatedAt = run.started

	stages := []func(context.Context, *jobRun) (step, error){
		o.loadArticle,
		o.checkRobots,
		o.checkRateLimit,
		o.fetch,
		o.extractAndStore,
		o.scoreSentiment,
	}
	for _, stage := range stages {
		s, err := stage(ctx, run)
		if err != nil {
			return o.failProcessing(ctx, run, err), true
		}
		if s == stop {
			return o.finish(ctx, run), true
		}
	}

	run.job.Status = crawler.JobStatusSuccess
	run.job.ClearError()
	return o.finish(ctx, run), true
}

// finish persists the job in its terminal status. A failed save downgrades
// the job to a processing error. The save ignores cancellation of ctx so an
// interrupted run does not leave the job IN_PROGRESS.
func (o *Orchestrator) finish(ctx context.Context, run *jobRun) crawler.JobStatus {
	ctx = context.WithoutCancel(ctx)
	run.job.UpdatedAt = o.clock.Now()
	if err := o.store.SaveJob(ctx, run.job); err != nil {
		if run.job.ErrorCode == crawler.ErrorCodeProcessing {
			run.logger.Error("save failed job", zap.Error(err))
			metrics.ObserveJob(string(crawler.JobStatusFailed))
			return crawler.JobStatusFailed
		}
		return o.failProcessing(ctx, run, fmt.Errorf("save job: %w", err))
	}
	metrics.ObserveJob(string(run.job.Status))
	run.logger.Info("job finished",
		zap.String("status", string(run.job.Status)),
		zap.String("domain", run.domain),
		zap.Duration("elapsed", o.clock.Now().Sub(run.started)))
	return run.job.Status
}

func (o *Orchestrator) failProcessing(ctx context.Context, run *jobRun, err error) crawler.JobStatus {
	run.logger.Error("job processing failed", zap.Error(err))
	run.job.Status = crawler.JobStatusFailed
	run.job.SetError(crawler.ErrorCodeProcessing, fmt.Sprintf("Processing error: %v", err))
	return o.finish(ctx, run)
}

func (o *Orchestrator) loadArticle(ctx context.Context, run *jobRun) (step, error) {
	article, err := o.store.GetArticle(ctx, run.job.ArticleID)
	if err != nil {
		return stop, fmt.Errorf("load article: %w", err)
	}
	domain, err := crawler.DomainOf(article.URL)
	if err != nil {
		return stop, err
	}
	path, err := crawler.RequestPath(article.URL)
	if err != nil {
		return stop, err
	}
	run.article = article
	run.domain = domain
	run.path = path
	run.logger = run.logger.With(zap.String("domain", domain), zap.String("url", article.URL))
	return next, nil
}

func (o *Orchestrator) checkRobots(ctx context.Context, run *jobRun) (step, error) {
	allowed, reason := o.robots.IsAllowed(ctx, run.domain, run.path, o.cfg.UserAgent)
	run.job.RobotsAllowed = &allowed
	if allowed {
		return next, nil
	}
	run.logger.Info("blocked by robots.txt", zap.String("reason", reason))
	run.job.Status = crawler.JobStatusForbiddenByRobots
	run.job.SetError(crawler.ErrorCodeNone, reason)
	return stop, nil
}

func (o *Orchestrator) checkRateLimit(ctx context.Context, run *jobRun) (step, error) {
	if o.limiter.MayFetchNow(ctx, run.domain, o.limiter.LastFetch(run.domain)) {
		return next, nil
	}
	run.job.Status = crawler.JobStatusRateLimited
	run.job.SetError(crawler.ErrorCodeNone, msgRateLimited)
	return stop, nil
}

func (o *Orchestrator) fetch(ctx context.Context, run *jobRun) (step, error) {
	resp, err := o.fetcher.Fetch(ctx, crawler.FetchRequest{JobID: run.job.ID, URL: run.article.URL})
	o.limiter.MarkFetched(run.domain)
	if err != nil {
		run.logger.Warn("fetch failed", zap.Error(err))
		run.job.Status = crawler.JobStatusFailed
		run.job.SetError(crawler.ErrorCodeNetwork, fmt.Sprintf("Network error: %v", err))
		return stop, nil
	}
	metrics.ObserveFetch(run.domain, len(resp.Body), resp.Duration)

	fetchedAt := o.clock.Now()
	statusCode := resp.StatusCode
	size := len(resp.Body)
	run.job.HTTPStatus = &statusCode
	run.job.BytesDownloaded = &size
	run.job.FetchedAt = &fetchedAt

	if statusCode < 200 || statusCode >= 300 {
		run.job.Status = crawler.JobStatusFailed
		run.job.SetError(crawler.ErrorCodeNetwork, fmt.Sprintf("Network error: unexpected HTTP status %d", statusCode))
		return stop, nil
	}
	run.resp = resp
	return next, nil
}

func (o *Orchestrator) extractAndStore(ctx context.Context, run *jobRun) (step, error) {
	pageURL := run.resp.URL
	if pageURL == "" {
		pageURL = run.article.URL
	}
	text, ok := o.extractor.Extract(run.resp.Body, pageURL)
	if !ok {
		run.job.Status = crawler.JobStatusFailed
		run.job.SetError(crawler.ErrorCodeNone, msgNoContent)
		return stop, nil
	}
	run.text = text

	now := o.clock.Now()
	content := crawler.ArticleContent{
		ArticleID:     run.article.ID,
		ContentText:   extract.Truncate(text, o.cfg.MaxContentChars),
		ContentHash:   extract.Digest(text),
		ContentLength: utf8.RuneCountInString(text),
		ExtractedAt:   now,
		ExpiresAt:     now.Add(o.cfg.ContentTTL),
	}
	if err := o.store.UpsertContent(ctx, content); err != nil {
		return stop, fmt.Errorf("store content: %w", err)
	}
	return next, nil
}

func (o *Orchestrator) scoreSentiment(ctx context.Context, run *jobRun) (step, error) {
	result, err := o.analyzer.Analyze(ctx, run.text)
	if err != nil {
		return stop, fmt.Errorf("analyze sentiment: %w", err)
	}
	lang := run.article.Language
	if lang == "" {
		lang = defaultLang
	}
	record := crawler.SentimentRecord{
		ArticleID:  run.article.ID,
		Provider:   o.analyzer.Provider(),
		ModelName:  o.analyzer.Model(),
		Score:      result.Score,
		Magnitude:  result.Magnitude,
		Label:      result.Label,
		Language:   lang,
		AnalyzedAt: o.clock.Now(),
	}
	if err := o.store.RecordSentiment(ctx, record); err != nil {
		return stop, fmt.Errorf("record sentiment: %w", err)
	}
	if err := o.store.UpdateArticleSentiment(ctx, run.article.ID, result.Label, result.Score); err != nil {
		return stop, fmt.Errorf("update article sentiment: %w", err)
	}
	o.publishSentiment(ctx, run, record)
	return next, nil
}

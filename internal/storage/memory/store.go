// Package memory provides in-process implementations of the crawler stores
// for tests, dry runs and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/news-crawler/internal/crawler"
)

// ArticleSentiment is the label and score mirrored onto an article.
type ArticleSentiment struct {
	Label string
	Score float64
}

// Store implements crawler.Store in memory.
type Store struct {
	mu         sync.RWMutex
	ids        crawler.IDGenerator
	clock      crawler.Clock
	articles   map[int64]crawler.Article
	jobs       map[string]crawler.CrawlJob
	jobByArt   map[int64]string
	contents   map[int64]crawler.ArticleContent
	sentiments []crawler.SentimentRecord
	mirrored   map[int64]ArticleSentiment
}

// NewStore constructs an empty Store.
func NewStore(ids crawler.IDGenerator, clock crawler.Clock) *Store {
	return &Store{
		ids:      ids,
		clock:    clock,
		articles: make(map[int64]crawler.Article),
		jobs:     make(map[string]crawler.CrawlJob),
		jobByArt: make(map[int64]string),
		contents: make(map[int64]crawler.ArticleContent),
		mirrored: make(map[int64]ArticleSentiment),
	}
}

// AddArticle seeds an article row.
func (s *Store) AddArticle(article crawler.Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[article.ID] = article
}

// Ping implements crawler.Store.
func (s *Store) Ping(context.Context) error { return nil }

// Close implements crawler.Store.
func (s *Store) Close() {}

// FindArticlesWithoutJob returns up to limit articles that have no job, by id.
func (s *Store) FindArticlesWithoutJob(_ context.Context, limit int) ([]crawler.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.Article, 0)
	for id, article := range s.articles {
		if _, ok := s.jobByArt[id]; ok {
			continue
		}
		out = append(out, article)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateJob creates a PENDING job for articleID.
func (s *Store) CreateJob(_ context.Context, articleID int64) (crawler.CrawlJob, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return crawler.CrawlJob{}, fmt.Errorf("generate job id: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[articleID]; !ok {
		return crawler.CrawlJob{}, fmt.Errorf("article %d: %w", articleID, crawler.ErrNotFound)
	}
	if _, exists := s.jobByArt[articleID]; exists {
		return crawler.CrawlJob{}, fmt.Errorf("article %d: %w", articleID, crawler.ErrJobExists)
	}
	now := s.clock.Now()
	job := crawler.CrawlJob{
		ID:        id,
		ArticleID: articleID,
		Status:    crawler.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs[id] = job
	s.jobByArt[articleID] = id
	return job, nil
}

// ListPending returns claimable jobs, oldest first.
func (s *Store) ListPending(_ context.Context, limit int) ([]crawler.CrawlJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.CrawlJob, 0)
	for _, job := range s.jobs {
		if job.Status.Claimable() {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ClaimJob moves a claimable job to IN_PROGRESS.
func (s *Store) ClaimJob(_ context.Context, jobID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return false, fmt.Errorf("job %s: %w", jobID, crawler.ErrNotFound)
	}
	if !job.Status.Claimable() {
		return false, nil
	}
	job.Status = crawler.JobStatusInProgress
	job.UpdatedAt = at
	s.jobs[jobID] = job
	return true, nil
}

// SaveJob overwrites an existing job.
func (s *Store) SaveJob(_ context.Context, job crawler.CrawlJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return fmt.Errorf("job %s: %w", job.ID, crawler.ErrNotFound)
	}
	s.jobs[job.ID] = job
	return nil
}

// GetJob returns a job by id.
func (s *Store) GetJob(_ context.Context, jobID string) (crawler.CrawlJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawler.CrawlJob{}, fmt.Errorf("job %s: %w", jobID, crawler.ErrNotFound)
	}
	return job, nil
}

// GetArticle returns an article by id.
func (s *Store) GetArticle(_ context.Context, articleID int64) (crawler.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	article, ok := s.articles[articleID]
	if !ok {
		return crawler.Article{}, fmt.Errorf("article %d: %w", articleID, crawler.ErrNotFound)
	}
	return article, nil
}

// ReclaimStale returns IN_PROGRESS jobs last touched before olderThan to PENDING.
func (s *Store) ReclaimStale(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	n := 0
	for id, job := range s.jobs {
		if job.Status != crawler.JobStatusInProgress || !job.UpdatedAt.Before(olderThan) {
			continue
		}
		job.Status = crawler.JobStatusPending
		job.UpdatedAt = now
		s.jobs[id] = job
		n++
	}
	return n, nil
}

// Requeue moves every job in status back to PENDING and clears its error.
func (s *Store) Requeue(_ context.Context, status crawler.JobStatus) (int, error) {
	if !status.Requeueable() {
		return 0, fmt.Errorf("requeue %q: %w", status, crawler.ErrInvalidStatus)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	n := 0
	for id, job := range s.jobs {
		if job.Status != status {
			continue
		}
		job.Status = crawler.JobStatusPending
		job.ClearError()
		job.UpdatedAt = now
		s.jobs[id] = job
		n++
	}
	return n, nil
}

// JobStatusCounts returns the number of jobs per status.
func (s *Store) JobStatusCounts(context.Context) (map[crawler.JobStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[crawler.JobStatus]int, len(crawler.AllJobStatuses))
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

// UpsertContent stores content, replacing any previous row for the article.
func (s *Store) UpsertContent(_ context.Context, content crawler.ArticleContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contents[content.ArticleID] = content
	return nil
}

// GetContent returns the stored content for an article.
func (s *Store) GetContent(_ context.Context, articleID int64) (crawler.ArticleContent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.contents[articleID]
	if !ok {
		return crawler.ArticleContent{}, fmt.Errorf("content %d: %w", articleID, crawler.ErrNotFound)
	}
	return content, nil
}

// DeleteExpiredContent removes rows whose expiry is at or before now.
func (s *Store) DeleteExpiredContent(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, content := range s.contents {
		if !content.ExpiresAt.After(now) {
			delete(s.contents, id)
			n++
		}
	}
	return n, nil
}

// ContentStats summarizes stored content relative to now.
func (s *Store) ContentStats(_ context.Context, now time.Time) (crawler.ContentStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats crawler.ContentStats
	total := 0
	for _, content := range s.contents {
		stats.TotalRecords++
		if !content.ExpiresAt.After(now) {
			stats.ExpiredRecords++
		} else {
			stats.ActiveRecords++
		}
		total += content.ContentLength
	}
	if stats.TotalRecords > 0 {
		stats.AverageContentLength = float64(total) / float64(stats.TotalRecords)
	}
	return stats, nil
}

// RecordSentiment appends a sentiment row.
func (s *Store) RecordSentiment(_ context.Context, record crawler.SentimentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentiments = append(s.sentiments, record)
	return nil
}

// UpdateArticleSentiment mirrors the latest label and score onto the article.
func (s *Store) UpdateArticleSentiment(_ context.Context, articleID int64, label string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[articleID]; !ok {
		return fmt.Errorf("article %d: %w", articleID, crawler.ErrNotFound)
	}
	s.mirrored[articleID] = ArticleSentiment{Label: label, Score: score}
	return nil
}

// Sentiments returns the sentiment rows recorded for an article.
func (s *Store) Sentiments(articleID int64) []crawler.SentimentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crawler.SentimentRecord
	for _, rec := range s.sentiments {
		if rec.ArticleID == articleID {
			out = append(out, rec)
		}
	}
	return out
}

// ArticleSentiment returns the sentiment mirrored onto an article.
func (s *Store) ArticleSentiment(articleID int64) (ArticleSentiment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.mirrored[articleID]
	return v, ok
}

// JobForArticle returns the job created for an article, if any.
func (s *Store) JobForArticle(articleID int64) (crawler.CrawlJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.jobByArt[articleID]
	if !ok {
		return crawler.CrawlJob{}, false
	}
	return s.jobs[id], true
}

package crawler

import (
	"context"
	"time"
)

// JobStore persists crawl jobs and answers the orchestrator's queue queries.
type JobStore interface {
	FindArticlesWithoutJob(ctx context.Context, limit int) ([]Article, error)
	CreateJob(ctx context.Context, articleID int64) (CrawlJob, error)
	ListPending(ctx context.Context, limit int) ([]CrawlJob, error)
	// ClaimJob moves a claimable job to IN_PROGRESS. It returns false when
	// another run already holds the job.
	ClaimJob(ctx context.Context, jobID string, at time.Time) (bool, error)
	SaveJob(ctx context.Context, job CrawlJob) error
	GetJob(ctx context.Context, jobID string) (CrawlJob, error)
	GetArticle(ctx context.Context, articleID int64) (Article, error)
	ReclaimStale(ctx context.Context, olderThan time.Time) (int, error)
	Requeue(ctx context.Context, status JobStatus) (int, error)
	JobStatusCounts(ctx context.Context) (map[JobStatus]int, error)
}

// ContentStore upserts and expires extracted article content.
type ContentStore interface {
	UpsertContent(ctx context.Context, content ArticleContent) error
	GetContent(ctx context.Context, articleID int64) (ArticleContent, error)
	DeleteExpiredContent(ctx context.Context, now time.Time) (int, error)
	ContentStats(ctx context.Context, now time.Time) (ContentStats, error)
}

// SentimentStore records sentiment rows and mirrors the latest result onto
// the article.
type SentimentStore interface {
	RecordSentiment(ctx context.Context, record SentimentRecord) error
	UpdateArticleSentiment(ctx context.Context, articleID int64, label string, score float64) error
}

// Store is the full persistence surface used by the orchestrator.
type Store interface {
	JobStore
	ContentStore
	SentimentStore
	Ping(ctx context.Context) error
	Close()
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Publisher pushes events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

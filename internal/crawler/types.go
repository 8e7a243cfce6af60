package crawler

import (
	"errors"
	"net/http"
	"time"
)

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusPending           JobStatus = "PENDING"
	JobStatusInProgress        JobStatus = "IN_PROGRESS"
	JobStatusSuccess           JobStatus = "SUCCESS"
	JobStatusFailed            JobStatus = "FAILED"
	JobStatusForbiddenByRobots JobStatus = "FORBIDDEN_BY_ROBOTS"
	JobStatusRateLimited       JobStatus = "RATE_LIMITED"
)

// AllJobStatuses lists every status in lifecycle order.
var AllJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusInProgress,
	JobStatusSuccess,
	JobStatusFailed,
	JobStatusForbiddenByRobots,
	JobStatusRateLimited,
}

// IsTerminal reports whether the status ends a processing attempt.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSuccess, JobStatusFailed, JobStatusForbiddenByRobots, JobStatusRateLimited:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	for _, known := range AllJobStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ErrorCode classifies a failed job. The zero value means no code.
type ErrorCode string

// Error codes recorded on failed jobs.
const (
	ErrorCodeNone       ErrorCode = ""
	ErrorCodeNetwork    ErrorCode = "NETWORK_ERROR"
	ErrorCodeProcessing ErrorCode = "PROCESSING_ERROR"
)

// Sentinel errors returned by stores.
var (
	ErrNotFound  = errors.New("not found")
	ErrJobExists = errors.New("crawl job already exists for article")
)

// Article is the subset of the article table the crawler reads.
type Article struct {
	ID       int64  `json:"id"`
	URL      string `json:"url"`
	Language string `json:"language,omitempty"`
}

// CrawlJob is the persisted work item for one article.
type CrawlJob struct {
	ID              string     `json:"id"`
	ArticleID       int64      `json:"article_id"`
	Status          JobStatus  `json:"status"`
	RobotsAllowed   *bool      `json:"robots_allowed,omitempty"`
	HTTPStatus      *int       `json:"http_status,omitempty"`
	BytesDownloaded *int       `json:"bytes_downloaded,omitempty"`
	FetchedAt       *time.Time `json:"fetched_at,omitempty"`
	ErrorCode       ErrorCode  `json:"error_code,omitempty"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ClearError resets the error fields.
func (j *CrawlJob) ClearError() {
	j.ErrorCode = ErrorCodeNone
	j.ErrorMessage = nil
}

// SetError records an error code and message.
func (j *CrawlJob) SetError(code ErrorCode, msg string) {
	j.ErrorCode = code
	j.ErrorMessage = &msg
}

// ArticleContent holds the stored prefix of an article's extracted text.
type ArticleContent struct {
	ArticleID     int64     `json:"article_id"`
	ContentText   string    `json:"content_text"`
	ContentHash   string    `json:"content_hash"`
	ContentLength int       `json:"content_length"`
	ExtractedAt   time.Time `json:"extracted_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// SentimentRecord is one sentiment analysis row for an article.
type SentimentRecord struct {
	ArticleID  int64     `json:"article_id"`
	Provider   string    `json:"provider"`
	ModelName  string    `json:"model_name"`
	Score      float64   `json:"score"`
	Magnitude  *float64  `json:"magnitude,omitempty"`
	Label      string    `json:"label"`
	Language   string    `json:"language"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// ContentStats summarizes stored article content.
type ContentStats struct {
	TotalRecords         int     `json:"total_records"`
	ActiveRecords        int     `json:"active_records"`
	ExpiredRecords       int     `json:"expired_records"`
	AverageContentLength float64 `json:"average_content_length"`
}

// FetchRequest captures everything needed to fetch an article page.
type FetchRequest struct {
	JobID string
	URL   string
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// ErrInvalidStatus is returned when a status cannot be used for an operation.
var ErrInvalidStatus = errors.New("invalid job status")

// Requeueable reports whether jobs in status s may be moved back to PENDING.
func (s JobStatus) Requeueable() bool {
	return s.Valid() && s != JobStatusPending
}

// Claimable reports whether a job in status s may be picked up by a run.
func (s JobStatus) Claimable() bool {
	return s == JobStatusPending || s == JobStatusRateLimited
}

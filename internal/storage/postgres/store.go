// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/news-crawler/internal/crawler"
)

//go:embed schema.sql
var schemaSQL string

// claimableStatuses are picked up by ListPending and ClaimJob.
var claimableStatuses = []string{
	string(crawler.JobStatusPending),
	string(crawler.JobStatusRateLimited),
}

const jobColumns = `id, article_id, status, robots_allowed, http_status, bytes_downloaded,
	fetched_at, error_code, error_message, created_at, updated_at`

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// Store implements crawler.Store on Postgres.
type Store struct {
	pool  pool
	ids   crawler.IDGenerator
	clock crawler.Clock
}

// NewStore connects a pgx pool using cfg.
func NewStore(ctx context.Context, cfg Config, ids crawler.IDGenerator, clock crawler.Clock) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: p, ids: ids, clock: clock}, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewStoreWithPool(p pool, ids crawler.IDGenerator, clock crawler.Clock) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: p, ids: ids, clock: clock}, nil
}

// Migrate creates the crawler tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// FindArticlesWithoutJob returns up to limit job-less articles by id.
func (s *Store) FindArticlesWithoutJob(ctx context.Context, limit int) ([]crawler.Article, error) {
	rows, err := s.pool.Query(ctx, `
SELECT a.id, a.url, COALESCE(a.language, '')
FROM articles a
WHERE NOT EXISTS (SELECT 1 FROM crawl_jobs j WHERE j.article_id = a.id)
ORDER BY a.id
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query articles without job: %w", err)
	}
	defer rows.Close()

	var out []crawler.Article
	for rows.Next() {
		var a crawler.Article
		if err := rows.Scan(&a.ID, &a.URL, &a.Language); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return out, nil
}

// CreateJob inserts a PENDING job. The unique article_id constraint turns a
// second job for the same article into ErrJobExists.
func (s *Store) CreateJob(ctx context.Context, articleID int64) (crawler.CrawlJob, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return crawler.CrawlJob{}, fmt.Errorf("generate job id: %w", err)
	}
	now := s.clock.Now()
	tag, err := s.pool.Exec(ctx, `
INSERT INTO crawl_jobs (id, article_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (article_id) DO NOTHING`, id, articleID, string(crawler.JobStatusPending), now)
	if err != nil {
		return crawler.CrawlJob{}, fmt.Errorf("insert crawl job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return crawler.CrawlJob{}, fmt.Errorf("article %d: %w", articleID, crawler.ErrJobExists)
	}
	return crawler.CrawlJob{
		ID:        id,
		ArticleID: articleID,
		Status:    crawler.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ListPending returns claimable jobs, oldest first.
func (s *Store) ListPending(ctx context.Context, limit int) ([]crawler.CrawlJob, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+jobColumns+`
FROM crawl_jobs
WHERE status = ANY($1)
ORDER BY created_at, id
LIMIT $2`, claimableStatuses, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending jobs: %w", err)
	}
	defer rows.Close()

	var out []crawler.CrawlJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending jobs: %w", err)
	}
	return out, nil
}

// ClaimJob is a conditional update; it returns false when the job is no
// longer claimable.
func (s *Store) ClaimJob(ctx context.Context, jobID string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
UPDATE crawl_jobs SET status = $2, updated_at = $3
WHERE id = $1 AND status = ANY($4)`,
		jobID, string(crawler.JobStatusInProgress), at, claimableStatuses)
	if err != nil {
		return false, fmt.Errorf("claim job %s: %w", jobID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// SaveJob persists every mutable column of job.
func (s *Store) SaveJob(ctx context.Context, job crawler.CrawlJob) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE crawl_jobs SET
	status = $2,
	robots_allowed = $3,
	http_status = $4,
	bytes_downloaded = $5,
	fetched_at = $6,
	error_code = $7,
	error_message = $8,
	updated_at = $9
WHERE id = $1`,
		job.ID,
		string(job.Status),
		job.RobotsAllowed,
		job.HTTPStatus,
		job.BytesDownloaded,
		job.FetchedAt,
		errorCodeParam(job.ErrorCode),
		job.ErrorMessage,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", job.ID, crawler.ErrNotFound)
	}
	return nil
}

// GetJob loads a job by id.
func (s *Store) GetJob(ctx context.Context, jobID string) (crawler.CrawlJob, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM crawl_jobs WHERE id = $1`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.CrawlJob{}, fmt.Errorf("job %s: %w", jobID, crawler.ErrNotFound)
	}
	return job, err
}

// GetArticle loads an article by id.
func (s *Store) GetArticle(ctx context.Context, articleID int64) (crawler.Article, error) {
	var a crawler.Article
	err := s.pool.QueryRow(ctx,
		`SELECT id, url, COALESCE(language, '') FROM articles WHERE id = $1`, articleID,
	).Scan(&a.ID, &a.URL, &a.Language)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.Article{}, fmt.Errorf("article %d: %w", articleID, crawler.ErrNotFound)
	}
	if err != nil {
		return crawler.Article{}, fmt.Errorf("select article %d: %w", articleID, err)
	}
	return a, nil
}

// ReclaimStale returns IN_PROGRESS jobs last touched before olderThan to PENDING.
func (s *Store) ReclaimStale(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
UPDATE crawl_jobs SET status = $1, updated_at = $2
WHERE status = $3 AND updated_at < $4`,
		string(crawler.JobStatusPending), s.clock.Now(), string(crawler.JobStatusInProgress), olderThan)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Requeue moves every job in status back to PENDING and clears its error.
func (s *Store) Requeue(ctx context.Context, status crawler.JobStatus) (int, error) {
	if !status.Requeueable() {
		return 0, fmt.Errorf("requeue %q: %w", status, crawler.ErrInvalidStatus)
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE crawl_jobs SET status = $1, error_code = NULL, error_message = NULL, updated_at = $2
WHERE status = $3`,
		string(crawler.JobStatusPending), s.clock.Now(), string(status))
	if err != nil {
		return 0, fmt.Errorf("requeue %s jobs: %w", status, err)
	}
	return int(tag.RowsAffected()), nil
}

// JobStatusCounts returns the number of jobs per status.
func (s *Store) JobStatusCounts(ctx context.Context) (map[crawler.JobStatus]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM crawl_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[crawler.JobStatus]int)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan job count: %w", err)
		}
		counts[crawler.JobStatus(status)] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job counts: %w", err)
	}
	return counts, nil
}

func errorCodeParam(code crawler.ErrorCode) *string {
	if code == crawler.ErrorCodeNone {
		return nil
	}
	v := string(code)
	return &v
}

func scanJob(row pgx.Row) (crawler.CrawlJob, error) {
	var (
		job    crawler.CrawlJob
		status string
		code   *string
	)
	err := row.Scan(
		&job.ID,
		&job.ArticleID,
		&status,
		&job.RobotsAllowed,
		&job.HTTPStatus,
		&job.BytesDownloaded,
		&job.FetchedAt,
		&code,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.CrawlJob{}, err //nolint:wrapcheck // callers map ErrNoRows to ErrNotFound
	}
	if err != nil {
		return crawler.CrawlJob{}, fmt.Errorf("scan job: %w", err)
	}
	job.Status = crawler.JobStatus(status)
	if code != nil {
		job.ErrorCode = crawler.ErrorCode(*code)
	}
	return job, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/news-crawler/internal/crawler"
)

// UpsertContent writes the single content row for an article.
func (s *Store) UpsertContent(ctx context.Context, c crawler.ArticleContent) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO article_content (article_id, content_text, content_hash, content_length, extracted_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (article_id) DO UPDATE SET
	content_text = EXCLUDED.content_text,
	content_hash = EXCLUDED.content_hash,
	content_length = EXCLUDED.content_length,
	extracted_at = EXCLUDED.extracted_at,
	expires_at = EXCLUDED.expires_at`,
		c.ArticleID, c.ContentText, c.ContentHash, c.ContentLength, c.ExtractedAt, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert content for article %d: %w", c.ArticleID, err)
	}
	return nil
}

// GetContent loads the content row for an article.
func (s *Store) GetContent(ctx context.Context, articleID int64) (crawler.ArticleContent, error) {
	var c crawler.ArticleContent
	err := s.pool.QueryRow(ctx, `
SELECT article_id, content_text, content_hash, content_length, extracted_at, expires_at
FROM article_content WHERE article_id = $1`, articleID,
	).Scan(&c.ArticleID, &c.ContentText, &c.ContentHash, &c.ContentLength, &c.ExtractedAt, &c.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.ArticleContent{}, fmt.Errorf("content %d: %w", articleID, crawler.ErrNotFound)
	}
	if err != nil {
		return crawler.ArticleContent{}, fmt.Errorf("select content %d: %w", articleID, err)
	}
	return c, nil
}

// DeleteExpiredContent removes rows whose expiry is before now.
func (s *Store) DeleteExpiredContent(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM article_content WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired content: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ContentStats summarizes stored content relative to now.
func (s *Store) ContentStats(ctx context.Context, now time.Time) (crawler.ContentStats, error) {
	var (
		total, active int64
		avg           float64
	)
	err := s.pool.QueryRow(ctx, `
SELECT COUNT(*),
	COUNT(*) FILTER (WHERE expires_at > $1),
	COALESCE(AVG(content_length), 0)::float8
FROM article_content`, now).Scan(&total, &active, &avg)
	if err != nil {
		return crawler.ContentStats{}, fmt.Errorf("content stats: %w", err)
	}
	return crawler.ContentStats{
		TotalRecords:         int(total),
		ActiveRecords:        int(active),
		ExpiredRecords:       int(total - active),
		AverageContentLength: avg,
	}, nil
}

// RecordSentiment inserts a sentiment row.
func (s *Store) RecordSentiment(ctx context.Context, r crawler.SentimentRecord) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO sentiment_analysis (article_id, provider, model_name, score, magnitude, label, language, analyzed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ArticleID, r.Provider, r.ModelName, r.Score, r.Magnitude, r.Label, r.Language, r.AnalyzedAt)
	if err != nil {
		return fmt.Errorf("insert sentiment for article %d: %w", r.ArticleID, err)
	}
	return nil
}

// UpdateArticleSentiment mirrors the latest label and score onto the article.
func (s *Store) UpdateArticleSentiment(ctx context.Context, articleID int64, label string, score float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE articles SET sentiment_label = $2, sentiment_score = $3 WHERE id = $1`,
		articleID, label, score)
	if err != nil {
		return fmt.Errorf("update article %d sentiment: %w", articleID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("article %d: %w", articleID, crawler.ErrNotFound)
	}
	return nil
}

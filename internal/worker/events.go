package worker

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/metrics"
)

// SentimentEvent is streamed to the analytics sink after each scored article.
type SentimentEvent struct {
	EventID          string    `json:"event_id"`
	ArticleID        int64     `json:"article_id"`
	ArticleURL       string    `json:"article_url"`
	Provider         string    `json:"sentiment_provider"`
	Model            string    `json:"sentiment_model"`
	Score            float64   `json:"sentiment_score"`
	Magnitude        *float64  `json:"sentiment_magnitude"`
	Label            string    `json:"sentiment_label"`
	Language         string    `json:"language"`
	ContentLength    int       `json:"content_length"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	ExtractionMethod string    `json:"extraction_method"`
	IngestedAt       time.Time `json:"ingested_at"`
}

// publishSentiment is best effort: a failed publish is logged and counted
// but does not fail the job.
func (o *Orchestrator) publishSentiment(ctx context.Context, run *jobRun, record crawler.SentimentRecord) {
	if o.publisher == nil {
		return
	}
	now := o.clock.Now()
	event := SentimentEvent{
		EventID:          fmt.Sprintf("%d_%s_%d", record.ArticleID, record.Provider, now.Unix()),
		ArticleID:        record.ArticleID,
		ArticleURL:       run.article.URL,
		Provider:         record.Provider,
		Model:            record.ModelName,
		Score:            record.Score,
		Magnitude:        record.Magnitude,
		Label:            record.Label,
		Language:         record.Language,
		ContentLength:    utf8.RuneCountInString(run.text),
		ProcessingTimeMs: now.Sub(run.started).Milliseconds(),
		ExtractionMethod: "web_crawl",
		IngestedAt:       now,
	}
	id, err := o.publisher.Publish(ctx, o.cfg.SentimentTopic, event)
	if err != nil {
		metrics.ObserveSentimentPublishFailure()
		run.logger.Warn("publish sentiment event failed", zap.Error(err))
		return
	}
	run.logger.Debug("sentiment event published", zap.String("message_id", id))
}

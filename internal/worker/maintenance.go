package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/metrics"
)

// Stats is the monitoring view of the crawl tables.
type Stats struct {
	Jobs    map[crawler.JobStatus]int `json:"jobs"`
	Content crawler.ContentStats      `json:"content"`
}

// Cleanup deletes article content past its expiry.
func (o *Orchestrator) Cleanup(ctx context.Context) (int, error) {
	n, err := o.store.DeleteExpiredContent(ctx, o.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("delete expired content: %w", err)
	}
	metrics.ObserveContentDeleted(n)
	o.logger.Info("expired content deleted", zap.Int("count", n))
	return n, nil
}

// Requeue returns every job in status to PENDING.
func (o *Orchestrator) Requeue(ctx context.Context, status crawler.JobStatus) (int, error) {
	n, err := o.store.Requeue(ctx, status)
	if err != nil {
		return 0, fmt.Errorf("requeue %s: %w", status, err)
	}
	o.logger.Info("jobs requeued", zap.String("status", string(status)), zap.Int("count", n))
	return n, nil
}

// Stats reports job counts per status and content statistics.
func (o *Orchestrator) Stats(ctx context.Context) (Stats, error) {
	counts, err := o.store.JobStatusCounts(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("job status counts: %w", err)
	}
	for _, s := range crawler.AllJobStatuses {
		if _, ok := counts[s]; !ok {
			counts[s] = 0
		}
	}
	content, err := o.store.ContentStats(ctx, o.clock.Now())
	if err != nil {
		return Stats{}, fmt.Errorf("content stats: %w", err)
	}
	return Stats{Jobs: counts, Content: content}, nil
}

// Ready reports whether the store is reachable.
func (o *Orchestrator) Ready(ctx context.Context) error {
	if err := o.store.Ping(ctx); err != nil {
		return fmt.Errorf("store not ready: %w", err)
	}
	return nil
}

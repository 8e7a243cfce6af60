package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/news-crawler/internal/clock/system"
	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/id/uuid"
)

var epoch = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, articleIDs ...int64) (*Store, *system.Manual) {
	t.Helper()
	clock := system.NewManual(epoch)
	s := NewStore(uuid.New(), clock)
	for _, id := range articleIDs {
		s.AddArticle(crawler.Article{ID: id, URL: "https://news.example/" + string(rune('a'+id))})
	}
	return s, clock
}

func TestFindArticlesWithoutJob(t *testing.T) {
	s, _ := newTestStore(t, 3, 1, 2)
	ctx := context.Background()

	_, err := s.CreateJob(ctx, 2)
	require.NoError(t, err)

	articles, err := s.FindArticlesWithoutJob(ctx, 10)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	require.EqualValues(t, 1, articles[0].ID)
	require.EqualValues(t, 3, articles[1].ID)

	limited, err := s.FindArticlesWithoutJob(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestCreateJobRejectsDuplicates(t *testing.T) {
	s, _ := newTestStore(t, 1)
	ctx := context.Background()

	job, err := s.CreateJob(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusPending, job.Status)
	require.NotEmpty(t, job.ID)

	_, err = s.CreateJob(ctx, 1)
	require.ErrorIs(t, err, crawler.ErrJobExists)

	_, err = s.CreateJob(ctx, 99)
	require.ErrorIs(t, err, crawler.ErrNotFound)
}

func TestListPendingOrderAndClaim(t *testing.T) {
	s, clock := newTestStore(t, 1, 2, 3)
	ctx := context.Background()

	var jobs []crawler.CrawlJob
	for _, id := range []int64{2, 1, 3} {
		job, err := s.CreateJob(ctx, id)
		require.NoError(t, err)
		jobs = append(jobs, job)
		clock.Advance(time.Second)
	}

	limited := jobs[2]
	limited.Status = crawler.JobStatusRateLimited
	require.NoError(t, s.SaveJob(ctx, limited))
	done := jobs[1]
	done.Status = crawler.JobStatusSuccess
	require.NoError(t, s.SaveJob(ctx, done))

	pending, err := s.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, jobs[0].ID, pending[0].ID)
	require.Equal(t, jobs[2].ID, pending[1].ID)

	ok, err := s.ClaimJob(ctx, jobs[0].ID, clock.Now())
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.ClaimJob(ctx, jobs[0].ID, clock.Now())
	require.NoError(t, err)
	require.False(t, ok, "second claimer loses")

	got, err := s.GetJob(ctx, jobs[0].ID)
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusInProgress, got.Status)
}

func TestReclaimStaleAndRequeue(t *testing.T) {
	s, clock := newTestStore(t, 1, 2)
	ctx := context.Background()

	stale, err := s.CreateJob(ctx, 1)
	require.NoError(t, err)
	failed, err := s.CreateJob(ctx, 2)
	require.NoError(t, err)

	_, err = s.ClaimJob(ctx, stale.ID, clock.Now())
	require.NoError(t, err)
	failed.Status = crawler.JobStatusFailed
	failed.SetError(crawler.ErrorCodeNetwork, "Network error: boom")
	require.NoError(t, s.SaveJob(ctx, failed))

	clock.Advance(time.Hour)
	n, err := s.ReclaimStale(ctx, clock.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)
	n, err = s.ReclaimStale(ctx, clock.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = s.Requeue(ctx, crawler.JobStatusFailed)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	got, err := s.GetJob(ctx, failed.ID)
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusPending, got.Status)
	require.Nil(t, got.ErrorMessage)
	require.Equal(t, crawler.ErrorCodeNone, got.ErrorCode)

	_, err = s.Requeue(ctx, crawler.JobStatusPending)
	require.ErrorIs(t, err, crawler.ErrInvalidStatus)

	counts, err := s.JobStatusCounts(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, counts[crawler.JobStatusPending])
}

func TestContentLifecycle(t *testing.T) {
	s, clock := newTestStore(t, 1, 2)
	ctx := context.Background()

	require.NoError(t, s.UpsertContent(ctx, crawler.ArticleContent{
		ArticleID: 1, ContentText: "old", ContentLength: 3, ExpiresAt: epoch.Add(time.Hour),
	}))
	require.NoError(t, s.UpsertContent(ctx, crawler.ArticleContent{
		ArticleID: 1, ContentText: "new", ContentLength: 5, ExpiresAt: epoch.Add(time.Hour),
	}))
	require.NoError(t, s.UpsertContent(ctx, crawler.ArticleContent{
		ArticleID: 2, ContentText: "x", ContentLength: 1, ExpiresAt: epoch.Add(3 * time.Hour),
	}))

	got, err := s.GetContent(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "new", got.ContentText)

	clock.Advance(2 * time.Hour)
	stats, err := s.ContentStats(ctx, clock.Now())
	require.NoError(t, err)
	require.Equal(t, crawler.ContentStats{TotalRecords: 2, ActiveRecords: 1, ExpiredRecords: 1, AverageContentLength: 3}, stats)

	n, err := s.DeleteExpiredContent(ctx, clock.Now())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, err = s.GetContent(ctx, 1)
	require.ErrorIs(t, err, crawler.ErrNotFound)
}

func TestSentimentMirroring(t *testing.T) {
	s, _ := newTestStore(t, 1)
	ctx := context.Background()

	require.NoError(t, s.RecordSentiment(ctx, crawler.SentimentRecord{ArticleID: 1, Label: "positive", Score: 0.6}))
	require.NoError(t, s.UpdateArticleSentiment(ctx, 1, "positive", 0.6))
	require.Len(t, s.Sentiments(1), 1)

	mirrored, ok := s.ArticleSentiment(1)
	require.True(t, ok)
	require.Equal(t, ArticleSentiment{Label: "positive", Score: 0.6}, mirrored)

	require.ErrorIs(t, s.UpdateArticleSentiment(ctx, 42, "neutral", 0), crawler.ErrNotFound)
}

func TestContentExpiresAtBoundary(t *testing.T) {
	s, clock := newTestStore(t, 1)
	ctx := context.Background()

	require.NoError(t, s.UpsertContent(ctx, crawler.ArticleContent{
		ArticleID: 1, ContentText: "edge", ContentLength: 4, ExpiresAt: clock.Now(),
	}))

	stats, err := s.ContentStats(ctx, clock.Now())
	require.NoError(t, err)
	require.Equal(t, 1, stats.ExpiredRecords)
	require.Equal(t, 0, stats.ActiveRecords)

	n, err := s.DeleteExpiredContent(ctx, clock.Now())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, err = s.GetContent(ctx, 1)
	require.ErrorIs(t, err, crawler.ErrNotFound)
}

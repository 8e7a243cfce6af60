package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/app"
	"github.com/JakeFAU/news-crawler/internal/clock/system"
	"github.com/JakeFAU/news-crawler/internal/config"
	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/id/uuid"
	"github.com/JakeFAU/news-crawler/internal/storage/memory"
	"github.com/JakeFAU/news-crawler/internal/worker"
)

// useMemoryApp swaps the app factory for one backed by store. Tests in this
// package mutate newApp and therefore do not run in parallel.
func useMemoryApp(t *testing.T, store *memory.Store) {
	t.Helper()
	orig := newApp
	newApp = func(ctx context.Context, cfg config.Config, _ *zap.Logger) (*app.App, error) {
		return app.NewWithOptions(ctx, cfg, zap.NewNop(), app.Options{Store: store})
	}
	t.Cleanup(func() { newApp = orig })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore(uuid.New(), system.New())
	store.AddArticle(crawler.Article{ID: 1, URL: "https://news.example/one"})
	store.AddArticle(crawler.Article{ID: 2, URL: "https://news.example/two"})
	return store
}

func TestCrawlDryRunPrintsPlanWithoutWrites(t *testing.T) {
	store := seededStore(t)
	useMemoryApp(t, store)

	out, err := execute(t, "crawl", "--dry-run", "--max-jobs", "5")
	require.NoError(t, err)

	var plan worker.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	require.Len(t, plan.NewJobArticles, 2)
	require.Empty(t, plan.PendingJobs)

	_, ok := store.JobForArticle(1)
	require.False(t, ok, "dry run must not create jobs")
}

func TestCrawlWithNothingPendingCompletes(t *testing.T) {
	useMemoryApp(t, memory.NewStore(uuid.New(), system.New()))

	out, err := execute(t, "crawl", "--max-jobs", "3")
	require.NoError(t, err)

	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	require.Equal(t, worker.RunCompleted, summary["status"])
	require.EqualValues(t, 0, summary["processed"])
	require.Contains(t, summary, "duration_seconds")
}

func TestRequeueCommand(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()
	job, err := store.CreateJob(ctx, 1)
	require.NoError(t, err)
	job.Status = crawler.JobStatusForbiddenByRobots
	require.NoError(t, store.SaveJob(ctx, job))
	useMemoryApp(t, store)

	out, err := execute(t, "requeue", "--status", "forbidden_by_robots")
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"FORBIDDEN_BY_ROBOTS","requeued":1}`, out)

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusPending, got.Status)
}

func TestRequeueRejectsPending(t *testing.T) {
	useMemoryApp(t, seededStore(t))

	_, err := execute(t, "requeue", "--status", "PENDING")
	require.ErrorIs(t, err, crawler.ErrInvalidStatus)
}

func TestCleanupAndStatsCommands(t *testing.T) {
	useMemoryApp(t, seededStore(t))

	out, err := execute(t, "cleanup")
	require.NoError(t, err)
	require.JSONEq(t, `{"deleted":0}`, out)

	out, err = execute(t, "stats")
	require.NoError(t, err)
	var stats worker.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	require.Equal(t, 0, stats.Jobs[crawler.JobStatusPending])
}

func TestStartupFailureIsReturned(t *testing.T) {
	_, err := execute(t, "--config", "/nonexistent/crawler.yaml", "stats")
	require.Error(t, err)
	require.Contains(t, err.Error(), "load config")
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JakeFAU/news-crawler/internal/clock/system"
	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/extract"
	"github.com/JakeFAU/news-crawler/internal/id/uuid"
	"github.com/JakeFAU/news-crawler/internal/policy/ratelimit"
	pubmemory "github.com/JakeFAU/news-crawler/internal/publisher/memory"
	"github.com/JakeFAU/news-crawler/internal/sentiment"
	"github.com/JakeFAU/news-crawler/internal/storage/memory"
)

const testAgent = "NewsCrawlerBot/1.0"

var epoch = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

var articleBody = strings.Repeat("Shares rallied strongly after the company reported record profits and excellent growth. ", 20)

func articleHTML(body string) []byte {
	return []byte(`<html><head><title>t</title><script>track()</script></head><body>
<nav>Home | World</nav><article><h1>Big day</h1><p>` + body + `</p></article><footer>(c)</footer></body></html>`)
}

type fakeRobots struct {
	deny map[string]bool
}

func (f *fakeRobots) IsAllowed(_ context.Context, domain, _, userAgent string) (bool, string) {
	if f != nil && f.deny[domain] {
		return false, fmt.Sprintf("Disallowed by robots.txt for user-agent '%s'", userAgent)
	}
	return true, "Allowed by robots.txt"
}

type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]crawler.FetchResponse
	errs      map[string]error
	panics    map[string]bool
	calls     []string
	// onFetch runs inside every Fetch call, before the response is chosen.
	onFetch func()
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[string]crawler.FetchResponse),
		errs:      make(map[string]error),
		panics:    make(map[string]bool),
	}
}

func (f *fakeFetcher) serve(url string, status int, body []byte) {
	f.responses[url] = crawler.FetchResponse{
		URL:        url,
		StatusCode: status,
		Headers:    http.Header{"Content-Type": {"text/html"}},
		Body:       body,
		Duration:   20 * time.Millisecond,
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.URL)
	f.mu.Unlock()
	if f.onFetch != nil {
		f.onFetch()
	}
	if f.panics[req.URL] {
		panic("fetcher exploded")
	}
	if err := f.errs[req.URL]; err != nil {
		return crawler.FetchResponse{}, err
	}
	resp, ok := f.responses[req.URL]
	if !ok {
		return crawler.FetchResponse{}, errors.New("no route to host")
	}
	return resp, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// faultyStore injects failures into selected memory store operations.
type faultyStore struct {
	*memory.Store
	upsertErr  error
	listErr    error
	saveErr    error
	loseClaims bool
	// ctxAware makes SaveJob fail once ctx is done, like a real driver.
	ctxAware bool
}

func (s *faultyStore) UpsertContent(ctx context.Context, c crawler.ArticleContent) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	return s.Store.UpsertContent(ctx, c)
}

func (s *faultyStore) ListPending(ctx context.Context, limit int) ([]crawler.CrawlJob, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.Store.ListPending(ctx, limit)
}

func (s *faultyStore) ClaimJob(ctx context.Context, id string, at time.Time) (bool, error) {
	if s.loseClaims {
		return false, nil
	}
	return s.Store.ClaimJob(ctx, id, at)
}

func (s *faultyStore) SaveJob(ctx context.Context, job crawler.CrawlJob) error {
	if s.ctxAware && ctx.Err() != nil {
		return ctx.Err()
	}
	if s.saveErr != nil && job.Status == crawler.JobStatusSuccess {
		return s.saveErr
	}
	return s.Store.SaveJob(ctx, job)
}

type harness struct {
	clock     *system.Manual
	store     *memory.Store
	fetcher   *fakeFetcher
	robots    *fakeRobots
	limiter   *ratelimit.Limiter
	publisher *pubmemory.Publisher
	cfg       Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := system.NewManual(epoch)
	return &harness{
		clock:     clock,
		store:     memory.NewStore(uuid.New(), clock),
		fetcher:   newFakeFetcher(),
		robots:    &fakeRobots{deny: map[string]bool{}},
		limiter:   ratelimit.New(ratelimit.Config{UserAgent: testAgent}, nil, nil, clock, nil),
		publisher: pubmemory.New(),
		cfg: Config{
			UserAgent:       testAgent,
			ContentTTL:      24 * time.Hour,
			MaxContentChars: 1024,
			NewJobsLimit:    20,
		},
	}
}

func (h *harness) orchestrator(store crawler.Store) *Orchestrator {
	if store == nil {
		store = h.store
	}
	return New(Deps{
		Store:     store,
		Robots:    h.robots,
		Limiter:   h.limiter,
		Fetcher:   h.fetcher,
		Extractor: extract.New(extract.Options{}),
		Analyzer:  sentiment.NewVader(),
		Publisher: h.publisher,
		Clock:     h.clock,
	}, h.cfg, nil)
}

func (h *harness) addArticle(id int64, url string) {
	h.store.AddArticle(crawler.Article{ID: id, URL: url})
}

func (h *harness) jobFor(t *testing.T, articleID int64) crawler.CrawlJob {
	t.Helper()
	job, ok := h.store.JobForArticle(articleID)
	if !ok {
		t.Fatalf("no job for article %d", articleID)
	}
	return job
}

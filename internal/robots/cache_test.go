package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testAgent = "NewsCrawlerBot/1.0"

func robotsServer(t *testing.T, tls bool, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
	var srv *httptest.Server
	if tls {
		srv = httptest.NewTLSServer(handler)
	} else {
		srv = httptest.NewServer(handler)
	}
	t.Cleanup(srv.Close)
	return srv, &hits
}

func domainOf(srv *httptest.Server) string {
	return strings.TrimPrefix(strings.TrimPrefix(srv.URL, "https://"), "http://")
}

func TestIsAllowedHonoursAgentGroups(t *testing.T) {
	body := "User-agent: newscrawlerbot\nDisallow: /private\nAllow: /private/press\nCrawl-delay: 2\n\nUser-agent: *\nDisallow: /\n"
	srv, hits := robotsServer(t, true, http.StatusOK, body)
	cache := NewCache(Options{UserAgent: testAgent, Client: srv.Client()})
	domain := domainOf(srv)
	ctx := context.Background()

	allowed, reason := cache.IsAllowed(ctx, domain, "/news/1", testAgent)
	require.True(t, allowed)
	require.Equal(t, ReasonAllowed, reason)

	allowed, reason = cache.IsAllowed(ctx, domain, "/private/doc", testAgent)
	require.False(t, allowed)
	require.Equal(t, "Disallowed by robots.txt for user-agent 'NewsCrawlerBot/1.0'", reason)

	allowed, _ = cache.IsAllowed(ctx, domain, "/private/press/release", testAgent)
	require.True(t, allowed, "longer Allow rule wins")

	allowed, _ = cache.IsAllowed(ctx, domain, "/news/1", "OtherBot")
	require.False(t, allowed)

	delay, ok := cache.CrawlDelay(ctx, domain, testAgent)
	require.True(t, ok)
	require.Equal(t, 2*time.Second, delay)

	require.EqualValues(t, 1, hits.Load(), "policy is fetched once and cached")
}

func TestNotFoundIsPermissiveAndCached(t *testing.T) {
	srv, hits := robotsServer(t, true, http.StatusNotFound, "")
	store := NewMemoryStore()
	cache := NewCache(Options{UserAgent: testAgent, Client: srv.Client(), Store: store})
	domain := domainOf(srv)

	for range 3 {
		allowed, reason := cache.IsAllowed(context.Background(), domain, "/anything", "")
		require.True(t, allowed)
		require.Equal(t, ReasonPermissive, reason)
	}
	_, ok := cache.CrawlDelay(context.Background(), domain, "")
	require.False(t, ok)
	require.EqualValues(t, 1, hits.Load())
	require.Equal(t, 1, store.Len())
}

func TestFallsBackToHTTP(t *testing.T) {
	srv, hits := robotsServer(t, false, http.StatusOK, "User-agent: *\nDisallow: /blocked\n")
	cache := NewCache(Options{UserAgent: testAgent, Timeout: 2 * time.Second})
	domain := domainOf(srv)

	allowed, reason := cache.IsAllowed(context.Background(), domain, "/blocked/page", testAgent)
	require.False(t, allowed)
	require.Contains(t, reason, "Disallowed")
	require.EqualValues(t, 1, hits.Load())
}

func TestTotalFailureIsPermissiveAndNotCached(t *testing.T) {
	srv, hits := robotsServer(t, true, http.StatusInternalServerError, "")
	store := NewMemoryStore()
	cache := NewCache(Options{UserAgent: testAgent, Client: srv.Client(), Store: store, Timeout: 2 * time.Second})
	domain := domainOf(srv)

	allowed, reason := cache.IsAllowed(context.Background(), domain, "/x", "")
	require.True(t, allowed)
	require.Equal(t, ReasonPermissive, reason)
	require.Equal(t, 0, store.Len())

	cache.IsAllowed(context.Background(), domain, "/x", "")
	require.EqualValues(t, 2, hits.Load(), "failures are retried on the next call")
}

func TestUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	domain := domainOf(srv)
	srv.Close()

	cache := NewCache(Options{UserAgent: testAgent, Timeout: time.Second})
	allowed, reason := cache.IsAllowed(context.Background(), domain, "/", "")
	require.True(t, allowed)
	require.Equal(t, ReasonPermissive, reason)
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	srv, hits := robotsServer(t, true, http.StatusOK, "User-agent: *\nAllow: /\n")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewCache(Options{
		UserAgent: testAgent,
		Client:    srv.Client(),
		TTL:       time.Hour,
		Now:       func() time.Time { return now },
	})
	domain := domainOf(srv)

	cache.Policy(context.Background(), domain)
	now = now.Add(59 * time.Minute)
	cache.Policy(context.Background(), domain)
	require.EqualValues(t, 1, hits.Load())

	now = now.Add(2 * time.Minute)
	cache.Policy(context.Background(), domain)
	require.EqualValues(t, 2, hits.Load())
}

func TestPermissivePolicy(t *testing.T) {
	p := Permissive()
	require.True(t, p.IsPermissive())
	require.True(t, p.Allowed("/admin", testAgent))
	_, ok := p.CrawlDelay(testAgent)
	require.False(t, ok)

	var nilPolicy *Policy
	require.True(t, nilPolicy.Allowed("/", testAgent))
}

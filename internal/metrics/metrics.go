// Package metrics exposes Prometheus collectors for the crawler service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerJobsTotal             *prometheus.CounterVec
	crawlerBytesTotal            *prometheus.CounterVec
	crawlerFetchDurationSeconds  prometheus.Histogram
	crawlerRobotsFetchTotal      *prometheus.CounterVec
	crawlerRateLimitedTotal      *prometheus.CounterVec
	crawlerContentDeletedTotal   prometheus.Counter
	crawlerStaleJobsReclaimed    prometheus.Counter
	httpRequestsTotal            *prometheus.CounterVec
	httpRequestDurationSeconds   *prometheus.HistogramVec
	sentimentEventsPublishFailed prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_jobs_total",
				Help: "Total number of crawl jobs finished, labeled by final status.",
			},
			[]string{"status"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_bytes_total",
				Help: "Total number of article bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerFetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_fetch_duration_seconds",
				Help:    "Histogram of article fetch latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		crawlerRobotsFetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_robots_fetch_total",
				Help: "Total robots.txt lookups that hit the network, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlerRateLimitedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_rate_limited_total",
				Help: "Total jobs deferred by the per-domain crawl delay, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerContentDeletedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_content_deleted_total",
				Help: "Total expired article content rows removed by TTL cleanup.",
			},
		)

		crawlerStaleJobsReclaimed = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_stale_jobs_reclaimed_total",
				Help: "Total IN_PROGRESS jobs returned to PENDING after a crashed run.",
			},
		)

		sentimentEventsPublishFailed = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_sentiment_events_publish_failed_total",
				Help: "Total sentiment events that could not be published.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL or domain to a lowercase hostname.
// It returns "unknown" if the input is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob increments the job counter for the given final status.
func ObserveJob(status string) {
	Init()
	crawlerJobsTotal.WithLabelValues(status).Inc()
}

// ObserveFetch records the size and latency of one article fetch.
func ObserveFetch(site string, bytesFetched int, duration time.Duration) {
	Init()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(SanitizeSite(site)).Add(float64(bytesFetched))
	}
	crawlerFetchDurationSeconds.Observe(duration.Seconds())
}

// ObserveRobotsFetch counts a robots.txt network lookup.
func ObserveRobotsFetch(outcome string) {
	Init()
	crawlerRobotsFetchTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimited counts a job deferred by crawl delay.
func ObserveRateLimited(site string) {
	Init()
	crawlerRateLimitedTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

// ObserveContentDeleted adds n to the TTL cleanup counter.
func ObserveContentDeleted(n int) {
	Init()
	if n > 0 {
		crawlerContentDeletedTotal.Add(float64(n))
	}
}

// ObserveStaleReclaimed adds n to the reclaimed-jobs counter.
func ObserveStaleReclaimed(n int) {
	Init()
	if n > 0 {
		crawlerStaleJobsReclaimed.Add(float64(n))
	}
}

// ObserveSentimentPublishFailure counts a failed sentiment event publish.
func ObserveSentimentPublishFailure() {
	Init()
	sentimentEventsPublishFailed.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

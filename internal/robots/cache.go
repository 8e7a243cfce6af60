// Package robots fetches, parses and caches robots.txt per domain and answers
// allow and crawl-delay questions for the orchestrator.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/metrics"
)

const (
	// ReasonAllowed is returned when a parsed robots.txt permits the path.
	ReasonAllowed = "Allowed by robots.txt"
	// ReasonPermissive is returned when robots.txt is missing or unreachable.
	ReasonPermissive = "No robots.txt or fetch failed (permissive default)"

	reasonDisallowedFmt = "Disallowed by robots.txt for user-agent '%s'"

	defaultTTL       = 24 * time.Hour
	defaultTimeout   = 10 * time.Second
	maxRobotsBodyLen = 512 * 1024
)

// Options configures a Cache.
type Options struct {
	UserAgent string
	TTL       time.Duration
	Timeout   time.Duration
	// Client overrides the HTTP client used for robots.txt requests.
	Client *http.Client
	Store  EntryStore
	// Now overrides the clock used for TTL checks.
	Now    func() time.Time
	Logger *zap.Logger
}

// Cache resolves robots policies, keeping each for TTL.
type Cache struct {
	userAgent string
	ttl       time.Duration
	timeout   time.Duration
	client    *http.Client
	store     EntryStore
	now       func() time.Time
	logger    *zap.Logger
}

// NewCache builds a Cache, filling in defaults for unset options.
func NewCache(opts Options) *Cache {
	c := &Cache{
		userAgent: opts.UserAgent,
		ttl:       opts.TTL,
		timeout:   opts.Timeout,
		client:    opts.Client,
		store:     opts.Store,
		now:       opts.Now,
		logger:    opts.Logger,
	}
	if c.ttl <= 0 {
		c.ttl = defaultTTL
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	if c.store == nil {
		c.store = NewMemoryStore()
	}
	if c.now == nil {
		c.now = func() time.Time { return time.Now().UTC() }
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// IsAllowed reports whether userAgent may fetch path on domain, together with
// a human-readable reason.
func (c *Cache) IsAllowed(ctx context.Context, domain, path, userAgent string) (bool, string) {
	if userAgent == "" {
		userAgent = c.userAgent
	}
	policy := c.Policy(ctx, domain)
	if policy.IsPermissive() {
		return true, ReasonPermissive
	}
	if policy.Allowed(path, userAgent) {
		return true, ReasonAllowed
	}
	return false, fmt.Sprintf(reasonDisallowedFmt, userAgent)
}

// CrawlDelay returns the robots.txt Crawl-delay for domain, if one is set.
func (c *Cache) CrawlDelay(ctx context.Context, domain, userAgent string) (time.Duration, bool) {
	if userAgent == "" {
		userAgent = c.userAgent
	}
	return c.Policy(ctx, domain).CrawlDelay(userAgent)
}

// Policy returns the policy for domain, fetching robots.txt when the cached
// entry is missing or older than the TTL. It never fails: unreachable hosts
// yield a permissive policy that is not cached.
func (c *Cache) Policy(ctx context.Context, domain string) *Policy {
	if entry, ok := c.store.Get(domain); ok && c.now().Sub(entry.FetchedAt) < c.ttl {
		return entry.Policy
	}

	policy, cacheable := c.load(ctx, domain)
	if cacheable {
		c.store.Put(domain, Entry{Policy: policy, FetchedAt: c.now()})
	}
	return policy
}

func (c *Cache) load(ctx context.Context, domain string) (policy *Policy, cacheable bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("robots fetch panicked; allowing access",
				zap.String("domain", domain), zap.Any("panic", r))
			metrics.ObserveRobotsFetch("error")
			policy, cacheable = Permissive(), false
		}
	}()

	status, body, err := c.fetch(ctx, "https://"+domain+"/robots.txt")
	switch {
	case err == nil && status == http.StatusNotFound:
		metrics.ObserveRobotsFetch("not_found")
		return Permissive(), true
	case err == nil && status >= 200 && status < 300:
		return c.parse(domain, body)
	}
	c.logger.Debug("robots over https failed; retrying over http",
		zap.String("domain", domain), zap.Int("status", status), zap.Error(err))

	status, body, err = c.fetch(ctx, "http://"+domain+"/robots.txt")
	switch {
	case err == nil && status == http.StatusNotFound:
		metrics.ObserveRobotsFetch("not_found")
		return Permissive(), true
	case err == nil && status == http.StatusOK:
		return c.parse(domain, body)
	}

	c.logger.Warn("robots fetch failed; allowing access",
		zap.String("domain", domain), zap.Int("status", status), zap.Error(err))
	metrics.ObserveRobotsFetch("error")
	return Permissive(), false
}

// parse returns a permissive, uncached policy when the body cannot be parsed.
func (c *Cache) parse(domain string, body []byte) (*Policy, bool) {
	policy, err := Parse(body)
	if err != nil {
		c.logger.Warn("robots parse failed; allowing access",
			zap.String("domain", domain), zap.Error(err))
		metrics.ObserveRobotsFetch("parse_error")
		return Permissive(), false
	}
	metrics.ObserveRobotsFetch("parsed")
	return policy, true
}

func (c *Cache) fetch(ctx context.Context, robotsURL string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return 0, nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("Failed to close robots response body", zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyLen))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read robots body: %w", err)
	}
	return resp.StatusCode, body, nil
}

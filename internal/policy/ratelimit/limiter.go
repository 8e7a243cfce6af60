// Package ratelimit enforces the per-domain crawl delay and the short pause
// between consecutive jobs.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/metrics"
)

// DefaultCrawlDelay applies when robots.txt sets no Crawl-delay.
const DefaultCrawlDelay = time.Second

// DelaySource supplies robots.txt crawl delays. robots.Cache satisfies it.
type DelaySource interface {
	CrawlDelay(ctx context.Context, domain, userAgent string) (time.Duration, bool)
}

// FetchLog records the last fetch attempt per domain.
type FetchLog interface {
	LastFetch(domain string) (time.Time, bool)
	MarkFetched(domain string, at time.Time)
}

// MemoryFetchLog is a mutex-guarded in-process FetchLog.
type MemoryFetchLog struct {
	mu   sync.RWMutex
	last map[string]time.Time
}

// NewMemoryFetchLog returns an empty MemoryFetchLog.
func NewMemoryFetchLog() *MemoryFetchLog {
	return &MemoryFetchLog{last: make(map[string]time.Time)}
}

// LastFetch implements FetchLog.
func (m *MemoryFetchLog) LastFetch(domain string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.last[domain]
	return at, ok
}

// MarkFetched implements FetchLog.
func (m *MemoryFetchLog) MarkFetched(domain string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[domain] = at
}

// Config holds limiter configuration.
type Config struct {
	UserAgent    string
	DefaultDelay time.Duration
}

// Limiter decides whether a domain may be fetched now. It never blocks.
type Limiter struct {
	delays       DelaySource
	log          FetchLog
	clock        crawler.Clock
	userAgent    string
	defaultDelay time.Duration
	logger       *zap.Logger
}

// New creates a Limiter. A nil delays source means only the default delay
// applies; a nil log gets an in-memory one.
func New(cfg Config, delays DelaySource, log FetchLog, clock crawler.Clock, logger *zap.Logger) *Limiter {
	if log == nil {
		log = NewMemoryFetchLog()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	delay := cfg.DefaultDelay
	if delay <= 0 {
		delay = DefaultCrawlDelay
	}
	return &Limiter{
		delays:       delays,
		log:          log,
		clock:        clock,
		userAgent:    cfg.UserAgent,
		defaultDelay: delay,
		logger:       logger,
	}
}

// EffectiveDelay returns the robots Crawl-delay for domain, or the default.
func (l *Limiter) EffectiveDelay(ctx context.Context, domain string) time.Duration {
	if l.delays != nil {
		if d, ok := l.delays.CrawlDelay(ctx, domain, l.userAgent); ok {
			return d
		}
	}
	return l.defaultDelay
}

// MayFetchNow reports whether enough time has passed since lastFetch. A zero
// lastFetch means first contact and is always allowed.
func (l *Limiter) MayFetchNow(ctx context.Context, domain string, lastFetch time.Time) bool {
	if lastFetch.IsZero() {
		return true
	}
	delay := l.EffectiveDelay(ctx, domain)
	elapsed := l.clock.Now().Sub(lastFetch)
	if elapsed >= delay {
		return true
	}
	l.logger.Debug("crawl delay not yet elapsed",
		zap.String("domain", domain),
		zap.Duration("elapsed", elapsed),
		zap.Duration("delay", delay))
	metrics.ObserveRateLimited(domain)
	return false
}

// Allow checks domain against its own recorded last fetch.
func (l *Limiter) Allow(ctx context.Context, domain string) bool {
	return l.MayFetchNow(ctx, domain, l.LastFetch(domain))
}

// LastFetch returns the last attempt time for domain, or the zero time.
func (l *Limiter) LastFetch(domain string) time.Time {
	at, _ := l.log.LastFetch(domain)
	return at
}

// MarkFetched records a fetch attempt for domain at the current time.
func (l *Limiter) MarkFetched(domain string) {
	l.log.MarkFetched(domain, l.clock.Now())
}

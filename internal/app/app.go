// Package app initializes and holds long-lived application services, acting
// as the dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/api"
	"github.com/JakeFAU/news-crawler/internal/clock/system"
	"github.com/JakeFAU/news-crawler/internal/config"
	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/news-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/news-crawler/internal/id/uuid"
	"github.com/JakeFAU/news-crawler/internal/metrics"
	"github.com/JakeFAU/news-crawler/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/news-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/news-crawler/internal/robots"
	"github.com/JakeFAU/news-crawler/internal/sentiment"
	"github.com/JakeFAU/news-crawler/internal/storage/memory"
	"github.com/JakeFAU/news-crawler/internal/storage/postgres"
	"github.com/JakeFAU/news-crawler/internal/worker"
)

const startupPingTimeout = 10 * time.Second

// App holds the shared services built from Config.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	store        crawler.Store
	publisher    *pubsubpublisher.Publisher
	orchestrator *worker.Orchestrator
}

// Options overrides collaborators that are otherwise built from config.
type Options struct {
	// Store replaces the configured store.
	Store crawler.Store
	// Clock replaces the system clock.
	Clock crawler.Clock
	// Publisher replaces the Pub/Sub publisher.
	Publisher crawler.Publisher
}

// New builds every service and verifies the store is reachable. It fails
// fast: any error here is a startup failure.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	return NewWithOptions(ctx, cfg, logger, Options{})
}

// NewWithOptions is New with injectable collaborators.
func NewWithOptions(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	clock := opts.Clock
	if clock == nil {
		clock = system.New()
	}

	a := &App{cfg: cfg, logger: logger}

	store, err := a.buildStore(ctx, opts.Store, clock)
	if err != nil {
		return nil, err
	}
	a.store = store

	pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		store.Close()
		return nil, fmt.Errorf("store unreachable: %w", err)
	}

	publisher := opts.Publisher
	if publisher == nil && cfg.PubSub.ProjectID != "" {
		p, err := pubsubpublisher.Connect(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.publisher = p
		publisher = p
		logger.Info("sentiment events enabled",
			zap.String("project", cfg.PubSub.ProjectID),
			zap.String("topic", cfg.PubSub.TopicName))
	}

	crawlerCfg := cfg.Crawler
	cache := robots.NewCache(robots.Options{
		UserAgent: crawlerCfg.UserAgent,
		TTL:       crawlerCfg.RobotsTTL(),
		Timeout:   crawlerCfg.RobotsTimeout(),
		Now:       clock.Now,
		Logger:    logger.Named("robots"),
	})
	limiter := ratelimit.New(ratelimit.Config{
		UserAgent:    crawlerCfg.UserAgent,
		DefaultDelay: crawlerCfg.CrawlDelay(),
	}, cache, nil, clock, logger.Named("ratelimit"))

	deps := worker.Deps{
		Store:   store,
		Robots:  cache,
		Limiter: limiter,
		Fetcher: collyfetcher.New(collyfetcher.Config{
			UserAgent: crawlerCfg.UserAgent,
			Timeout:   crawlerCfg.RequestTimeout(),
		}),
		Extractor: extract.New(extract.Options{
			ReadabilityFirst: cfg.Extractor.ReadabilityFirst,
			Logger:           logger.Named("extract"),
		}),
		Analyzer:  sentiment.NewVader(),
		Publisher: publisher,
		Pacer:     ratelimit.NewPacer(crawlerCfg.JobPause()),
		Clock:     clock,
	}
	a.orchestrator = worker.New(deps, worker.Config{
		UserAgent:       crawlerCfg.UserAgent,
		ContentTTL:      crawlerCfg.ContentTTL(),
		MaxContentChars: crawlerCfg.MaxContentChars,
		NewJobsLimit:    crawlerCfg.NewJobsLimit,
		StaleAfter:      crawlerCfg.StaleAfter(),
		SentimentTopic:  cfg.PubSub.TopicName,
	}, logger)

	logger.Info("application services initialized")
	return a, nil
}

func (a *App) buildStore(ctx context.Context, override crawler.Store, clock crawler.Clock) (crawler.Store, error) {
	if override != nil {
		return override, nil
	}
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("db.dsn not set; using in-memory store")
		return memory.NewStore(uuid.New(), clock), nil
	}
	store, err := postgres.NewStore(ctx, postgres.Config{
		DSN:             a.cfg.DB.DSN,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(a.cfg.DB.MaxConnLifetimeMinutes) * time.Minute,
	}, uuid.New(), clock)
	if err != nil {
		return nil, fmt.Errorf("init postgres store: %w", err)
	}
	if a.cfg.DB.Migrate {
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}
	return store, nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Store returns the configured store.
func (a *App) Store() crawler.Store {
	return a.store
}

// Orchestrator returns the crawl orchestrator.
func (a *App) Orchestrator() *worker.Orchestrator {
	return a.orchestrator
}

// Server builds the HTTP trigger over the orchestrator.
func (a *App) Server() *api.Server {
	return api.NewServer(a.orchestrator, api.Config{
		DefaultMaxJobs: a.cfg.Crawler.MaxJobsDefault,
		RequestTimeout: time.Duration(a.cfg.Server.RequestTimeoutSeconds) * time.Second,
		AuthEnabled:    a.cfg.Auth.Enabled,
		APIKey:         a.cfg.Auth.APIKey,
	}, a.logger.Named("api"))
}

// Close releases the publisher and the store.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("close pubsub publisher", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
}

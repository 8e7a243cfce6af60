// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultUserAgent identifies the crawler to publishers.
const DefaultUserAgent = "NewsCrawlerBot/1.0 (+https://github.com/JakeFAU/news-crawler)"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs politeness and the crawl pipeline.
type CrawlerConfig struct {
	UserAgent                string  `mapstructure:"user_agent"`
	DefaultCrawlDelaySeconds float64 `mapstructure:"default_crawl_delay_seconds"`
	// MaxConcurrentDomains is reserved; runs are sequential.
	MaxConcurrentDomains  int `mapstructure:"max_concurrent_domains"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
	RobotsCacheTTLHours   int `mapstructure:"robots_cache_ttl_hours"`
	RobotsTimeoutSeconds  int `mapstructure:"robots_timeout_seconds"`
	ContentTTLHours       int `mapstructure:"content_ttl_hours"`
	MaxContentChars       int `mapstructure:"max_content_chars"`
	JobPauseMs            int `mapstructure:"job_pause_ms"`
	NewJobsLimit          int `mapstructure:"new_jobs_limit"`
	StaleJobMinutes       int `mapstructure:"stale_job_minutes"`
	MaxJobsDefault        int `mapstructure:"max_jobs_default"`
}

// ExtractorConfig tunes content extraction.
type ExtractorConfig struct {
	ReadabilityFirst bool `mapstructure:"readability_first"`
}

// DBConfig controls access to Postgres. An empty DSN selects the in-memory
// store.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
	Migrate                bool   `mapstructure:"migrate"`
}

// PubSubConfig holds the sentiment event topic. Publishing is disabled when
// ProjectID is empty.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// SchedulerConfig configures the in-process cron used by serve.
type SchedulerConfig struct {
	CrawlCron   string `mapstructure:"crawl_cron"`
	CleanupCron string `mapstructure:"cleanup_cron"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 600)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("crawler.user_agent", DefaultUserAgent)
	v.SetDefault("crawler.default_crawl_delay_seconds", 1.0)
	v.SetDefault("crawler.max_concurrent_domains", 3)
	v.SetDefault("crawler.request_timeout_seconds", 30)
	v.SetDefault("crawler.robots_cache_ttl_hours", 24)
	v.SetDefault("crawler.robots_timeout_seconds", 10)
	v.SetDefault("crawler.content_ttl_hours", 24)
	v.SetDefault("crawler.max_content_chars", 1024)
	v.SetDefault("crawler.job_pause_ms", 500)
	v.SetDefault("crawler.new_jobs_limit", 20)
	v.SetDefault("crawler.stale_job_minutes", 0)
	v.SetDefault("crawler.max_jobs_default", 10)
	v.SetDefault("extractor.readability_first", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("db.migrate", false)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "article-sentiment")
	v.SetDefault("scheduler.crawl_cron", "")
	v.SetDefault("scheduler.cleanup_cron", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if strings.TrimSpace(c.Crawler.UserAgent) == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if c.Crawler.DefaultCrawlDelaySeconds < 0 {
		return fmt.Errorf("crawler.default_crawl_delay_seconds must be >= 0")
	}
	if c.Crawler.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.request_timeout_seconds must be > 0")
	}
	if c.Crawler.RobotsTimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.robots_timeout_seconds must be > 0")
	}
	if c.Crawler.RobotsCacheTTLHours <= 0 {
		return fmt.Errorf("crawler.robots_cache_ttl_hours must be > 0")
	}
	if c.Crawler.ContentTTLHours <= 0 {
		return fmt.Errorf("crawler.content_ttl_hours must be > 0")
	}
	if c.Crawler.MaxContentChars <= 0 {
		return fmt.Errorf("crawler.max_content_chars must be > 0")
	}
	if c.Crawler.JobPauseMs < 0 {
		return fmt.Errorf("crawler.job_pause_ms must be >= 0")
	}
	if c.Crawler.NewJobsLimit <= 0 {
		return fmt.Errorf("crawler.new_jobs_limit must be > 0")
	}
	if c.Crawler.StaleJobMinutes < 0 {
		return fmt.Errorf("crawler.stale_job_minutes must be >= 0")
	}
	if c.Crawler.MaxJobsDefault <= 0 {
		return fmt.Errorf("crawler.max_jobs_default must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return fmt.Errorf("pubsub.topic_name must be set when pubsub.project_id is set")
	}
	return nil
}

// CrawlDelay is the default per-domain delay.
func (c CrawlerConfig) CrawlDelay() time.Duration {
	return time.Duration(c.DefaultCrawlDelaySeconds * float64(time.Second))
}

// RequestTimeout bounds a single article fetch.
func (c CrawlerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// RobotsTTL is how long a robots.txt entry stays fresh.
func (c CrawlerConfig) RobotsTTL() time.Duration {
	return time.Duration(c.RobotsCacheTTLHours) * time.Hour
}

// RobotsTimeout bounds a robots.txt fetch.
func (c CrawlerConfig) RobotsTimeout() time.Duration {
	return time.Duration(c.RobotsTimeoutSeconds) * time.Second
}

// ContentTTL is the retention period of extracted content.
func (c CrawlerConfig) ContentTTL() time.Duration {
	return time.Duration(c.ContentTTLHours) * time.Hour
}

// JobPause is the spacing between consecutive jobs.
func (c CrawlerConfig) JobPause() time.Duration {
	return time.Duration(c.JobPauseMs) * time.Millisecond
}

// StaleAfter is the age at which IN_PROGRESS jobs are reclaimed; zero disables it.
func (c CrawlerConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleJobMinutes) * time.Minute
}

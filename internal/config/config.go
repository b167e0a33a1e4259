package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	BlobAPIURL            string `envconfig:"BLOB_API_URL" required:"true"`
	BlobAPIToken          string `envconfig:"BLOB_API_TOKEN" required:"true"`
	BlobPrefix            string `envconfig:"BLOB_PREFIX" default:"articles/"`
	BlobRequestIntervalMS int    `envconfig:"BLOB_REQUEST_INTERVAL_MS" default:"250"`
	BlobScanPageSize      int    `envconfig:"BLOB_SCAN_PAGE_SIZE" default:"100"`
	BlobScanMaxPages      int    `envconfig:"BLOB_SCAN_MAX_PAGES" default:"10"`
	BlobScanMaxEntries    int    `envconfig:"BLOB_SCAN_MAX_ENTRIES" default:"1000"`

	AIBaseURL        string `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	AIAPIKey         string `envconfig:"AI_API_KEY" default:""`
	AIModel          string `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	AIEnrichDelayMS  int    `envconfig:"AI_ENRICH_DELAY_MS" default:"2000"`
	AIEnrichTimeoutS int    `envconfig:"AI_ENRICH_TIMEOUT_SECONDS" default:"60"`

	NewsAPIURL      string `envconfig:"NEWS_API_URL" default:"https://newsapi.org/v2"`
	NewsAPIKey      string `envconfig:"NEWS_API_KEY" default:""`
	NewsAPIPageSize int    `envconfig:"NEWS_API_PAGE_SIZE" default:"20"`
	RSSFeeds        string `envconfig:"RSS_FEEDS" default:""`

	ArticleTTLHours int `envconfig:"ARTICLE_TTL_HOURS" default:"24"`

	ServerPort         int    `envconfig:"PORT" default:"8080"`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.BlobAPIURL) == "" {
		return fmt.Errorf("BLOB_API_URL is required")
	}
	if strings.TrimSpace(c.BlobAPIToken) == "" {
		return fmt.Errorf("BLOB_API_TOKEN is required")
	}
	if c.BlobRequestIntervalMS < 0 {
		return fmt.Errorf("BLOB_REQUEST_INTERVAL_MS must be >= 0")
	}
	if c.BlobScanPageSize < 1 {
		return fmt.Errorf("BLOB_SCAN_PAGE_SIZE must be >= 1")
	}
	if c.BlobScanMaxPages < 1 {
		return fmt.Errorf("BLOB_SCAN_MAX_PAGES must be >= 1")
	}
	if c.BlobScanMaxEntries < 1 {
		return fmt.Errorf("BLOB_SCAN_MAX_ENTRIES must be >= 1")
	}
	if c.AIEnrichTimeoutS < 1 {
		return fmt.Errorf("AI_ENRICH_TIMEOUT_SECONDS must be >= 1")
	}
	if c.NewsAPIPageSize < 1 {
		return fmt.Errorf("NEWS_API_PAGE_SIZE must be >= 1")
	}
	if c.ArticleTTLHours < 1 {
		return fmt.Errorf("ARTICLE_TTL_HOURS must be >= 1")
	}
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	return nil
}

// BlobRequestInterval is the minimum spacing between store requests.
func (c *Config) BlobRequestInterval() time.Duration {
	return time.Duration(c.BlobRequestIntervalMS) * time.Millisecond
}

func (c *Config) AIEnrichDelay() time.Duration {
	return time.Duration(c.AIEnrichDelayMS) * time.Millisecond
}

func (c *Config) AIEnrichTimeout() time.Duration {
	return time.Duration(c.AIEnrichTimeoutS) * time.Second
}

func (c *Config) ArticleTTL() time.Duration {
	return time.Duration(c.ArticleTTLHours) * time.Hour
}

// RSSFeedList splits the comma-separated feed configuration, dropping blanks
// and duplicates.
func (c *Config) RSSFeedList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.RSSFeeds, ",")
	feeds := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		feed := strings.TrimSpace(part)
		if feed == "" {
			continue
		}
		if _, exists := seen[feed]; exists {
			continue
		}
		seen[feed] = struct{}{}
		feeds = append(feeds, feed)
	}
	return feeds
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}

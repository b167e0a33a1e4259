package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/wpatrik14/newsaggregator/internal/model"
)

const DefaultRSSTimeout = 15 * time.Second

// RSSOptions configures the feed provider.
type RSSOptions struct {
	FeedURLs   []string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// RSS fetches articles from a fixed set of syndication feeds.
type RSS struct {
	feedURLs   []string
	httpClient *http.Client
}

func NewRSS(opts RSSOptions) (*RSS, error) {
	feedURLs := make([]string, 0, len(opts.FeedURLs))
	for _, raw := range opts.FeedURLs {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			feedURLs = append(feedURLs, trimmed)
		}
	}
	if len(feedURLs) == 0 {
		return nil, fmt.Errorf("at least one feed URL is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultRSSTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &RSS{feedURLs: feedURLs, httpClient: httpClient}, nil
}

func (r *RSS) Name() string { return "rss" }

// Fetch parses every configured feed. Items from healthy feeds come back even
// when some feeds break; the returned error names every feed that failed so
// callers can surface the degradation.
func (r *RSS) Fetch(ctx context.Context, q Query) ([]model.Article, error) {
	if r == nil || len(r.feedURLs) == 0 {
		return nil, fmt.Errorf("feed provider is not initialized")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	parser := gofeed.NewParser()
	parser.Client = r.httpClient

	var articles []model.Article
	var failed []string

	for _, feedURL := range r.feedURLs {
		if len(articles) >= limit {
			break
		}

		feed, err := parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			failed = append(failed, feedURL)
			continue
		}

		sourceName := strings.TrimSpace(feed.Title)
		for _, item := range feed.Items {
			if len(articles) >= limit {
				break
			}
			article, ok := newArticle(item.Title, item.Description, item.Content,
				item.Link, feedItemImage(item), sourceName, item.PublishedParsed)
			if !ok {
				continue
			}
			articles = append(articles, article)
		}
	}

	if len(failed) == len(r.feedURLs) {
		return nil, fmt.Errorf("all feeds failed: %s", strings.Join(failed, ", "))
	}
	if len(failed) > 0 {
		return articles, fmt.Errorf("%d of %d feeds failed: %s", len(failed), len(r.feedURLs), strings.Join(failed, ", "))
	}
	return articles, nil
}

func feedItemImage(item *gofeed.Item) string {
	if item.Image != nil {
		return item.Image.URL
	}
	for _, enclosure := range item.Enclosures {
		if strings.HasPrefix(enclosure.Type, "image/") {
			return enclosure.URL
		}
	}
	return ""
}

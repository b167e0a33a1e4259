// Package source fetches candidate articles from external news providers and
// normalizes them into the internal article shape.
package source

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wpatrik14/newsaggregator/internal/langdetect"
	"github.com/wpatrik14/newsaggregator/internal/model"
)

// Query narrows a provider fetch. Empty fields mean "provider default".
type Query struct {
	Country  string
	Category string
	Search   string
	Limit    int
}

// Fetcher is one upstream news provider.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]model.Article, error)
}

// FetchAll queries every provider concurrently. Provider failures are
// collected as messages, never fatal: one dead provider must not blank the
// whole feed. A provider may return partial results alongside its error;
// both are kept. Result order follows the fetchers slice.
func FetchAll(ctx context.Context, fetchers []Fetcher, q Query) ([]model.Article, []string) {
	results := make([][]model.Article, len(fetchers))

	var mu sync.Mutex
	var failures []string

	g, gctx := errgroup.WithContext(ctx)
	for i, fetcher := range fetchers {
		g.Go(func() error {
			articles, err := fetcher.Fetch(gctx, q)
			if err != nil {
				mu.Lock()
				failures = append(failures, fetcher.Name()+": "+err.Error())
				mu.Unlock()
			}
			results[i] = articles
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]model.Article, 0)
	for _, batch := range results {
		merged = append(merged, batch...)
	}
	return merged, failures
}

// Providers cut off body text with a marker like "[+1234 chars]".
var truncationMarker = regexp.MustCompile(`\s*\[\+\d+ chars\]\s*$`)

// newArticle builds a normalized article from raw provider fields. An empty
// title disqualifies the item and returns false; everything else degrades
// gracefully.
func newArticle(title, description, content, link, imageURL, sourceName string, publishedAt *time.Time) (model.Article, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Article{}, false
	}

	body := richestText(content, description)
	article := model.Article{
		ID:          uuid.NewString(),
		Title:       title,
		Content:     body,
		Summary:     strings.TrimSpace(description),
		URL:         strings.TrimSpace(link),
		ImageURL:    strings.TrimSpace(imageURL),
		Source:      strings.TrimSpace(sourceName),
		Language:    langdetect.Detect(title, body),
		PublishedAt: publishedAt,
	}
	return article, true
}

// richestText prefers the longest non-empty field after stripping provider
// truncation markers.
func richestText(candidates ...string) string {
	best := ""
	for _, raw := range candidates {
		text := strings.TrimSpace(truncationMarker.ReplaceAllString(raw, ""))
		if len(text) > len(best) {
			best = text
		}
	}
	return best
}

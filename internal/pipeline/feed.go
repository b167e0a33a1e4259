package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wpatrik14/newsaggregator/internal/dedup"
	"github.com/wpatrik14/newsaggregator/internal/model"
	"github.com/wpatrik14/newsaggregator/internal/source"
)

const (
	DefaultFeedPageSize = 20
	MaxFeedPageSize     = 100

	// Upper bound on stored articles pulled into one feed assembly.
	feedBacklogLimit = 200
)

// FeedStorage is the read slice of the article store the feed depends on.
type FeedStorage interface {
	List(ctx context.Context, limit int) []model.Article
}

// Feed assembles the reader-facing article list: stored articles, optionally
// refreshed from the live providers, deduplicated and paginated.
type Feed struct {
	storage      FeedStorage
	orchestrator *Orchestrator
	fetchers     []source.Fetcher
	tracker      *dedup.Tracker
	logger       zerolog.Logger
}

// FeedRequest selects one page of the feed.
type FeedRequest struct {
	Country           string
	Category          string
	Search            string
	Page              int
	PageSize          int
	Refresh           bool
	IncludeUnanalyzed bool
}

// FeedPage is one page of the assembled feed. Errors carries non-fatal
// provider failures so a degraded refresh is visible, not silent.
type FeedPage struct {
	Articles      []model.Article
	Errors        []string
	TotalArticles int
	HasMore       bool
}

func NewFeed(storage FeedStorage, orchestrator *Orchestrator, fetchers []source.Fetcher, tracker *dedup.Tracker, logger zerolog.Logger) *Feed {
	return &Feed{
		storage:      storage,
		orchestrator: orchestrator,
		fetchers:     fetchers,
		tracker:      tracker,
		logger:       logger,
	}
}

// List returns one feed page. With Refresh (or an empty store) the live
// providers are queried first and new articles enter the pipeline; the page
// is then assembled from storage plus the fresh arrivals, newest first.
func (f *Feed) List(ctx context.Context, req FeedRequest) FeedPage {
	stored := f.storage.List(ctx, feedBacklogLimit)

	var fresh []model.Article
	var failures []string
	if req.Refresh || len(stored) == 0 {
		fresh, failures = f.refresh(ctx, req)
	}

	merged := dedupeArticles(append(fresh, stored...))

	if !req.IncludeUnanalyzed {
		analyzed := merged[:0]
		for _, article := range merged {
			if article.Analyzed {
				analyzed = append(analyzed, article)
			}
		}
		merged = analyzed
	}

	page := FeedPage{Errors: failures, TotalArticles: len(merged)}
	start, end := pageBounds(len(merged), req.Page, req.PageSize)
	page.Articles = merged[start:end]
	page.HasMore = end < len(merged)
	return page
}

// refresh pulls candidates from every provider and submits the unseen ones.
// URLs the tracker already committed or is currently writing are skipped
// before touching storage; a concurrent refresh losing the URL slot inside
// Submit is skipped the same way.
func (f *Feed) refresh(ctx context.Context, req FeedRequest) ([]model.Article, []string) {
	if len(f.fetchers) == 0 {
		return nil, nil
	}

	fetched, failures := source.FetchAll(ctx, f.fetchers, source.Query{
		Country:  req.Country,
		Category: req.Category,
		Search:   req.Search,
	})

	accepted := make([]model.Article, 0, len(fetched))
	for _, candidate := range fetched {
		if f.tracker.HasSeenURL(candidate.URL) || f.tracker.IsInFlight(dedup.NormalizeURL(candidate.URL)) {
			continue
		}

		result, err := f.orchestrator.Submit(ctx, &candidate)
		if err != nil {
			if errors.Is(err, ErrAlreadyInFlight) {
				continue
			}
			f.logger.Warn().Err(err).Str("url", candidate.URL).Msg("submit fetched article failed")
			failures = append(failures, "store: "+err.Error())
			continue
		}
		if result.Duplicate {
			continue
		}
		accepted = append(accepted, result.Article)
	}

	return accepted, failures
}

// dedupeArticles is the in-memory second pass over an assembled list: first
// occurrence wins on id, normalized URL, or title+source.
func dedupeArticles(articles []model.Article) []model.Article {
	seenIDs := make(map[string]struct{}, len(articles))
	seenURLs := make(map[string]struct{}, len(articles))
	seenTitles := make(map[string]struct{}, len(articles))

	out := make([]model.Article, 0, len(articles))
	for _, article := range articles {
		if _, dup := seenIDs[article.ID]; dup {
			continue
		}
		if normalized := dedup.NormalizeURL(article.URL); normalized != "" {
			if _, dup := seenURLs[normalized]; dup {
				continue
			}
			seenURLs[normalized] = struct{}{}
		}
		titleKey := titleSourceKey(article)
		if titleKey != "" {
			if _, dup := seenTitles[titleKey]; dup {
				continue
			}
			seenTitles[titleKey] = struct{}{}
		}
		seenIDs[article.ID] = struct{}{}
		out = append(out, article)
	}
	return out
}

func titleSourceKey(article model.Article) string {
	title := strings.Join(strings.Fields(strings.ToLower(article.Title)), " ")
	if title == "" {
		return ""
	}
	return title + "|" + strings.TrimSpace(strings.ToLower(article.Source))
}

func pageBounds(total, page, pageSize int) (int, int) {
	if pageSize <= 0 || pageSize > MaxFeedPageSize {
		pageSize = DefaultFeedPageSize
	}
	if page <= 0 {
		page = 1
	}

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return start, end
}

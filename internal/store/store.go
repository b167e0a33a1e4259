// Package store is the durable storage access layer. It wraps the blob store
// with duplicate-aware article writes, safe lookups, bounded listing, and
// TTL cleanup. Every sequential multi-entry operation is paced through a
// shared limiter to stay under the store's request-rate ceiling.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/wpatrik14/newsaggregator/internal/blob"
	"github.com/wpatrik14/newsaggregator/internal/dedup"
	"github.com/wpatrik14/newsaggregator/internal/globaltime"
	"github.com/wpatrik14/newsaggregator/internal/model"
)

const (
	DefaultPrefix          = "articles/"
	DefaultRequestInterval = 250 * time.Millisecond
	DefaultListLimit       = 50

	// Titles shorter than this after normalization are too generic for
	// containment matching.
	minFuzzyTitleLength = 15
)

// BlobAPI is the slice of the blob client the store depends on.
type BlobAPI interface {
	Put(ctx context.Context, path string, body []byte, opts blob.PutOptions) (blob.PutResult, error)
	List(ctx context.Context, prefix string, limit int, cursor string) (blob.ListPage, error)
	Delete(ctx context.Context, path string) error
	Fetch(ctx context.Context, contentURL string) ([]byte, error)
}

// Options tunes pacing and scan bounds.
type Options struct {
	Prefix          string
	RequestInterval time.Duration
	ListLimit       int
	Scan            blob.ScanOptions
}

type Store struct {
	api     BlobAPI
	logger  zerolog.Logger
	limiter *rate.Limiter
	opts    Options
}

// WriteOutcome reports either the locator of a fresh write or the existing
// record a first-time candidate duplicates. Duplicate is a first-class
// outcome, not an error.
type WriteOutcome struct {
	Locator   string
	Duplicate bool
	Existing  *Record
}

// Record pairs a stored article with its locator.
type Record struct {
	Article model.Article
	Locator string
}

func New(api BlobAPI, logger zerolog.Logger, opts Options) *Store {
	if strings.TrimSpace(opts.Prefix) == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.RequestInterval <= 0 {
		opts.RequestInterval = DefaultRequestInterval
	}
	if opts.ListLimit <= 0 {
		opts.ListLimit = DefaultListLimit
	}

	return &Store{
		api:     api,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(opts.RequestInterval), 1),
		opts:    opts,
	}
}

// Write persists the article under its id. For first-time candidates
// (Analyzed=false) a duplicate search runs first; a hit returns the existing
// record without writing. Updates of already-known ids (Analyzed=true) skip
// the search. Writes are idempotent on id: the same id overwrites.
func (s *Store) Write(ctx context.Context, article *model.Article) (WriteOutcome, error) {
	if s == nil || s.api == nil {
		return WriteOutcome{}, fmt.Errorf("store is not initialized")
	}
	if article == nil || strings.TrimSpace(article.ID) == "" {
		return WriteOutcome{}, fmt.Errorf("article id is required")
	}

	if !article.Analyzed {
		if existing := s.findDuplicate(ctx, article); existing != nil {
			return WriteOutcome{
				Locator:   existing.Locator,
				Duplicate: true,
				Existing:  existing,
			}, nil
		}
	}

	article.StoredAt = globaltime.UTC()

	body, err := json.Marshal(article)
	if err != nil {
		return WriteOutcome{}, fmt.Errorf("marshal article %s: %w", article.ID, err)
	}

	path := s.pathFor(article.ID)
	result, err := s.api.Put(ctx, path, body, blob.PutOptions{
		ContentType: "application/json",
		Access:      "public",
		Overwrite:   true,
	})
	if err != nil {
		return WriteOutcome{}, fmt.Errorf("store article %s: %w", article.ID, err)
	}

	return WriteOutcome{Locator: result.URL}, nil
}

// findDuplicate scans existing entries for a record representing the same
// real-world article: same id, equal normalized URL, or a near-duplicate
// title from the same source. Unreadable entries are skipped; a rate-limit
// signal aborts the scan and reports no duplicate, favoring availability
// over strict correctness.
func (s *Store) findDuplicate(ctx context.Context, candidate *model.Article) *Record {
	candidateURL := dedup.NormalizeURL(candidate.URL)
	if candidateURL == "" {
		return nil
	}
	candidateTitle := normalizeTitle(candidate.Title)

	scanner := s.newScanner()
	for !scanner.Done() {
		items, err := scanner.Next(ctx)
		if err != nil {
			if errors.Is(err, blob.ErrRateLimited) {
				s.logger.Warn().Str("article_id", candidate.ID).Msg("duplicate scan aborted by rate limit")
				return nil
			}
			s.logger.Warn().Err(err).Str("article_id", candidate.ID).Msg("duplicate scan list failed")
			return nil
		}

		for _, item := range items {
			// Same id means the record already exists; no fetch needed.
			if s.idFromPath(item.Path) == candidate.ID {
				return &Record{Article: *candidate, Locator: item.URL}
			}

			stored, err := s.fetchArticle(ctx, item.URL)
			if err != nil {
				if errors.Is(err, blob.ErrRateLimited) {
					s.logger.Warn().Str("article_id", candidate.ID).Msg("duplicate scan aborted by rate limit")
					return nil
				}
				s.logger.Debug().Err(err).Str("path", item.Path).Msg("skipping unreadable entry during duplicate scan")
				continue
			}

			if dedup.NormalizeURL(stored.URL) == candidateURL {
				return &Record{Article: *stored, Locator: item.URL}
			}
			if titlesLikelyDuplicate(candidateTitle, normalizeTitle(stored.Title), candidate.Source, stored.Source) {
				return &Record{Article: *stored, Locator: item.URL}
			}
		}
	}

	return nil
}

// GetByID never returns an error: fetch, parse, and timeout failures all
// collapse to nil, exactly like a missing record.
func (s *Store) GetByID(ctx context.Context, id string) *model.Article {
	if s == nil || s.api == nil || strings.TrimSpace(id) == "" {
		return nil
	}

	page, err := s.api.List(ctx, s.pathFor(id), 1, "")
	if err != nil || len(page.Items) == 0 {
		return nil
	}

	article, err := s.fetchArticle(ctx, page.Items[0].URL)
	if err != nil {
		return nil
	}
	return article
}

// List returns up to limit stored articles, fetched sequentially with paced
// requests. Entries that fail to fetch or parse are skipped and logged.
func (s *Store) List(ctx context.Context, limit int) []model.Article {
	if s == nil || s.api == nil {
		return nil
	}
	if limit <= 0 || limit > s.opts.ListLimit {
		limit = s.opts.ListLimit
	}

	articles := make([]model.Article, 0, limit)
	scanner := s.newScanner()

	for !scanner.Done() && len(articles) < limit {
		items, err := scanner.Next(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("article list scan failed")
			break
		}

		for _, item := range items {
			if len(articles) >= limit {
				break
			}
			article, err := s.fetchArticle(ctx, item.URL)
			if err != nil {
				if errors.Is(err, blob.ErrRateLimited) {
					s.logger.Warn().Msg("article list aborted by rate limit")
					return articles
				}
				s.logger.Warn().Err(err).Str("path", item.Path).Msg("skipping unreadable article entry")
				continue
			}
			articles = append(articles, *article)
		}
	}

	return articles
}

// DeleteByID is best-effort: failure is logged, not propagated, so bulk
// deletes stay resilient to partial failure.
func (s *Store) DeleteByID(ctx context.Context, id string) {
	if s == nil || s.api == nil || strings.TrimSpace(id) == "" {
		return
	}
	if err := s.api.Delete(ctx, s.pathFor(id)); err != nil && !errors.Is(err, blob.ErrNotFound) {
		s.logger.Warn().Err(err).Str("article_id", id).Msg("delete article failed")
	}
}

// DeleteAll removes every entry under the article prefix and returns the
// count actually deleted.
func (s *Store) DeleteAll(ctx context.Context) int {
	if s == nil || s.api == nil {
		return 0
	}

	deleted := 0
	scanner := s.newScanner()
	for !scanner.Done() {
		items, err := scanner.Next(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("delete-all scan failed")
			break
		}
		for _, item := range items {
			if err := s.waitTurn(ctx); err != nil {
				return deleted
			}
			if err := s.api.Delete(ctx, item.Path); err != nil {
				s.logger.Warn().Err(err).Str("path", item.Path).Msg("delete entry failed")
				continue
			}
			deleted++
		}
	}
	return deleted
}

// Cleanup deletes entries whose storedAt is older than maxAge and returns the
// count deleted. Entries with a missing or unparseable storedAt are retained;
// per-entry failures are skipped, never fatal.
func (s *Store) Cleanup(ctx context.Context, maxAge time.Duration) int {
	if s == nil || s.api == nil || maxAge <= 0 {
		return 0
	}

	cutoff := globaltime.UTC().Add(-maxAge)
	deleted := 0

	scanner := s.newScanner()
	for !scanner.Done() {
		items, err := scanner.Next(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cleanup scan failed")
			break
		}

		for _, item := range items {
			article, err := s.fetchArticle(ctx, item.URL)
			if err != nil {
				if errors.Is(err, blob.ErrRateLimited) {
					s.logger.Warn().Msg("cleanup aborted by rate limit")
					return deleted
				}
				s.logger.Warn().Err(err).Str("path", item.Path).Msg("skipping unreadable entry during cleanup")
				continue
			}
			if article.StoredAt.IsZero() || !article.StoredAt.Before(cutoff) {
				continue
			}

			if err := s.waitTurn(ctx); err != nil {
				return deleted
			}
			if err := s.api.Delete(ctx, item.Path); err != nil {
				s.logger.Warn().Err(err).Str("path", item.Path).Msg("cleanup delete failed")
				continue
			}
			deleted++
		}
	}

	return deleted
}

// fetchArticle is the paced single-entry read used by every scan. It applies
// the self-healing normalization: a record with populated metrics but
// analyzed=false is coerced to analyzed=true on read.
func (s *Store) fetchArticle(ctx context.Context, contentURL string) (*model.Article, error) {
	if err := s.waitTurn(ctx); err != nil {
		return nil, err
	}

	body, err := s.api.Fetch(ctx, contentURL)
	if err != nil {
		return nil, err
	}

	var article model.Article
	if err := json.Unmarshal(body, &article); err != nil {
		return nil, fmt.Errorf("parse article body: %w", err)
	}

	if !article.Analyzed && metricsPresent(article.Metrics) {
		article.Analyzed = true
	}
	return &article, nil
}

// newScanner builds a prefix scanner whose page requests draw from the same
// limiter as every other store request.
func (s *Store) newScanner() *blob.Scanner {
	scan := s.opts.Scan
	scan.WaitTurn = s.waitTurn
	return blob.NewScanner(s.api, s.opts.Prefix, scan)
}

func (s *Store) waitTurn(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for store request slot: %w", err)
	}
	return nil
}

func (s *Store) pathFor(id string) string {
	return s.opts.Prefix + id + ".json"
}

func (s *Store) idFromPath(path string) string {
	trimmed := strings.TrimPrefix(path, s.opts.Prefix)
	return strings.TrimSuffix(trimmed, ".json")
}

func metricsPresent(m model.Metrics) bool {
	if m.ClickbaitScore != 0 || m.BiasScore != 0 || m.SentimentScore != 0 ||
		m.ReadabilityScore != 0 || m.EngagementScore != 0 {
		return true
	}
	return m.TargetGeneration != "" || m.PoliticalLeaning != "" ||
		m.SentimentTone != "" || m.ReadingLevel != "" || m.EmotionalTone != ""
}

// normalizeTitle lower-cases a title, strips punctuation, and collapses
// whitespace for containment comparison.
func normalizeTitle(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// titlesLikelyDuplicate applies substring containment in either direction.
// Sources must agree when both are known; very short titles never match.
func titlesLikelyDuplicate(a, b, sourceA, sourceB string) bool {
	if a == "" || b == "" {
		return false
	}
	if len(a) < minFuzzyTitleLength || len(b) < minFuzzyTitleLength {
		return false
	}

	srcA := strings.TrimSpace(strings.ToLower(sourceA))
	srcB := strings.TrimSpace(strings.ToLower(sourceB))
	if srcA != "" && srcB != "" && srcA != srcB {
		return false
	}

	return strings.Contains(a, b) || strings.Contains(b, a)
}

// Package pipeline ties the stages together: articles enter through Submit,
// pass the duplicate gate, land in durable storage as pending, and are
// enriched by a background task that flips them to analyzed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wpatrik14/newsaggregator/internal/analysis"
	"github.com/wpatrik14/newsaggregator/internal/dedup"
	"github.com/wpatrik14/newsaggregator/internal/model"
	"github.com/wpatrik14/newsaggregator/internal/store"
)

const (
	// Pause before each enrichment call so bursts of submissions do not
	// hammer the enrichment service all at once.
	DefaultEnrichDelay = 2 * time.Second

	DefaultEnrichTimeout = 60 * time.Second
)

// ErrAlreadyInFlight reports that another task is currently persisting an
// article with the same normalized URL. Callers skip the candidate; the
// winning task's record is the durable one.
var ErrAlreadyInFlight = errors.New("article is already being processed")

// Storage is the slice of the article store the orchestrator depends on.
type Storage interface {
	Write(ctx context.Context, article *model.Article) (store.WriteOutcome, error)
	GetByID(ctx context.Context, id string) *model.Article
}

// Analyzer produces editorial metrics for one article.
type Analyzer interface {
	Analyze(ctx context.Context, title, content string) (*analysis.Result, error)
}

// Options tunes the background enrichment stage.
type Options struct {
	EnrichDelay   time.Duration
	EnrichTimeout time.Duration

	// OnEnriched fires after each background enrichment attempt, successful
	// or not. Nil is fine.
	OnEnriched func(id string, err error)
}

type Orchestrator struct {
	storage  Storage
	analyzer Analyzer
	tracker  *dedup.Tracker
	logger   zerolog.Logger
	opts     Options

	wg sync.WaitGroup
}

// SubmitResult reports what happened to a submitted article. Duplicate means
// the returned article is the pre-existing record, not the candidate.
type SubmitResult struct {
	Article   model.Article
	Duplicate bool
	Pending   bool
}

func NewOrchestrator(storage Storage, analyzer Analyzer, tracker *dedup.Tracker, logger zerolog.Logger, opts Options) *Orchestrator {
	if opts.EnrichDelay < 0 {
		opts.EnrichDelay = DefaultEnrichDelay
	}
	if opts.EnrichTimeout <= 0 {
		opts.EnrichTimeout = DefaultEnrichTimeout
	}
	return &Orchestrator{
		storage:  storage,
		analyzer: analyzer,
		tracker:  tracker,
		logger:   logger,
		opts:     opts,
	}
}

// Submit stores the article and schedules background enrichment. A duplicate
// hit returns the existing record unchanged and schedules nothing; a
// concurrent write of the same URL returns ErrAlreadyInFlight. The id slot
// guarantees at most one enrichment task per article.
func (o *Orchestrator) Submit(ctx context.Context, article *model.Article) (SubmitResult, error) {
	outcome, err := o.persist(ctx, article)
	if err != nil {
		return SubmitResult{}, err
	}
	if outcome.Duplicate {
		return SubmitResult{Article: outcome.Existing.Article, Duplicate: true}, nil
	}

	pending := false
	if o.analyzer != nil && o.tracker.Acquire(article.ID) {
		pending = true
		o.wg.Add(1)
		go o.enrichInBackground(*article)
	}

	return SubmitResult{Article: *article, Pending: pending}, nil
}

// SubmitSync stores the article and runs enrichment before returning, for
// callers that need the analyzed record in the response. An enrichment
// failure leaves the durable record pending and is returned alongside it so
// the caller can report the failure instead of a silent partial success.
func (o *Orchestrator) SubmitSync(ctx context.Context, article *model.Article) (SubmitResult, error) {
	outcome, err := o.persist(ctx, article)
	if err != nil {
		return SubmitResult{}, err
	}
	if outcome.Duplicate {
		return SubmitResult{Article: outcome.Existing.Article, Duplicate: true}, nil
	}

	if o.analyzer == nil || !o.tracker.Acquire(article.ID) {
		return SubmitResult{Article: *article, Pending: !article.Analyzed}, nil
	}
	defer o.tracker.MarkDone(article.ID)

	if err := o.enrich(ctx, article); err != nil {
		o.logger.Warn().Err(err).Str("article_id", article.ID).Msg("synchronous enrichment failed")
		return SubmitResult{Article: *article, Pending: true}, err
	}
	return SubmitResult{Article: *article}, nil
}

func (o *Orchestrator) persist(ctx context.Context, article *model.Article) (store.WriteOutcome, error) {
	if o == nil || o.storage == nil {
		return store.WriteOutcome{}, fmt.Errorf("pipeline is not initialized")
	}
	if article == nil || strings.TrimSpace(article.ID) == "" {
		return store.WriteOutcome{}, fmt.Errorf("article id is required")
	}
	if strings.TrimSpace(article.Title) == "" {
		return store.WriteOutcome{}, fmt.Errorf("article title is required")
	}

	// The URL slot closes the window between the duplicate scan and the
	// committed write: a second task persisting the same URL bounces here
	// instead of racing the scan and writing a second record.
	if urlKey := dedup.NormalizeURL(article.URL); urlKey != "" {
		if !o.tracker.Acquire(urlKey) {
			return store.WriteOutcome{}, fmt.Errorf("persist article %s: %w", article.ID, ErrAlreadyInFlight)
		}
		defer o.tracker.MarkDone(urlKey)
	}

	outcome, err := o.storage.Write(ctx, article)
	if err != nil {
		return store.WriteOutcome{}, err
	}

	o.tracker.MarkURLSeen(article.URL)
	return outcome, nil
}

// enrichInBackground runs detached from the submitting request so a client
// disconnect cannot cancel enrichment mid-write.
func (o *Orchestrator) enrichInBackground(article model.Article) {
	defer o.wg.Done()
	defer o.tracker.MarkDone(article.ID)

	ctx, cancel := context.WithTimeout(context.Background(), o.opts.EnrichTimeout)
	defer cancel()

	if o.opts.EnrichDelay > 0 {
		timer := time.NewTimer(o.opts.EnrichDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			o.notify(article.ID, ctx.Err())
			return
		}
	}

	err := o.enrich(ctx, &article)
	if err != nil {
		// The stored record stays pending; a later submit retries.
		o.logger.Warn().Err(err).Str("article_id", article.ID).Msg("background enrichment failed")
	}
	o.notify(article.ID, err)
}

// enrich calls the analyzer and commits the enriched record. The analyzed
// flag only ever moves pending -> analyzed; nothing here clears it.
func (o *Orchestrator) enrich(ctx context.Context, article *model.Article) error {
	result, err := o.analyzer.Analyze(ctx, article.Title, article.Content)
	if err != nil {
		return fmt.Errorf("analyze article %s: %w", article.ID, err)
	}

	article.Metrics = result.Metrics
	article.AISummary = result.Summary
	article.Categories = result.Categories
	article.Analyzed = true

	if _, err := o.storage.Write(ctx, article); err != nil {
		return fmt.Errorf("store enriched article %s: %w", article.ID, err)
	}

	o.logger.Info().Str("article_id", article.ID).Msg("article enriched")
	return nil
}

func (o *Orchestrator) notify(id string, err error) {
	if o.opts.OnEnriched != nil {
		o.opts.OnEnriched(id, err)
	}
}

// Wait blocks until every background enrichment task has finished. Called
// during shutdown.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

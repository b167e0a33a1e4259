package app

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/wpatrik14/newsaggregator/internal/analysis"
	"github.com/wpatrik14/newsaggregator/internal/blob"
	"github.com/wpatrik14/newsaggregator/internal/cli"
	"github.com/wpatrik14/newsaggregator/internal/config"
	"github.com/wpatrik14/newsaggregator/internal/dedup"
	"github.com/wpatrik14/newsaggregator/internal/logging"
	"github.com/wpatrik14/newsaggregator/internal/pipeline"
	"github.com/wpatrik14/newsaggregator/internal/source"
	"github.com/wpatrik14/newsaggregator/internal/store"
)

// runtime bundles the wired pipeline shared by every command.
type runtime struct {
	cfg          *config.Config
	logger       zerolog.Logger
	store        *store.Store
	tracker      *dedup.Tracker
	orchestrator *pipeline.Orchestrator
	feed         *pipeline.Feed
	fetchers     []source.Fetcher
}

// buildRuntime loads configuration and wires the pipeline. The enrichment
// client is optional: without an AI key articles stay pending.
func buildRuntime(envLoader *cli.EnvLoader) (*runtime, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	blobClient, err := blob.New(blob.Options{
		BaseURL: cfg.BlobAPIURL,
		Token:   cfg.BlobAPIToken,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize blob client: %w", err)
	}

	articleStore := store.New(blobClient, logger, store.Options{
		Prefix:          cfg.BlobPrefix,
		RequestInterval: cfg.BlobRequestInterval(),
		Scan: blob.ScanOptions{
			PageSize:   cfg.BlobScanPageSize,
			MaxPages:   cfg.BlobScanMaxPages,
			MaxEntries: cfg.BlobScanMaxEntries,
		},
	})

	var analyzer pipeline.Analyzer
	if cfg.AIAPIKey != "" {
		client, err := analysis.New(analysis.Options{
			BaseURL: cfg.AIBaseURL,
			APIKey:  cfg.AIAPIKey,
			Model:   cfg.AIModel,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize analysis client: %w", err)
		}
		analyzer = client
	} else {
		logger.Warn().Msg("AI_API_KEY not set; articles will stay unanalyzed")
	}

	tracker := dedup.NewTracker()
	orchestrator := pipeline.NewOrchestrator(articleStore, analyzer, tracker, logger, pipeline.Options{
		EnrichDelay:   cfg.AIEnrichDelay(),
		EnrichTimeout: cfg.AIEnrichTimeout(),
	})

	fetchers, err := buildFetchers(cfg, logger)
	if err != nil {
		return nil, err
	}

	feed := pipeline.NewFeed(articleStore, orchestrator, fetchers, tracker, logger)

	return &runtime{
		cfg:          cfg,
		logger:       logger,
		store:        articleStore,
		tracker:      tracker,
		orchestrator: orchestrator,
		feed:         feed,
		fetchers:     fetchers,
	}, nil
}

func buildFetchers(cfg *config.Config, logger zerolog.Logger) ([]source.Fetcher, error) {
	var fetchers []source.Fetcher

	if cfg.NewsAPIKey != "" {
		newsAPI, err := source.NewNewsAPI(source.NewsAPIOptions{
			BaseURL:  cfg.NewsAPIURL,
			APIKey:   cfg.NewsAPIKey,
			PageSize: cfg.NewsAPIPageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize news provider: %w", err)
		}
		fetchers = append(fetchers, newsAPI)
	}

	if feeds := cfg.RSSFeedList(); len(feeds) > 0 {
		rss, err := source.NewRSS(source.RSSOptions{FeedURLs: feeds})
		if err != nil {
			return nil, fmt.Errorf("initialize feed provider: %w", err)
		}
		fetchers = append(fetchers, rss)
	}

	if len(fetchers) == 0 {
		logger.Warn().Msg("no providers configured; feed refresh will be a no-op")
	}
	return fetchers, nil
}

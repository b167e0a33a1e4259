package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/wpatrik14/newsaggregator/internal/cli"
	"github.com/wpatrik14/newsaggregator/internal/pipeline"
	"github.com/wpatrik14/newsaggregator/internal/source"
)

func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	country := fs.String("country", "", "Headline country code")
	category := fs.String("category", "", "Headline category")
	search := fs.String("q", "", "Search term (switches to the search endpoint)")
	limit := fs.Int("limit", 0, "Maximum articles per provider")
	timeout := fs.Duration("timeout", 5*time.Minute, "Overall fetch cycle timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	rt, err := buildRuntime(envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		return 1
	}
	if len(rt.fetchers) == 0 {
		fmt.Fprintln(os.Stderr, "No providers configured; set NEWS_API_KEY or RSS_FEEDS")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fetched, failures := source.FetchAll(ctx, rt.fetchers, source.Query{
		Country:  *country,
		Category: *category,
		Search:   *search,
		Limit:    *limit,
	})
	for _, failure := range failures {
		rt.logger.Warn().Str("provider_error", failure).Msg("provider fetch failed")
	}

	submitted := 0
	duplicates := 0
	for _, candidate := range fetched {
		if rt.tracker.HasSeenURL(candidate.URL) {
			duplicates++
			continue
		}

		result, err := rt.orchestrator.Submit(ctx, &candidate)
		if err != nil {
			if errors.Is(err, pipeline.ErrAlreadyInFlight) {
				duplicates++
				continue
			}
			rt.logger.Warn().Err(err).Str("url", candidate.URL).Msg("submit fetched article failed")
			continue
		}
		if result.Duplicate {
			duplicates++
			continue
		}
		submitted++
	}

	rt.orchestrator.Wait()

	rt.logger.Info().
		Int("fetched", len(fetched)).
		Int("submitted", submitted).
		Int("duplicates", duplicates).
		Int("provider_failures", len(failures)).
		Msg("fetch cycle finished")

	fmt.Printf("fetched=%d submitted=%d duplicates=%d provider_failures=%d\n",
		len(fetched), submitted, duplicates, len(failures))
	return 0
}

package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/wpatrik14/newsaggregator/internal/cli"
)

func runCleanup(args []string) int {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	maxAgeHours := fs.Int("max-age-hours", 0, "Delete articles older than this (defaults to ARTICLE_TTL_HOURS)")
	timeout := fs.Duration("timeout", 10*time.Minute, "Overall cleanup timeout")

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

	maxAge := rt.cfg.ArticleTTL()
	if *maxAgeHours > 0 {
		maxAge = time.Duration(*maxAgeHours) * time.Hour
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	deleted := rt.store.Cleanup(ctx, maxAge)
	rt.logger.Info().Int("deleted", deleted).Dur("max_age", maxAge).Msg("cleanup finished")
	fmt.Printf("deleted=%d max_age=%s\n", deleted, maxAge)
	return 0
}

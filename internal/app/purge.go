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

func runPurge(args []string) int {
	fs := flag.NewFlagSet("purge", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	confirm := fs.Bool("yes", false, "Confirm deleting every stored article")
	timeout := fs.Duration("timeout", 10*time.Minute, "Overall purge timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if !*confirm {
		fmt.Fprintln(os.Stderr, "purge deletes every stored article; re-run with --yes to confirm")
		return 2
	}

	rt, err := buildRuntime(envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	deleted := rt.store.DeleteAll(ctx)
	rt.logger.Info().Int("deleted", deleted).Msg("purge finished")
	fmt.Printf("deleted=%d\n", deleted)
	return 0
}

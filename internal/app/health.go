package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/wpatrik14/newsaggregator/internal/blob"
	"github.com/wpatrik14/newsaggregator/internal/cli"
	"github.com/wpatrik14/newsaggregator/internal/config"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Second, "Blob store check timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	client, err := blob.New(blob.Options{
		BaseURL: cfg.BlobAPIURL,
		Token:   cfg.BlobAPIToken,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize blob client: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if _, err := client.List(ctx, cfg.BlobPrefix, 1, ""); err != nil {
		fmt.Fprintf(os.Stderr, "Blob store check failed: %v\n", err)
		return 1
	}

	fmt.Println("ok")
	return 0
}

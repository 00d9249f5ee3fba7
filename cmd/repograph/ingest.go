package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dusk-indust/repograph/internal/config"
	"github.com/dusk-indust/repograph/internal/graph"
	"github.com/dusk-indust/repograph/internal/ingest"
	"github.com/dusk-indust/repograph/internal/scan"
)

func runIngest(dbPath string, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	repoID := fs.String("repo", "", "logical repository id (required)")
	root := fs.String("root", ".", "path to the repository to index")
	mode := fs.String("mode", "full", "full or incremental")
	sinceRef := fs.String("since", "", "git ref to diff against; forces incremental mode")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*root)
	if err != nil {
		return err
	}
	parseTimeout, err := cfg.ParseTimeoutDuration()
	if err != nil {
		return err
	}

	store, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.InitSchema(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	ing := ingest.New(store, log, ingest.Options{
		Workers:      cfg.Workers,
		ParseTimeout: parseTimeout,
	})
	defer ing.Close()

	res, err := ing.Ingest(ctx, ingest.Request{
		RepoID:   *repoID,
		Root:     *root,
		Mode:     parseMode(*mode),
		SinceRef: *sinceRef,
		Scan: scan.Options{
			Include:          cfg.Include,
			Exclude:          cfg.Exclude,
			MaxFileSizeBytes: cfg.MaxFileSizeBytes,
		},
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func parseMode(s string) graph.Mode {
	if strings.EqualFold(s, string(graph.ModeIncremental)) {
		return graph.ModeIncremental
	}
	return graph.ModeFull
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = os.Stdout.Write(append(out, '\n'))
	return err
}

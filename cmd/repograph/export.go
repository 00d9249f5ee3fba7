package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/dusk-indust/repograph/internal/export"
)

func runStats(dbPath string, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	repoID := fs.String("repo", "", "repository to summarize; empty for the whole store")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(context.Background(), *repoID)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func runExport(dbPath string, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	repoID := fs.String("repo", "", "repository to export (required)")
	format := fs.String("format", "json", "json or mermaid")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	switch *format {
	case "mermaid":
		diagram, err := export.GenerateMermaid(ctx, store, *repoID)
		if err != nil {
			return err
		}
		fmt.Print(diagram)
		return nil
	case "json":
		data, err := export.ExportGraph(ctx, store, *repoID)
		if err != nil {
			return err
		}
		return printJSON(data)
	default:
		return fmt.Errorf("unknown format %q", *format)
	}
}

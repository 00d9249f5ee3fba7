package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dusk-indust/repograph/internal/impact"
	"github.com/dusk-indust/repograph/internal/pack"
	"github.com/dusk-indust/repograph/internal/rank"
)

func runRank(dbPath string, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("rank", flag.ContinueOnError)
	repoID := fs.String("repo", "", "repository to search (required)")
	limit := fs.Int("limit", rank.DefaultLimit, "maximum number of results")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")
	if query == "" {
		return fmt.Errorf("usage: repograph rank -repo <id> <query terms>")
	}

	store, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	items, err := rank.New(store, log).Rank(context.Background(), *repoID, query, *limit)
	if err != nil {
		return err
	}
	return printJSON(items)
}

func runImpact(dbPath string, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("impact", flag.ContinueOnError)
	nodeID := fs.String("node", "", "file or symbol node id (required)")
	maxDepth := fs.Int("depth", 3, "maximum reverse-traversal depth")
	limit := fs.Int("limit", 50, "maximum number of impacted nodes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := impact.New(store, log).Impact(context.Background(), *nodeID, *maxDepth, *limit)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runPack(dbPath string, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("pack", flag.ContinueOnError)
	repoID := fs.String("repo", "", "repository to build the pack from (required)")
	stage := fs.String("stage", "", "consumption stage: plan, implement, or review")
	budget := fs.Int("budget", 4000, "token ceiling for the pack")
	focus := fs.String("focus", "", "comma-separated focus paths")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")
	if query == "" {
		return fmt.Errorf("usage: repograph pack -repo <id> [-budget n] <query terms>")
	}

	store, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	items, err := rank.New(store, log).Rank(context.Background(), *repoID, query, 100)
	if err != nil {
		return err
	}

	var focusPaths []string
	for _, p := range strings.Split(*focus, ",") {
		if p = strings.TrimSpace(p); p != "" {
			focusPaths = append(focusPaths, p)
		}
	}

	p, err := pack.Build(pack.Request{
		RepoID:      *repoID,
		Items:       items,
		Stage:       pack.Stage(*stage),
		TokenBudget: *budget,
		FocusPaths:  focusPaths,
	})
	if err != nil {
		return err
	}
	return printJSON(p)
}

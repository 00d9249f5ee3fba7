package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/dusk-indust/repograph/internal/graph"
)

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() string {
	return `usage: repograph [flags] <command> [command flags]

commands:
  ingest     index a repository into the graph
  rank       rank files and symbols against a query
  impact     compute the reverse-dependency set of a node
  pack       build a token-budgeted context pack
  stats      print node and edge counts
  export     emit the graph as JSON or a Mermaid diagram
  serve-mcp  run the MCP tool server`
}

func run(args []string) error {
	fs := flag.NewFlagSet("repograph", flag.ContinueOnError)
	dbPath := fs.String("db", ".repograph/graph", "path to the graph database directory")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Println(version)
		return nil
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Println(usage())
		return nil
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "ingest":
		return runIngest(*dbPath, log, cmdArgs)
	case "rank":
		return runRank(*dbPath, log, cmdArgs)
	case "impact":
		return runImpact(*dbPath, log, cmdArgs)
	case "pack":
		return runPack(*dbPath, log, cmdArgs)
	case "stats":
		return runStats(*dbPath, cmdArgs)
	case "export":
		return runExport(*dbPath, cmdArgs)
	case "serve-mcp":
		return runServeMCP(*dbPath, log, cmdArgs)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage())
	}
}

// openStore opens the file-backed graph database and ensures its schema.
func openStore(dbPath string) (graph.Store, error) {
	store, err := graph.NewKuzuFileStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open graph database: %w", err)
	}
	return store, nil
}

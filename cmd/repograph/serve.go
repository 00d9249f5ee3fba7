package main

import (
	"context"
	"flag"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/dusk-indust/repograph/internal/mcptools"
)

func runServeMCP(dbPath string, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("serve-mcp", flag.ContinueOnError)
	addr := fs.String("addr", "localhost:8391", "listen address for the MCP HTTP server")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.InitSchema(ctx); err != nil {
		return err
	}

	svc := mcptools.NewService(store, log)
	defer svc.Close()

	log.Info("mcp server listening", "addr", *addr)
	return mcptools.RunMCPServer(ctx, svc, *addr)
}

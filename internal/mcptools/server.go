package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewMCPServer creates an MCP server with all 5 graph tools registered.
func NewMCPServer(svc *Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "repograph",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_repo",
		Description: "Index a repository into the dependency graph. Walks the file tree, parses source files using tree-sitter, extracts symbols, and resolves call/import/inheritance edges. Incremental mode rewrites only changed files.",
	}, svc.IngestRepo)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rank_query",
		Description: "Rank files and symbols against a free-text query. Fuses lexical matching over names, paths, and excerpts with a structural boost from incoming graph edges.",
	}, svc.RankQuery)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "impact_of",
		Description: "Walk dependency edges in reverse from a file or symbol to bounded depth. Returns the nodes that would be affected by a change, strongest dependencies first.",
	}, svc.ImpactOf)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "build_context_pack",
		Description: "Assemble a token-budgeted bundle of opaque handles for the most relevant files and symbols. Applies per-category quotas, focus-path boosting, and deduplication.",
	}, svc.BuildContextPack)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "graph_stats",
		Description: "Return node and edge counts for one repository, or for the whole store when no repository is given.",
	}, svc.GraphStats)

	return server
}

// RunMCPServer starts an HTTP server exposing the graph MCP tools.
func RunMCPServer(ctx context.Context, svc *Service, addr string) error {
	server := NewMCPServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

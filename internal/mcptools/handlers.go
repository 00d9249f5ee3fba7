package mcptools

import (
	"context"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/repograph/internal/graph"
	"github.com/dusk-indust/repograph/internal/impact"
	"github.com/dusk-indust/repograph/internal/ingest"
	"github.com/dusk-indust/repograph/internal/pack"
	"github.com/dusk-indust/repograph/internal/rank"
)

// packCandidateLimit is how many ranked items feed the pack builder before
// its own quota and budget selection runs.
const packCandidateLimit = 100

// Service holds the store and engines used by MCP tool handlers. All
// handlers are synchronous calls into the core; the core does no network
// I/O of its own.
type Service struct {
	store    graph.Store
	ingestor *ingest.Ingestor
	ranker   *rank.Ranker
	analyzer *impact.Analyzer
}

// NewService creates a Service over the given store.
func NewService(store graph.Store, log *slog.Logger) *Service {
	return &Service{
		store:    store,
		ingestor: ingest.New(store, log, ingest.Options{}),
		ranker:   rank.New(store, log),
		analyzer: impact.New(store, log),
	}
}

// Close releases the extractor held by the ingestor. The store is owned by
// the caller.
func (s *Service) Close() error {
	return s.ingestor.Close()
}

// IngestRepo indexes a repository into the graph.
func (s *Service) IngestRepo(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestRepoInput,
) (*mcp.CallToolResult, IngestRepoOutput, error) {
	mode := graph.ModeFull
	if strings.EqualFold(input.Mode, string(graph.ModeIncremental)) {
		mode = graph.ModeIncremental
	}

	res, err := s.ingestor.Ingest(ctx, ingest.Request{
		RepoID:   input.RepoID,
		Root:     input.RepoPath,
		Mode:     mode,
		SinceRef: input.SinceRef,
	})
	if err != nil {
		return nil, IngestRepoOutput{}, err
	}
	return nil, IngestRepoOutput{Result: *res}, nil
}

// RankQuery returns ranked files and symbols for a free-text query.
func (s *Service) RankQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RankQueryInput,
) (*mcp.CallToolResult, RankQueryOutput, error) {
	items, err := s.ranker.Rank(ctx, input.RepoID, input.Query, input.Limit)
	if err != nil {
		return nil, RankQueryOutput{}, err
	}
	return nil, RankQueryOutput{Items: items, Total: len(items)}, nil
}

// ImpactOf computes the bounded reverse-dependency set of a node.
func (s *Service) ImpactOf(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ImpactOfInput,
) (*mcp.CallToolResult, ImpactOfOutput, error) {
	res, err := s.analyzer.Impact(ctx, input.NodeID, input.MaxDepth, input.Limit)
	if err != nil {
		return nil, ImpactOfOutput{}, err
	}
	return nil, ImpactOfOutput{Result: *res}, nil
}

// BuildContextPack ranks candidates for the query and assembles them into a
// token-budgeted pack of handles.
func (s *Service) BuildContextPack(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input BuildContextPackInput,
) (*mcp.CallToolResult, BuildContextPackOutput, error) {
	items, err := s.ranker.Rank(ctx, input.RepoID, input.Query, packCandidateLimit)
	if err != nil {
		return nil, BuildContextPackOutput{}, err
	}

	p, err := pack.Build(pack.Request{
		RepoID:            input.RepoID,
		Items:             items,
		Stage:             pack.Stage(input.Stage),
		TokenBudget:       input.TokenBudget,
		FocusPaths:        input.FocusPaths,
		PerCategoryLimits: input.PerCategoryLimits,
	})
	if err != nil {
		return nil, BuildContextPackOutput{}, err
	}
	return nil, BuildContextPackOutput{Pack: *p}, nil
}

// GraphStats summarizes the node and edge population.
func (s *Service) GraphStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GraphStatsInput,
) (*mcp.CallToolResult, GraphStatsOutput, error) {
	stats, err := s.store.Stats(ctx, input.RepoID)
	if err != nil {
		return nil, GraphStatsOutput{}, err
	}
	out := GraphStatsOutput{}
	if stats != nil {
		out.Stats = *stats
	}
	return nil, out, nil
}

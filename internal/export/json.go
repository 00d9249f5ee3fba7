package export

import (
	"context"
	"fmt"
	"time"

	"github.com/dusk-indust/repograph/internal/graph"
)

// GraphExport is the top-level JSON export structure for one repo's graph.
type GraphExport struct {
	RepoID     string           `json:"repoId"`
	ExportedAt string           `json:"exportedAt"`
	Stats      graph.GraphStats `json:"stats"`
	Files      []FileExport     `json:"files"`
	Symbols    []SymbolExport   `json:"symbols"`
	Edges      []EdgeExport     `json:"edges"`
}

// FileExport describes one indexed file.
type FileExport struct {
	Path        string     `json:"path"`
	Lang        graph.Lang `json:"lang"`
	SizeBytes   int64      `json:"sizeBytes"`
	ContentHash string     `json:"contentHash"`
}

// SymbolExport describes one extracted symbol.
type SymbolExport struct {
	ID            string           `json:"id"`
	Path          string           `json:"path"`
	QualifiedName string           `json:"qualifiedName"`
	Kind          graph.SymbolKind `json:"kind"`
	Visibility    graph.Visibility `json:"visibility"`
	StartLine     int              `json:"startLine"`
	EndLine       int              `json:"endLine"`
}

// EdgeExport describes one relationship.
type EdgeExport struct {
	Source string         `json:"source"`
	Target string         `json:"target"`
	Kind   graph.EdgeKind `json:"kind"`
}

// exportEdgeKinds is the emission order; structural edges first, then
// semantic ones.
var exportEdgeKinds = []graph.EdgeKind{
	graph.EdgeInRepo,
	graph.EdgeDefinedIn,
	graph.EdgeBelongsTo,
	graph.EdgeImports,
	graph.EdgeCalls,
	graph.EdgeInherits,
	graph.EdgeUses,
}

// ExportGraph builds a GraphExport snapshot of one repo from the store.
func ExportGraph(ctx context.Context, store graph.Store, repoID string) (*GraphExport, error) {
	repo, err := store.GetRepo(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("get repo: %w", err)
	}
	if repo == nil {
		return nil, graph.Preconditionf("repo %s not found", repoID)
	}

	out := &GraphExport{
		RepoID:     repoID,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
	}

	stats, err := store.Stats(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	if stats != nil {
		out.Stats = *stats
	}

	files, err := store.ListFiles(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	for _, f := range files {
		out.Files = append(out.Files, FileExport{
			Path:        f.Path,
			Lang:        f.Lang,
			SizeBytes:   f.SizeBytes,
			ContentHash: f.ContentHash,
		})
	}

	symbols, err := store.ListSymbols(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	for _, s := range symbols {
		out.Symbols = append(out.Symbols, SymbolExport{
			ID:            s.ID,
			Path:          s.FilePath,
			QualifiedName: s.QualifiedName,
			Kind:          s.Kind,
			Visibility:    s.Visibility,
			StartLine:     s.StartLine,
			EndLine:       s.EndLine,
		})
	}

	for _, kind := range exportEdgeKinds {
		edges, err := store.ListEdges(ctx, repoID, kind)
		if err != nil {
			return nil, fmt.Errorf("list %s edges: %w", kind, err)
		}
		for _, e := range edges {
			out.Edges = append(out.Edges, EdgeExport{Source: e.SourceID, Target: e.TargetID, Kind: e.Kind})
		}
	}

	return out, nil
}

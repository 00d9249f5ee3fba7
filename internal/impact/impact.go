// Package impact answers "what would break if this changed?" by walking
// dependency edges in reverse from a seed node.
package impact

import (
	"context"
	"log/slog"
	"sort"

	"github.com/dusk-indust/repograph/internal/graph"
)

// Edge weights order the traversal's result: a direct call is a stronger
// dependency than a file import, which is stronger than a loose reference.
var edgeWeights = map[graph.EdgeKind]float64{
	graph.EdgeCalls:   1.0,
	graph.EdgeImports: 0.8,
	graph.EdgeUses:    0.6,
}

// MaxDepthCeiling caps how deep a traversal may go regardless of the
// caller's request.
const MaxDepthCeiling = 10

// Node is one impacted dependent.
type Node struct {
	NodeID   string         `json:"nodeId"`
	NodeKind string         `json:"nodeKind"` // "file" or "symbol"
	Path     string         `json:"path"`
	Name     string         `json:"name,omitempty"`
	Depth    int            `json:"depth"`
	Via      graph.EdgeKind `json:"via"`
	Score    float64        `json:"score"`
}

// Result is a bounded impact traversal's output.
type Result struct {
	SeedID    string `json:"seedId"`
	Nodes     []Node `json:"nodes"`
	Truncated bool   `json:"truncated"`
}

// Analyzer runs reverse dependency traversals against a Store.
type Analyzer struct {
	store graph.Store
	log   *slog.Logger
}

// New creates an Analyzer.
func New(store graph.Store, log *slog.Logger) *Analyzer {
	if log == nil {
		log = slog.Default()
	}
	return &Analyzer{store: store, log: log}
}

// Impact walks CALLS, IMPORTS, and USES edges in reverse from seedID.
// maxDepth and limit are mandatory positive bounds; there is no unbounded
// traversal. Each node is reported once, at its shallowest depth, and the
// output is ordered by depth, then edge weight, then node ID.
func (a *Analyzer) Impact(ctx context.Context, seedID string, maxDepth, limit int) (*Result, error) {
	if seedID == "" {
		return nil, graph.Preconditionf("seedId is required")
	}
	if maxDepth <= 0 {
		return nil, graph.Preconditionf("maxDepth must be positive")
	}
	if limit <= 0 {
		return nil, graph.Preconditionf("limit must be positive")
	}
	if maxDepth > MaxDepthCeiling {
		maxDepth = MaxDepthCeiling
	}

	exists, err := a.store.NodeExists(ctx, seedID)
	if err != nil {
		return nil, &graph.QueryError{Op: "nodeExists", Err: err}
	}
	if !exists {
		return nil, graph.Preconditionf("node %s not found", seedID)
	}

	res := &Result{SeedID: seedID}
	visited := map[string]bool{seedID: true}
	frontier := []string{seedID}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var layer []Node
		var next []string
		for _, id := range frontier {
			neighbors, err := a.store.ReverseNeighbors(ctx, id, graph.ImpactEdgeKinds)
			if err != nil {
				return nil, &graph.QueryError{Op: "reverseNeighbors", Err: err}
			}
			for _, n := range neighbors {
				if visited[n.NodeID] {
					continue
				}
				visited[n.NodeID] = true
				node, err := a.describe(ctx, n.NodeID)
				if err != nil {
					return nil, err
				}
				node.Depth = depth
				node.Via = n.Kind
				node.Score = edgeWeights[n.Kind] / float64(depth)
				layer = append(layer, node)
				next = append(next, n.NodeID)
			}
		}

		sort.Slice(layer, func(i, j int) bool {
			wi, wj := edgeWeights[layer[i].Via], edgeWeights[layer[j].Via]
			if wi != wj {
				return wi > wj
			}
			return layer[i].NodeID < layer[j].NodeID
		})
		for _, node := range layer {
			if len(res.Nodes) >= limit {
				res.Truncated = true
				a.log.Debug("impact traversal truncated", "seed", seedID, "depth", depth, "limit", limit)
				return res, nil
			}
			res.Nodes = append(res.Nodes, node)
		}
		frontier = next
	}
	return res, nil
}

// describe resolves a node ID to its display fields.
func (a *Analyzer) describe(ctx context.Context, id string) (Node, error) {
	if _, path, ok := graph.SplitFileID(id); ok {
		return Node{NodeID: id, NodeKind: "file", Path: path}, nil
	}
	sym, err := a.store.GetSymbol(ctx, id)
	if err != nil {
		return Node{}, &graph.QueryError{Op: "getSymbol", Err: err}
	}
	if sym == nil {
		return Node{NodeID: id, NodeKind: "symbol"}, nil
	}
	return Node{NodeID: id, NodeKind: "symbol", Path: sym.FilePath, Name: sym.Name}, nil
}

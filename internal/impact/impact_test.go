package impact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/repograph/internal/graph"
)

// chainStore builds: h calls g, g calls f; plus a file importing f's file
// and a file-level reference to f.
//
//	h --CALLS--> g --CALLS--> f
//	main.py --USES--> f
func chainStore(t *testing.T) (graph.Store, map[string]string) {
	t.Helper()
	ctx := context.Background()
	s := graph.NewMemStore()

	ids := map[string]string{}
	mkFile := func(path string, names ...string) {
		file := graph.FileNode{RepoID: "r1", Path: path, Lang: graph.LangPython, ContentHash: "h-" + path}
		var symbols []graph.SymbolNode
		edges := []graph.Edge{{SourceID: file.ID(), TargetID: "r1", Kind: graph.EdgeInRepo}}
		for _, name := range names {
			id := graph.SymbolID("r1", path, graph.QualifiedName(path, "", name), graph.SymbolFunction)
			ids[name] = id
			symbols = append(symbols, graph.SymbolNode{
				ID: id, RepoID: "r1", FilePath: path, Name: name,
				QualifiedName: graph.QualifiedName(path, "", name),
				Kind:          graph.SymbolFunction,
			})
			edges = append(edges, graph.Edge{SourceID: id, TargetID: file.ID(), Kind: graph.EdgeDefinedIn})
		}
		require.NoError(t, s.ApplyFileMutation(ctx, graph.FileMutation{
			RepoID: "r1", Path: path, File: file, Symbols: symbols, Edges: edges,
		}))
		ids[path] = file.ID()
	}

	mkFile("f.py", "f")
	mkFile("g.py", "g")
	mkFile("h.py", "h")
	mkFile("main.py")

	_, err := s.MergeEdges(ctx, []graph.Edge{
		{SourceID: ids["g"], TargetID: ids["f"], Kind: graph.EdgeCalls},
		{SourceID: ids["h"], TargetID: ids["g"], Kind: graph.EdgeCalls},
		{SourceID: ids["main.py"], TargetID: ids["f"], Kind: graph.EdgeUses},
	})
	require.NoError(t, err)
	return s, ids
}

func TestImpact_DepthOne(t *testing.T) {
	s, ids := chainStore(t)
	a := New(s, nil)

	res, err := a.Impact(context.Background(), ids["f"], 1, 10)
	require.NoError(t, err)
	require.Len(t, res.Nodes, 2, "depth 1 reaches direct dependents only")
	assert.False(t, res.Truncated)

	// CALLS outweighs USES at the same depth.
	assert.Equal(t, ids["g"], res.Nodes[0].NodeID)
	assert.Equal(t, graph.EdgeCalls, res.Nodes[0].Via)
	assert.Equal(t, 1.0, res.Nodes[0].Score)

	assert.Equal(t, ids["main.py"], res.Nodes[1].NodeID)
	assert.Equal(t, "file", res.Nodes[1].NodeKind)
	assert.Equal(t, graph.EdgeUses, res.Nodes[1].Via)
	assert.InDelta(t, 0.6, res.Nodes[1].Score, 1e-9)
}

func TestImpact_DepthTwo_ScoresDecay(t *testing.T) {
	s, ids := chainStore(t)
	a := New(s, nil)

	res, err := a.Impact(context.Background(), ids["f"], 3, 10)
	require.NoError(t, err)
	require.Len(t, res.Nodes, 3)

	last := res.Nodes[2]
	assert.Equal(t, ids["h"], last.NodeID)
	assert.Equal(t, 2, last.Depth)
	assert.InDelta(t, 0.5, last.Score, 1e-9)

	// Depth is monotonically non-decreasing in the output.
	for i := 1; i < len(res.Nodes); i++ {
		assert.GreaterOrEqual(t, res.Nodes[i].Depth, res.Nodes[i-1].Depth)
	}
}

func TestImpact_LimitTruncates(t *testing.T) {
	s, ids := chainStore(t)
	a := New(s, nil)

	res, err := a.Impact(context.Background(), ids["f"], 3, 1)
	require.NoError(t, err)
	assert.Len(t, res.Nodes, 1)
	assert.True(t, res.Truncated)
	assert.Equal(t, ids["g"], res.Nodes[0].NodeID, "strongest dependent survives truncation")
}

func TestImpact_VisitedOnce(t *testing.T) {
	ctx := context.Background()
	s, ids := chainStore(t)
	// Add a cycle: f calls h.
	_, err := s.MergeEdges(ctx, []graph.Edge{
		{SourceID: ids["f"], TargetID: ids["h"], Kind: graph.EdgeCalls},
	})
	require.NoError(t, err)

	a := New(s, nil)
	res, err := a.Impact(ctx, ids["h"], 5, 20)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, n := range res.Nodes {
		assert.False(t, seen[n.NodeID], "node %s reported twice", n.NodeID)
		seen[n.NodeID] = true
	}
}

func TestImpact_MandatoryBounds(t *testing.T) {
	s, ids := chainStore(t)
	a := New(s, nil)
	var pre *graph.PreconditionError

	_, err := a.Impact(context.Background(), ids["f"], 0, 10)
	require.ErrorAs(t, err, &pre)

	_, err = a.Impact(context.Background(), ids["f"], 2, 0)
	require.ErrorAs(t, err, &pre)

	_, err = a.Impact(context.Background(), "missing-node", 2, 10)
	require.ErrorAs(t, err, &pre)
}

package export

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/repograph/internal/graph"
)

func seededStore(t *testing.T) graph.Store {
	t.Helper()
	ctx := context.Background()
	s := graph.NewMemStore()
	require.NoError(t, s.UpsertRepo(ctx, graph.RepoNode{ID: "r1", Active: true}))

	addFile := func(path string) {
		file := graph.FileNode{RepoID: "r1", Path: path, Lang: graph.LangPython, ContentHash: "h-" + path}
		sym := graph.SymbolNode{
			RepoID: "r1", FilePath: path,
			Name:          "f",
			QualifiedName: graph.QualifiedName(path, "", "f"),
			Kind:          graph.SymbolFunction,
			StartLine:     1, EndLine: 2,
		}
		sym.ID = graph.SymbolID("r1", path, sym.QualifiedName, sym.Kind)
		require.NoError(t, s.ApplyFileMutation(ctx, graph.FileMutation{
			RepoID: "r1", Path: path, File: file,
			Symbols: []graph.SymbolNode{sym},
			Edges: []graph.Edge{
				{SourceID: file.ID(), TargetID: "r1", Kind: graph.EdgeInRepo},
				{SourceID: sym.ID, TargetID: file.ID(), Kind: graph.EdgeDefinedIn},
			},
		}))
	}
	addFile("app/a.py")
	addFile("lib/b.py")

	_, err := s.MergeEdges(ctx, []graph.Edge{{
		SourceID: graph.FileID("r1", "app/a.py"),
		TargetID: graph.FileID("r1", "lib/b.py"),
		Kind:     graph.EdgeImports,
	}})
	require.NoError(t, err)
	return s
}

func TestGenerateMermaid(t *testing.T) {
	s := seededStore(t)
	out, err := GenerateMermaid(context.Background(), s, "r1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, `subgraph N0["app"]`)
	assert.Contains(t, out, `subgraph N2["lib"]`)
	assert.Contains(t, out, "N1 --> N3", "import arrow connects the two files")
	assert.Equal(t, 2, strings.Count(out, "end\n"))
}

func TestExportGraph(t *testing.T) {
	s := seededStore(t)
	out, err := ExportGraph(context.Background(), s, "r1")
	require.NoError(t, err)

	assert.Equal(t, "r1", out.RepoID)
	assert.NotEmpty(t, out.ExportedAt)
	assert.Equal(t, 2, out.Stats.FileCount)
	assert.Equal(t, 2, out.Stats.SymbolCount)
	assert.Len(t, out.Files, 2)
	assert.Len(t, out.Symbols, 2)

	kinds := map[graph.EdgeKind]int{}
	for _, e := range out.Edges {
		kinds[e.Kind]++
	}
	assert.Equal(t, 2, kinds[graph.EdgeInRepo])
	assert.Equal(t, 2, kinds[graph.EdgeDefinedIn])
	assert.Equal(t, 1, kinds[graph.EdgeImports])
}

func TestExportGraph_UnknownRepo(t *testing.T) {
	s := graph.NewMemStore()
	var pre *graph.PreconditionError
	_, err := ExportGraph(context.Background(), s, "nope")
	require.ErrorAs(t, err, &pre)
}

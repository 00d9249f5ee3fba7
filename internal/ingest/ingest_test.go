package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/repograph/internal/graph"
)

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for path, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
	return root
}

const (
	srcA = "import b\n\ndef f():\n    return b.g()\n"
	srcB = "def g():\n    return 1\n"
)

func TestIngest_TwoFilePythonRepo(t *testing.T) {
	ctx := context.Background()
	root := writeRepo(t, map[string]string{"a.py": srcA, "b.py": srcB})
	store := graph.NewMemStore()
	ing := New(store, nil, Options{})
	defer ing.Close()

	res, err := ing.Ingest(ctx, Request{RepoID: "r1", Root: root, Mode: graph.ModeFull})
	require.NoError(t, err)

	assert.Equal(t, 2, res.FilesScanned)
	assert.Equal(t, 0, res.FilesFailed)
	assert.NotEmpty(t, res.RunID)
	require.NotNil(t, res.Apply)
	assert.Equal(t, 2, res.Apply.FilesWritten)
	assert.Equal(t, 2, res.Apply.SymbolsWritten)

	imports, err := store.ListEdges(ctx, "r1", graph.EdgeImports)
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, graph.FileID("r1", "a.py"), imports[0].SourceID)
	assert.Equal(t, graph.FileID("r1", "b.py"), imports[0].TargetID)

	calls, err := store.ListEdges(ctx, "r1", graph.EdgeCalls)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, graph.SymbolID("r1", "a.py", "a.py::f", graph.SymbolFunction), calls[0].SourceID)
	assert.Equal(t, graph.SymbolID("r1", "b.py", "b.py::g", graph.SymbolFunction), calls[0].TargetID)
}

func TestIngest_RerunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	root := writeRepo(t, map[string]string{"a.py": srcA, "b.py": srcB})
	store := graph.NewMemStore()
	ing := New(store, nil, Options{})
	defer ing.Close()

	_, err := ing.Ingest(ctx, Request{RepoID: "r1", Root: root})
	require.NoError(t, err)

	res, err := ing.Ingest(ctx, Request{RepoID: "r1", Root: root})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Apply.FilesWritten)
	assert.Equal(t, 0, res.Apply.EdgesWritten)
}

func TestIngest_IncrementalModify_OnlyChangedFileRewritten(t *testing.T) {
	ctx := context.Background()
	root := writeRepo(t, map[string]string{"a.py": srcA, "b.py": srcB})
	store := graph.NewMemStore()
	ing := New(store, nil, Options{})
	defer ing.Close()

	_, err := ing.Ingest(ctx, Request{RepoID: "r1", Root: root})
	require.NoError(t, err)

	// g gains a docstring; its signature and callers are unchanged.
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.py"),
		[]byte("def g():\n    \"\"\"doc\"\"\"\n    return 1\n"), 0o644))

	res, err := ing.Ingest(ctx, Request{RepoID: "r1", Root: root, Mode: graph.ModeIncremental})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Apply.FilesWritten)
	assert.Equal(t, 0, res.Apply.FilesRemoved)

	calls, err := store.ListEdges(ctx, "r1", graph.EdgeCalls)
	require.NoError(t, err)
	assert.Len(t, calls, 1, "edge into the rewritten file survives")
}

func TestIngest_IncrementalDelete_RemovesFileAndEdges(t *testing.T) {
	ctx := context.Background()
	root := writeRepo(t, map[string]string{"a.py": srcA, "b.py": srcB})
	store := graph.NewMemStore()
	ing := New(store, nil, Options{})
	defer ing.Close()

	_, err := ing.Ingest(ctx, Request{RepoID: "r1", Root: root})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "b.py")))

	res, err := ing.Ingest(ctx, Request{RepoID: "r1", Root: root, Mode: graph.ModeIncremental})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Apply.FilesRemoved)

	for _, kind := range []graph.EdgeKind{graph.EdgeImports, graph.EdgeCalls} {
		edges, err := store.ListEdges(ctx, "r1", kind)
		require.NoError(t, err)
		assert.Empty(t, edges)
	}
}

func TestIngest_UnknownLanguage_IndexedWithoutSymbols(t *testing.T) {
	ctx := context.Background()
	root := writeRepo(t, map[string]string{"README.md": "# hello\nsearchable text\n"})
	store := graph.NewMemStore()
	ing := New(store, nil, Options{})
	defer ing.Close()

	res, err := ing.Ingest(ctx, Request{RepoID: "r1", Root: root})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesScanned)

	file, err := store.GetFile(ctx, "r1", "README.md")
	require.NoError(t, err)
	require.NotNil(t, file)
	assert.Equal(t, graph.LangUnknown, file.Lang)
	assert.Contains(t, file.Excerpt, "searchable")

	symbols, err := store.ListSymbols(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestIngest_Preconditions(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemStore()
	ing := New(store, nil, Options{})
	defer ing.Close()

	var pre *graph.PreconditionError

	_, err := ing.Ingest(ctx, Request{RepoID: "", Root: "/tmp"})
	require.ErrorAs(t, err, &pre)

	_, err = ing.Ingest(ctx, Request{RepoID: "r1", Root: filepath.Join(t.TempDir(), "missing")})
	require.ErrorAs(t, err, &pre)
}

//go:build e2e

package e2e

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/repograph/internal/graph"
	"github.com/dusk-indust/repograph/internal/impact"
	"github.com/dusk-indust/repograph/internal/ingest"
	"github.com/dusk-indust/repograph/internal/pack"
	"github.com/dusk-indust/repograph/internal/rank"
)

// TestPipeline_E2E_GoProject ingests the Go fixture project and runs the
// full query surface over the resulting graph: rank, impact, and context
// pack. It exercises the real tree-sitter extractor end to end.
func TestPipeline_E2E_GoProject(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemStore()
	ing := ingest.New(store, nil, ingest.Options{})
	defer ing.Close()

	root := filepath.Join("..", "..", "testdata", "fixtures", "go_project")
	res, err := ing.Ingest(ctx, ingest.Request{RepoID: "fixture", Root: root, Mode: graph.ModeFull})
	require.NoError(t, err)
	assert.Equal(t, 2, res.FilesScanned)
	assert.Equal(t, 0, res.FilesFailed)

	// model.go: User, Repository, newUser. service.go: UserService,
	// NewUserService, GetUser, CreateUser.
	symbols, err := store.ListSymbols(ctx, "fixture")
	require.NoError(t, err)
	assert.Len(t, symbols, 7)

	// CreateUser calls newUser across files; the name is unique repo-wide.
	callerID := graph.SymbolID("fixture", "service.go", "service.go::UserService::CreateUser", graph.SymbolMethod)
	calleeID := graph.SymbolID("fixture", "model.go", "model.go::newUser", graph.SymbolFunction)
	calls, err := store.ListEdges(ctx, "fixture", graph.EdgeCalls)
	require.NoError(t, err)
	found := false
	for _, e := range calls {
		if e.SourceID == callerID && e.TargetID == calleeID {
			found = true
		}
	}
	assert.True(t, found, "cross-file call edge CreateUser -> newUser")

	// Methods hang off their struct type.
	belongs, err := store.ListEdges(ctx, "fixture", graph.EdgeBelongsTo)
	require.NoError(t, err)
	assert.NotEmpty(t, belongs, "methods carry BELONGS_TO edges")

	// Rank: an exact symbol-name query puts that symbol first.
	items, err := rank.New(store, nil).Rank(ctx, "fixture", "CreateUser", 10)
	require.NoError(t, err)
	require.NotEmpty(t, items)
	assert.Equal(t, "CreateUser", items[0].Name)

	// Impact: changing newUser reaches its caller.
	imp, err := impact.New(store, nil).Impact(ctx, calleeID, 3, 20)
	require.NoError(t, err)
	require.NotEmpty(t, imp.Nodes)
	assert.Equal(t, callerID, imp.Nodes[0].NodeID)

	// Pack: budget holds and handles point into the fixture repo.
	p, err := pack.Build(pack.Request{
		RepoID:      "fixture",
		Items:       items,
		Stage:       pack.StageImplement,
		TokenBudget: 400,
	})
	require.NoError(t, err)
	require.NotEmpty(t, p.Items)
	assert.LessOrEqual(t, p.TokensUsed, p.TokensLimit)
	for _, it := range p.Items {
		assert.Contains(t, it.Handle, "repograph://fixture/")
	}
}

// TestPipeline_E2E_IncrementalNoChange re-ingests the fixture without
// modifications and expects a zero-write delta.
func TestPipeline_E2E_IncrementalNoChange(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemStore()
	ing := ingest.New(store, nil, ingest.Options{})
	defer ing.Close()

	root := filepath.Join("..", "..", "testdata", "fixtures", "go_project")
	_, err := ing.Ingest(ctx, ingest.Request{RepoID: "fixture", Root: root})
	require.NoError(t, err)

	before, err := store.Stats(ctx, "fixture")
	require.NoError(t, err)

	res, err := ing.Ingest(ctx, ingest.Request{RepoID: "fixture", Root: root, Mode: graph.ModeIncremental})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Apply.FilesWritten)
	assert.Equal(t, 0, res.Apply.FilesRemoved)

	after, err := store.Stats(ctx, "fixture")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

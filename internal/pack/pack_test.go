package pack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/repograph/internal/graph"
	"github.com/dusk-indust/repograph/internal/rank"
)

func rankedFile(path string, score float64) rank.Item {
	return rank.Item{NodeID: graph.FileID("r1", path), NodeKind: rank.NodeFile, Path: path, Lang: graph.LangPython, Score: score}
}

func rankedSymbol(path, name string, score float64) rank.Item {
	return rank.Item{
		NodeID:        graph.SymbolID("r1", path, graph.QualifiedName(path, "", name), graph.SymbolFunction),
		NodeKind:      rank.NodeSymbol,
		Path:          path,
		Name:          name,
		QualifiedName: graph.QualifiedName(path, "", name),
		StartLine:     1,
		EndLine:       10,
		Score:         score,
	}
}

// costs builds a pack with an effectively unlimited budget and returns each
// item's token estimate keyed by handle.
func costs(t *testing.T, items []rank.Item) map[string]int {
	t.Helper()
	p, err := Build(Request{RepoID: "r1", Items: items, TokenBudget: 1 << 20})
	require.NoError(t, err)
	out := map[string]int{}
	for _, it := range p.Items {
		out[it.Handle] = it.EstTokens
	}
	return out
}

func TestBuild_SkipsOversizedItemNotTruncates(t *testing.T) {
	// Item 2 carries a long path so it costs more than item 3.
	items := []rank.Item{
		rankedFile("a.py", 0.9),
		rankedFile("deeply/nested/path/with/many/segments/expensive_module.py", 0.8),
		rankedFile("c.py", 0.7),
	}
	byHandle := costs(t, items)
	h1 := Handle("r1", "a.py", 0, 0)
	h2 := Handle("r1", "deeply/nested/path/with/many/segments/expensive_module.py", 0, 0)
	h3 := Handle("r1", "c.py", 0, 0)
	require.Greater(t, byHandle[h2], byHandle[h3])

	budget := byHandle[h1] + byHandle[h3]
	p, err := Build(Request{RepoID: "r1", Items: items, TokenBudget: budget})
	require.NoError(t, err)

	require.Len(t, p.Items, 2)
	assert.Equal(t, h1, p.Items[0].Handle)
	assert.Equal(t, h3, p.Items[1].Handle, "cheaper item after the skip is still taken")
	assert.Equal(t, 1, p.Skipped)
	assert.LessOrEqual(t, p.TokensUsed, p.TokensLimit)
}

func TestBuild_DedupKeepsHighestRanked(t *testing.T) {
	items := []rank.Item{
		rankedSymbol("a.py", "f", 0.5),
		rankedSymbol("a.py", "f", 0.9),
	}
	p, err := Build(Request{RepoID: "r1", Items: items, TokenBudget: 1000})
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Equal(t, 0.9, p.Items[0].Score)
}

func TestBuild_PerCategoryQuota(t *testing.T) {
	items := []rank.Item{
		rankedSymbol("a.py", "f", 0.9),
		rankedSymbol("b.py", "g", 0.8),
		rankedSymbol("c.py", "h", 0.7),
		rankedFile("d.py", 0.1),
	}
	p, err := Build(Request{
		RepoID:            "r1",
		Items:             items,
		TokenBudget:       1 << 20,
		PerCategoryLimits: map[string]int{CategorySymbol: 2},
	})
	require.NoError(t, err)

	var symbols, files int
	for _, it := range p.Items {
		switch it.Category {
		case CategorySymbol:
			symbols++
		case CategoryFile:
			files++
		}
	}
	assert.Equal(t, 2, symbols, "quota caps symbols even with budget to spare")
	assert.Equal(t, 1, files, "low-ranked file is not crowded out")
}

func TestBuild_FocusPathBoost(t *testing.T) {
	items := []rank.Item{
		rankedFile("other/main.py", 0.8),
		rankedFile("util/auth.py", 0.7),
	}
	p, err := Build(Request{
		RepoID:      "r1",
		Items:       items,
		TokenBudget: 1000,
		FocusPaths:  []string{"util"},
	})
	require.NoError(t, err)
	require.Len(t, p.Items, 2)
	assert.Equal(t, "util/auth.py", p.Items[0].Path, "boosted item moves ahead")
	assert.InDelta(t, 0.85, p.Items[0].Score, 1e-9)
}

func TestBuild_IsDeterministic(t *testing.T) {
	items := []rank.Item{
		rankedFile("a.py", 0.5),
		rankedFile("b.py", 0.5),
		rankedSymbol("a.py", "f", 0.5),
	}
	first, err := Build(Request{RepoID: "r1", Items: items, TokenBudget: 1000, Stage: StageImplement})
	require.NoError(t, err)
	for range 5 {
		again, err := Build(Request{RepoID: "r1", Items: items, TokenBudget: 1000, Stage: StageImplement})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestBuild_StageSelectsQuotaProfile(t *testing.T) {
	var items []rank.Item
	for _, path := range []string{"a.py", "b.py", "c.py", "d.py", "e.py", "f.py", "g.py"} {
		items = append(items, rankedFile(path, 0.5))
	}
	p, err := Build(Request{RepoID: "r1", Items: items, TokenBudget: 1 << 20, Stage: StageImplement})
	require.NoError(t, err)
	assert.Len(t, p.Items, 6, "implement stage caps files at its profile ceiling")
}

func TestBuild_Preconditions(t *testing.T) {
	var pre *graph.PreconditionError

	_, err := Build(Request{RepoID: "", TokenBudget: 100})
	require.ErrorAs(t, err, &pre)

	_, err = Build(Request{RepoID: "r1", TokenBudget: 0})
	require.ErrorAs(t, err, &pre)
}

func TestHandleFormat(t *testing.T) {
	assert.Equal(t, "repograph://r1/a.py#L3-L9", Handle("r1", "a.py", 3, 9))
	assert.Equal(t, "repograph://r1/a.py", Handle("r1", "a.py", 0, 0))
}

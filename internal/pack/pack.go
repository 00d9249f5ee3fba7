// Package pack assembles ranked results into a token-budgeted bundle of
// opaque handles. A downstream code-fetch collaborator resolves handles to
// content; the pack itself carries only handles and short summaries.
package pack

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/repograph/internal/graph"
	"github.com/dusk-indust/repograph/internal/rank"
)

// Stage names the downstream consumption phase; it selects a default
// per-category quota profile when the caller does not supply one.
type Stage string

const (
	StagePlan      Stage = "plan"
	StageImplement Stage = "implement"
	StageReview    Stage = "review"
)

// Categories mirror the ranked node kinds.
const (
	CategoryFile   = "file"
	CategorySymbol = "symbol"
)

// focusBoost is added to an item's score when its path falls under a focus
// path, before the greedy pass.
const focusBoost = 0.15

// stageQuotas are the default per-category item ceilings per stage.
var stageQuotas = map[Stage]map[string]int{
	StagePlan:      {CategoryFile: 12, CategorySymbol: 8},
	StageImplement: {CategoryFile: 6, CategorySymbol: 14},
	StageReview:    {CategoryFile: 8, CategorySymbol: 12},
}

// defaultQuota applies when the stage is empty or unrecognized.
var defaultQuota = map[string]int{CategoryFile: 10, CategorySymbol: 10}

// Request carries everything Build needs. TokenBudget is mandatory.
type Request struct {
	RepoID            string         `json:"repoId"`
	Items             []rank.Item    `json:"items"`
	Stage             Stage          `json:"stage,omitempty"`
	TokenBudget       int            `json:"tokenBudget"`
	FocusPaths        []string       `json:"focusPaths,omitempty"`
	PerCategoryLimits map[string]int `json:"perCategoryLimits,omitempty"`
}

// Item is one pack entry: a handle plus a rule-based one-line summary.
type Item struct {
	Handle    string  `json:"handle"`
	Category  string  `json:"category"`
	Path      string  `json:"path"`
	Name      string  `json:"name,omitempty"`
	Summary   string  `json:"summary"`
	Score     float64 `json:"score"`
	EstTokens int     `json:"estTokens"`
}

// Pack is a deterministic, budget-bounded selection. TokensUsed never
// exceeds TokensLimit.
type Pack struct {
	Items       []Item `json:"items"`
	TokensUsed  int    `json:"tokensUsed"`
	TokensLimit int    `json:"tokensLimit"`
	Skipped     int    `json:"skipped"`
}

// Handle renders the opaque reference for a node. Line numbers are included
// only when both are set.
func Handle(repoID, path string, startLine, endLine int) string {
	if startLine > 0 && endLine > 0 {
		return fmt.Sprintf("repograph://%s/%s#L%d-L%d", repoID, path, startLine, endLine)
	}
	return fmt.Sprintf("repograph://%s/%s", repoID, path)
}

// EstimateTokens converts a character count to a rough token count at a
// fixed 4-chars-per-token ratio, rounding up.
func EstimateTokens(chars int) int {
	return (chars + 3) / 4
}

// Build runs the selection: focus boost, dedup by handle, descending-score
// order, then a greedy budget fill where an item that does not fit is
// skipped, not truncated. Per-category ceilings apply independently of the
// budget.
func Build(req Request) (*Pack, error) {
	if req.RepoID == "" {
		return nil, graph.Preconditionf("repoId is required")
	}
	if req.TokenBudget <= 0 {
		return nil, graph.Preconditionf("tokenBudget must be positive")
	}

	quotas := req.PerCategoryLimits
	if len(quotas) == 0 {
		quotas = stageQuotas[req.Stage]
	}
	if len(quotas) == 0 {
		quotas = defaultQuota
	}

	byHandle := map[string]Item{}
	for _, ri := range req.Items {
		it := fromRanked(req.RepoID, ri)
		if underFocus(it.Path, req.FocusPaths) {
			it.Score += focusBoost
			if it.Score > 1 {
				it.Score = 1
			}
		}
		if prev, ok := byHandle[it.Handle]; ok && prev.Score >= it.Score {
			continue
		}
		byHandle[it.Handle] = it
	}

	items := make([]Item, 0, len(byHandle))
	for _, it := range byHandle {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Handle < items[j].Handle
	})

	out := &Pack{TokensLimit: req.TokenBudget}
	taken := map[string]int{}
	for _, it := range items {
		if ceil, ok := quotas[it.Category]; ok && taken[it.Category] >= ceil {
			out.Skipped++
			continue
		}
		if out.TokensUsed+it.EstTokens > req.TokenBudget {
			out.Skipped++
			continue
		}
		out.Items = append(out.Items, it)
		out.TokensUsed += it.EstTokens
		taken[it.Category]++
	}
	return out, nil
}

// fromRanked converts a ranked item into a pack entry with its handle,
// summary, and token estimate.
func fromRanked(repoID string, ri rank.Item) Item {
	it := Item{
		Category: string(ri.NodeKind),
		Path:     ri.Path,
		Name:     ri.Name,
		Score:    ri.Score,
	}
	switch ri.NodeKind {
	case rank.NodeSymbol:
		it.Handle = Handle(repoID, ri.Path, ri.StartLine, ri.EndLine)
		it.Summary = fmt.Sprintf("symbol %s in %s, lines %d-%d", ri.QualifiedName, ri.Path, ri.StartLine, ri.EndLine)
	default:
		it.Handle = Handle(repoID, ri.Path, 0, 0)
		it.Summary = fmt.Sprintf("file %s", ri.Path)
		if ri.Lang != graph.LangUnknown {
			it.Summary += fmt.Sprintf(" (%s)", ri.Lang)
		}
	}
	it.EstTokens = EstimateTokens(len(it.Handle) + len(it.Summary))
	return it
}

// underFocus reports whether path equals a focus entry or sits under one
// as a directory prefix.
func underFocus(path string, focus []string) bool {
	for _, f := range focus {
		f = strings.TrimSuffix(f, "/")
		if f == "" {
			continue
		}
		if path == f || strings.HasPrefix(path, f+"/") {
			return true
		}
	}
	return false
}

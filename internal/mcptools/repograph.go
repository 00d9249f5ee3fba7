package mcptools

import (
	"github.com/dusk-indust/repograph/internal/graph"
	"github.com/dusk-indust/repograph/internal/impact"
	"github.com/dusk-indust/repograph/internal/ingest"
	"github.com/dusk-indust/repograph/internal/pack"
	"github.com/dusk-indust/repograph/internal/rank"
)

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each MCP tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// IngestRepoInput is the input for the ingest_repo MCP tool.
type IngestRepoInput struct {
	RepoID   string `json:"repoId" jsonschema:"logical identifier for the repository"`
	RepoPath string `json:"repoPath" jsonschema:"the absolute path to the repository to index"`
	Mode     string `json:"mode,omitempty" jsonschema:"full (replace the repo's graph) or incremental (changed files only). Default: full"`
	SinceRef string `json:"sinceRef,omitempty" jsonschema:"git ref to diff against; forces incremental mode"`
}

// IngestRepoOutput is the result of the ingest_repo MCP tool.
type IngestRepoOutput struct {
	Result ingest.Result `json:"result"`
}

// RankQueryInput is the input for the rank_query MCP tool.
type RankQueryInput struct {
	RepoID string `json:"repoId" jsonschema:"repository to search"`
	Query  string `json:"query" jsonschema:"free-text query; tokens matching a language name act as filters"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results (default: 20)"`
}

// RankQueryOutput is the result of the rank_query MCP tool.
type RankQueryOutput struct {
	Items []rank.Item `json:"items"`
	Total int         `json:"total"`
}

// ImpactOfInput is the input for the impact_of MCP tool.
type ImpactOfInput struct {
	NodeID   string `json:"nodeId" jsonschema:"file or symbol node id to seed the traversal"`
	MaxDepth int    `json:"maxDepth" jsonschema:"maximum reverse-traversal depth; required, positive"`
	Limit    int    `json:"limit" jsonschema:"maximum number of impacted nodes; required, positive"`
}

// ImpactOfOutput is the result of the impact_of MCP tool.
type ImpactOfOutput struct {
	Result impact.Result `json:"result"`
}

// BuildContextPackInput is the input for the build_context_pack MCP tool.
type BuildContextPackInput struct {
	RepoID            string         `json:"repoId" jsonschema:"repository to build the pack from"`
	Query             string         `json:"query" jsonschema:"free-text query that seeds the ranked candidate list"`
	Stage             string         `json:"stage,omitempty" jsonschema:"consumption stage: plan, implement, or review; selects default per-category quotas"`
	TokenBudget       int            `json:"tokenBudget" jsonschema:"token ceiling for the pack; required, positive"`
	FocusPaths        []string       `json:"focusPaths,omitempty" jsonschema:"paths whose items receive a rank boost"`
	PerCategoryLimits map[string]int `json:"perCategoryLimits,omitempty" jsonschema:"item count ceiling per category (file, symbol); overrides the stage profile"`
}

// BuildContextPackOutput is the result of the build_context_pack MCP tool.
type BuildContextPackOutput struct {
	Pack pack.Pack `json:"pack"`
}

// GraphStatsInput is the input for the graph_stats MCP tool.
type GraphStatsInput struct {
	RepoID string `json:"repoId,omitempty" jsonschema:"repository to summarize; empty for the whole store"`
}

// GraphStatsOutput is the result of the graph_stats MCP tool.
type GraphStatsOutput struct {
	Stats graph.GraphStats `json:"stats"`
}

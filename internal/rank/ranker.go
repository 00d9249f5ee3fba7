// Package rank scores files and symbols against a free-text query by fusing
// a lexical signal (term matches in names, paths, and content excerpts) with
// a structural one (how referenced a node is in the graph).
package rank

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dusk-indust/repograph/internal/graph"
	"github.com/dusk-indust/repograph/internal/scan"
)

// Weights controls the fusion of ranking signals. The two components sum
// to 1 so fused scores stay in [0, 1].
type Weights struct {
	Lexical    float64 `json:"lexical"`
	Structural float64 `json:"structural"`
}

// DefaultWeights favors lexical matching, with graph centrality as the
// secondary signal.
func DefaultWeights() Weights {
	return Weights{Lexical: 0.65, Structural: 0.35}
}

// DefaultLimit is the result count when the caller does not set one.
const DefaultLimit = 20

// candidateLimit bounds how many rows are pulled from the store per term.
const candidateLimit = 200

// NodeKind distinguishes ranked entity types.
type NodeKind string

const (
	NodeFile   NodeKind = "file"
	NodeSymbol NodeKind = "symbol"
)

// Item is one ranked result.
type Item struct {
	NodeID        string     `json:"nodeId"`
	NodeKind      NodeKind   `json:"nodeKind"`
	Path          string     `json:"path"`
	Name          string     `json:"name,omitempty"`
	QualifiedName string     `json:"qualifiedName,omitempty"`
	Lang          graph.Lang `json:"lang"`
	StartLine     int        `json:"startLine,omitempty"`
	EndLine       int        `json:"endLine,omitempty"`
	Score         float64    `json:"score"`
	MatchedFields []string   `json:"matchedFields,omitempty"`
}

// Ranker executes ranked queries against a Store.
type Ranker struct {
	store   graph.Store
	weights Weights
	log     *slog.Logger
}

// New creates a Ranker with the default weights.
func New(store graph.Store, log *slog.Logger) *Ranker {
	if log == nil {
		log = slog.Default()
	}
	return &Ranker{store: store, weights: DefaultWeights(), log: log}
}

// Rank returns up to limit items for the query, best first. The ordering is
// total: ties in score fall back to match quality, then recency, then node
// ID, so identical inputs always produce identical output.
func (r *Ranker) Rank(ctx context.Context, repoID, query string, limit int) ([]Item, error) {
	if repoID == "" {
		return nil, graph.Preconditionf("repoId is required")
	}
	terms, langHints := tokenize(query)
	if len(terms) == 0 && len(langHints) == 0 {
		// Nothing searchable matches nothing; empty matches are not an error.
		return []Item{}, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	cands, err := r.gatherCandidates(ctx, repoID, terms, langHints)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return []Item{}, nil
	}

	if err := r.scoreStructural(ctx, cands); err != nil {
		return nil, err
	}
	for _, c := range cands {
		c.scoreLexical(terms)
		c.item.Score = clamp01(r.weights.Lexical*c.lexical + r.weights.Structural*c.structural)
	}

	sorted := make([]*candidate, 0, len(cands))
	for _, c := range cands {
		sorted = append(sorted, c)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].less(sorted[j], terms, langHints) })

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]Item, len(sorted))
	for i, c := range sorted {
		out[i] = c.item
	}
	r.log.Debug("rank query", "repo", repoID, "terms", terms, "candidates", len(cands), "returned", len(out))
	return out, nil
}

// candidate carries the intermediate scoring state for one node.
type candidate struct {
	item       Item
	lexical    float64
	structural float64
	incoming   int
	excerpt    string
	ingestedAt time.Time
}

// gatherCandidates unions file and symbol matches across all query terms.
func (r *Ranker) gatherCandidates(ctx context.Context, repoID string, terms, langHints []string) (map[string]*candidate, error) {
	cands := map[string]*candidate{}

	searchTerms := terms
	if len(searchTerms) == 0 {
		// Pure language query ("rust"): fall back to matching everything in
		// that language by path.
		searchTerms = []string{""}
	}

	fileIngest := map[string]time.Time{}
	for _, term := range searchTerms {
		files, err := r.store.MatchFiles(ctx, repoID, term, candidateLimit)
		if err != nil {
			return nil, &graph.QueryError{Op: "matchFiles", Err: err}
		}
		for _, f := range files {
			fileIngest[f.Path] = f.LastIngestedAt
			if _, ok := cands[f.ID()]; ok {
				continue
			}
			cands[f.ID()] = &candidate{
				item: Item{
					NodeID:   f.ID(),
					NodeKind: NodeFile,
					Path:     f.Path,
					Lang:     f.Lang,
				},
				excerpt:    f.Excerpt,
				ingestedAt: f.LastIngestedAt,
			}
		}

		symbols, err := r.store.MatchSymbols(ctx, repoID, term, candidateLimit)
		if err != nil {
			return nil, &graph.QueryError{Op: "matchSymbols", Err: err}
		}
		for _, s := range symbols {
			if _, ok := cands[s.ID]; ok {
				continue
			}
			cands[s.ID] = &candidate{
				item: Item{
					NodeID:        s.ID,
					NodeKind:      NodeSymbol,
					Path:          s.FilePath,
					Name:          s.Name,
					QualifiedName: s.QualifiedName,
					StartLine:     s.StartLine,
					EndLine:       s.EndLine,
					Lang:          graph.LangUnknown,
				},
			}
		}
	}

	// Symbols inherit language and recency from their owning file.
	for _, c := range cands {
		if c.item.NodeKind != NodeSymbol {
			continue
		}
		if t, ok := fileIngest[c.item.Path]; ok {
			c.ingestedAt = t
		} else if f, err := r.store.GetFile(ctx, repoID, c.item.Path); err == nil && f != nil {
			c.ingestedAt = f.LastIngestedAt
		}
		c.item.Lang = scan.DetectLang(c.item.Path)
	}

	// A language hint filters when it would leave anything; otherwise it is
	// only a tie-break.
	if len(langHints) > 0 {
		filtered := map[string]*candidate{}
		for id, c := range cands {
			if langMatches(c.item.Lang, langHints) {
				filtered[id] = c
			}
		}
		if len(filtered) > 0 {
			cands = filtered
		}
	}
	return cands, nil
}

// scoreStructural normalizes reference counts (CALLS, IMPORTS, USES into the
// node) across the candidate set.
func (r *Ranker) scoreStructural(ctx context.Context, cands map[string]*candidate) error {
	ids := make([]string, 0, len(cands))
	for id := range cands {
		ids = append(ids, id)
	}
	incoming, err := r.store.IncomingEdges(ctx, ids)
	if err != nil {
		return &graph.QueryError{Op: "incomingEdges", Err: err}
	}
	maxIn := 0
	for _, e := range incoming {
		switch e.Kind {
		case graph.EdgeCalls, graph.EdgeImports, graph.EdgeUses:
			c := cands[e.TargetID]
			c.incoming++
			if c.incoming > maxIn {
				maxIn = c.incoming
			}
		}
	}
	if maxIn == 0 {
		return nil
	}
	for _, c := range cands {
		c.structural = float64(c.incoming) / float64(maxIn)
	}
	return nil
}

// scoreLexical computes the fraction of query terms the candidate matches,
// weighting name hits over path hits over excerpt hits.
func (c *candidate) scoreLexical(terms []string) {
	if len(terms) == 0 {
		c.lexical = 0.5
		return
	}
	name := strings.ToLower(c.item.Name)
	path := strings.ToLower(c.item.Path)
	excerpt := strings.ToLower(c.excerpt)

	var total float64
	fields := map[string]bool{}
	for _, term := range terms {
		switch {
		case name == term:
			total += 1.0
			fields["name"] = true
		case name != "" && strings.Contains(name, term):
			total += 0.8
			fields["name"] = true
		case strings.Contains(path, term):
			total += 0.6
			fields["path"] = true
		case excerpt != "" && strings.Contains(excerpt, term):
			total += 0.4
			fields["excerpt"] = true
		}
	}
	c.lexical = clamp01(total / float64(len(terms)))
	c.item.MatchedFields = sortedKeys(fields)
}

// less implements the deterministic ordering: score, then exact path-segment
// match, then language-hint match, then most recently ingested, then ID.
func (c *candidate) less(o *candidate, terms, langHints []string) bool {
	if c.item.Score != o.item.Score {
		return c.item.Score > o.item.Score
	}
	cSeg, oSeg := c.pathSegmentMatch(terms), o.pathSegmentMatch(terms)
	if cSeg != oSeg {
		return cSeg
	}
	cLang, oLang := langMatches(c.item.Lang, langHints), langMatches(o.item.Lang, langHints)
	if cLang != oLang {
		return cLang
	}
	if !c.ingestedAt.Equal(o.ingestedAt) {
		return c.ingestedAt.After(o.ingestedAt)
	}
	return c.item.NodeID < o.item.NodeID
}

// pathSegmentMatch reports whether any query term equals a whole path
// segment (directory or file stem).
func (c *candidate) pathSegmentMatch(terms []string) bool {
	for _, seg := range strings.Split(strings.ToLower(c.item.Path), "/") {
		stem := strings.TrimSuffix(seg, strings.ToLower(pathExt(seg)))
		for _, term := range terms {
			if seg == term || stem == term {
				return true
			}
		}
	}
	return false
}

func pathExt(seg string) string {
	if idx := strings.LastIndexByte(seg, '.'); idx > 0 {
		return seg[idx:]
	}
	return ""
}

// langAliases maps query tokens to the language they hint at.
var langAliases = map[string]graph.Lang{
	"go":         graph.LangGo,
	"golang":     graph.LangGo,
	"python":     graph.LangPython,
	"py":         graph.LangPython,
	"typescript": graph.LangTypeScript,
	"ts":         graph.LangTypeScript,
	"rust":       graph.LangRust,
	"rs":         graph.LangRust,
}

// tokenize lowercases and splits the query, separating language hints from
// search terms.
func tokenize(query string) (terms, langHints []string) {
	raw := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '_' || r == '.')
	})
	seen := map[string]bool{}
	for _, tok := range raw {
		tok = strings.Trim(tok, ".")
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		if _, ok := langAliases[tok]; ok {
			langHints = append(langHints, tok)
			continue
		}
		terms = append(terms, tok)
	}
	return terms, langHints
}

func langMatches(lang graph.Lang, hints []string) bool {
	for _, h := range hints {
		if langAliases[h] == lang {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

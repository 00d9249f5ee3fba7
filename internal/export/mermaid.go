package export

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/dusk-indust/repograph/internal/graph"
)

// GenerateMermaid produces a Mermaid graph TD diagram of a repo's file
// import structure. Files are grouped into subgraphs by top-level
// directory; IMPORTS edges become arrows.
func GenerateMermaid(ctx context.Context, store graph.Store, repoID string) (string, error) {
	files, err := store.ListFiles(ctx, repoID)
	if err != nil {
		return "", fmt.Errorf("list files: %w", err)
	}
	edges, err := store.ListEdges(ctx, repoID, graph.EdgeImports)
	if err != nil {
		return "", fmt.Errorf("list edges: %w", err)
	}

	// Node IDs must be alphanumeric for Mermaid; map paths to N0, N1, ...
	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(p string) string {
		if id, ok := nodeIDs[p]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[p] = id
		return id
	}

	groups := map[string][]string{}
	for _, f := range files {
		groups[topDir(f.Path)] = append(groups[topDir(f.Path)], f.Path)
	}
	groupNames := make([]string, 0, len(groups))
	for name := range groups {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)

	var sb strings.Builder
	sb.WriteString("graph TD\n")
	for _, name := range groupNames {
		members := groups[name]
		sort.Strings(members)
		sb.WriteString(fmt.Sprintf("  subgraph %s[\"%.40s\"]\n", getID(name+"/"), name))
		for _, member := range members {
			sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", getID(member), shortPath(member)))
		}
		sb.WriteString("  end\n")
	}

	for _, e := range edges {
		_, src, ok := graph.SplitFileID(e.SourceID)
		if !ok {
			continue
		}
		_, tgt, ok := graph.SplitFileID(e.TargetID)
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %s --> %s\n", getID(src), getID(tgt)))
	}

	return sb.String(), nil
}

// topDir returns the first path segment, or "." for root-level files.
func topDir(p string) string {
	if idx := strings.IndexByte(p, '/'); idx > 0 {
		return p[:idx]
	}
	return "."
}

// shortPath returns the last 2 path segments for readability.
func shortPath(p string) string {
	parts := strings.Split(path.Clean(p), "/")
	if len(parts) <= 2 {
		return p
	}
	return strings.Join(parts[len(parts)-2:], "/")
}

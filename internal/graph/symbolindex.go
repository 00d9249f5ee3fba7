package graph

import (
	"path/filepath"
	"strings"
)

// SymbolIndex answers "which symbol does this textual key refer to?" during
// the writer's resolution pass. Keys come from extraction and may be bare
// names ("g"), qualified calls ("b.g", "Repo::load"), or full qualified
// names. Resolution walks outward through scopes: the source file, then the
// files it imports, then the whole repo. Inside the first scope with
// any candidate, the match must be unique or the edge is dropped. Shadowed
// and ambiguous targets therefore resolve to nothing rather than to a guess.
type SymbolIndex struct {
	byQualified map[string]SymbolNode
	byFileName  map[string][]SymbolNode // key: filePath + "\x1f" + name
	byName      map[string][]SymbolNode
}

// NewSymbolIndex builds an index over the repo's complete symbol set.
func NewSymbolIndex(symbols []SymbolNode) *SymbolIndex {
	ix := &SymbolIndex{
		byQualified: make(map[string]SymbolNode, len(symbols)),
		byFileName:  make(map[string][]SymbolNode),
		byName:      make(map[string][]SymbolNode),
	}
	for _, sym := range symbols {
		ix.byQualified[sym.QualifiedName] = sym
		fk := sym.FilePath + "\x1f" + sym.Name
		ix.byFileName[fk] = append(ix.byFileName[fk], sym)
		ix.byName[sym.Name] = append(ix.byName[sym.Name], sym)
	}
	return ix
}

// Resolve maps key to a symbol. sourcePath is the file the reference
// occurs in; imports are the repo-relative paths that file imports
// (already resolved). kinds, when non-empty, restricts the match.
func (ix *SymbolIndex) Resolve(key, sourcePath string, imports []string, kinds ...SymbolKind) (*SymbolNode, bool) {
	if sym, ok := ix.byQualified[key]; ok && kindAllowed(sym.Kind, kinds) {
		return &sym, true
	}

	name, qualifier := splitKey(key)
	if name == "" {
		return nil, false
	}

	// Same file first.
	if sym, ok := ix.uniqueIn(sourcePath, name, kinds); ok != scopeEmpty {
		return sym, ok == scopeHit
	}

	// Then the imported files. A module-style qualifier ("b" in "b.g")
	// narrows the scope to the import whose stem matches it.
	scope := imports
	if qualifier != "" {
		for _, imp := range imports {
			if fileStem(imp) == qualifier {
				scope = []string{imp}
				break
			}
		}
	}
	var candidates []SymbolNode
	for _, imp := range scope {
		for _, sym := range ix.byFileName[imp+"\x1f"+name] {
			if kindAllowed(sym.Kind, kinds) {
				candidates = append(candidates, sym)
			}
		}
	}
	if len(candidates) == 1 {
		return &candidates[0], true
	}
	if len(candidates) > 1 {
		return nil, false // ambiguous across imports
	}

	// Finally, a repo-wide unique name.
	candidates = candidates[:0]
	for _, sym := range ix.byName[name] {
		if kindAllowed(sym.Kind, kinds) {
			candidates = append(candidates, sym)
		}
	}
	if len(candidates) == 1 {
		return &candidates[0], true
	}
	return nil, false
}

type scopeResult int

const (
	scopeEmpty scopeResult = iota
	scopeHit
	scopeAmbiguous
)

// uniqueIn looks for name within a single file's symbols.
func (ix *SymbolIndex) uniqueIn(filePath, name string, kinds []SymbolKind) (*SymbolNode, scopeResult) {
	var candidates []SymbolNode
	for _, sym := range ix.byFileName[filePath+"\x1f"+name] {
		if kindAllowed(sym.Kind, kinds) {
			candidates = append(candidates, sym)
		}
	}
	switch len(candidates) {
	case 0:
		return nil, scopeEmpty
	case 1:
		return &candidates[0], scopeHit
	default:
		// Same name at multiple nesting levels: prefer the top-level
		// declaration when there is exactly one, otherwise give up.
		var topLevel []SymbolNode
		for _, sym := range candidates {
			if !strings.Contains(strings.TrimPrefix(sym.QualifiedName, sym.FilePath+"::"), "::") {
				topLevel = append(topLevel, sym)
			}
		}
		if len(topLevel) == 1 {
			return &topLevel[0], scopeHit
		}
		return nil, scopeAmbiguous
	}
}

func kindAllowed(kind SymbolKind, kinds []SymbolKind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// splitKey breaks a reference key into its final name segment and the
// qualifier immediately before it. "b.g" -> ("g", "b"); "g" -> ("g", "").
func splitKey(key string) (name, qualifier string) {
	key = strings.TrimSpace(key)
	for _, sep := range []string{"::", "."} {
		if idx := strings.LastIndex(key, sep); idx != -1 {
			return key[idx+len(sep):], lastSegment(key[:idx])
		}
	}
	return key, ""
}

func lastSegment(s string) string {
	for _, sep := range []string{"::", "."} {
		if idx := strings.LastIndex(s, sep); idx != -1 {
			s = s[idx+len(sep):]
		}
	}
	return s
}

// fileStem returns a path's base name without extension: "pkg/b.py" -> "b".
func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

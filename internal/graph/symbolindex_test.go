package graph

import (
	"testing"
)

func fixtureSymbols() []SymbolNode {
	mk := func(path, enclosing, name string, kind SymbolKind) SymbolNode {
		return SymbolNode{
			ID:            SymbolID("r1", path, QualifiedName(path, enclosing, name), kind),
			RepoID:        "r1",
			FilePath:      path,
			Name:          name,
			QualifiedName: QualifiedName(path, enclosing, name),
			Kind:          kind,
		}
	}
	return []SymbolNode{
		mk("a.py", "", "f", SymbolFunction),
		mk("a.py", "", "helper", SymbolFunction),
		mk("b.py", "", "g", SymbolFunction),
		mk("b.py", "", "helper", SymbolFunction),
		mk("c.py", "", "Repo", SymbolClass),
		mk("c.py", "Repo", "load", SymbolMethod),
		mk("c.py", "", "unique_fn", SymbolFunction),
	}
}

func TestSymbolIndex_ExactQualified(t *testing.T) {
	ix := NewSymbolIndex(fixtureSymbols())

	sym, ok := ix.Resolve("c.py::Repo::load", "a.py", nil)
	if !ok {
		t.Fatal("expected qualified name to resolve")
	}
	if sym.Kind != SymbolMethod || sym.Name != "load" {
		t.Errorf("got %s (%s), want method load", sym.Name, sym.Kind)
	}
}

func TestSymbolIndex_SameFileFirst(t *testing.T) {
	ix := NewSymbolIndex(fixtureSymbols())

	// "helper" exists in a.py and b.py; from a.py the local one wins even
	// though the name is ambiguous repo-wide.
	sym, ok := ix.Resolve("helper", "a.py", []string{"b.py"})
	if !ok {
		t.Fatal("expected same-file resolution")
	}
	if sym.FilePath != "a.py" {
		t.Errorf("FilePath = %q, want a.py", sym.FilePath)
	}
}

func TestSymbolIndex_ImportScope(t *testing.T) {
	ix := NewSymbolIndex(fixtureSymbols())

	sym, ok := ix.Resolve("g", "a.py", []string{"b.py"})
	if !ok {
		t.Fatal("expected import-scope resolution")
	}
	if sym.FilePath != "b.py" {
		t.Errorf("FilePath = %q, want b.py", sym.FilePath)
	}
}

func TestSymbolIndex_QualifierNarrowsImports(t *testing.T) {
	ix := NewSymbolIndex(fixtureSymbols())

	// "b.helper" from c.py with both a.py and b.py imported: the module
	// qualifier picks b.py where a bare "helper" would be ambiguous.
	sym, ok := ix.Resolve("b.helper", "c.py", []string{"a.py", "b.py"})
	if !ok {
		t.Fatal("expected qualifier to disambiguate")
	}
	if sym.FilePath != "b.py" {
		t.Errorf("FilePath = %q, want b.py", sym.FilePath)
	}

	if _, ok := ix.Resolve("helper", "c.py", []string{"a.py", "b.py"}); ok {
		t.Error("bare ambiguous name should not resolve")
	}
}

func TestSymbolIndex_RepoWideUnique(t *testing.T) {
	ix := NewSymbolIndex(fixtureSymbols())

	sym, ok := ix.Resolve("unique_fn", "a.py", nil)
	if !ok {
		t.Fatal("expected repo-wide unique name to resolve")
	}
	if sym.FilePath != "c.py" {
		t.Errorf("FilePath = %q, want c.py", sym.FilePath)
	}

	// "helper" is not unique repo-wide and has no scope hit from c.py.
	if _, ok := ix.Resolve("helper", "c.py", nil); ok {
		t.Error("ambiguous repo-wide name should not resolve")
	}
}

func TestSymbolIndex_KindRestriction(t *testing.T) {
	ix := NewSymbolIndex(fixtureSymbols())

	sym, ok := ix.Resolve("Repo", "a.py", nil, SymbolClass)
	if !ok {
		t.Fatal("expected class to resolve")
	}
	if sym.Kind != SymbolClass {
		t.Errorf("Kind = %s, want class", sym.Kind)
	}

	if _, ok := ix.Resolve("Repo", "a.py", nil, SymbolFunction); ok {
		t.Error("kind restriction should exclude the class")
	}
}

func TestSymbolIndex_TopLevelPreferredOnSameFileTie(t *testing.T) {
	path := "svc.py"
	mk := func(enclosing, name string, kind SymbolKind) SymbolNode {
		return SymbolNode{
			ID:            SymbolID("r1", path, QualifiedName(path, enclosing, name), kind),
			RepoID:        "r1",
			FilePath:      path,
			Name:          name,
			QualifiedName: QualifiedName(path, enclosing, name),
			Kind:          kind,
		}
	}
	ix := NewSymbolIndex([]SymbolNode{
		mk("", "Service", SymbolClass),
		mk("", "run", SymbolFunction),
		mk("Service", "run", SymbolMethod),
	})

	sym, ok := ix.Resolve("run", path, nil)
	if !ok {
		t.Fatal("expected top-level declaration to win the tie")
	}
	if sym.Kind != SymbolFunction {
		t.Errorf("Kind = %s, want function", sym.Kind)
	}
}

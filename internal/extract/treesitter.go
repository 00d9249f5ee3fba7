// Package extract turns source files into graph symbols and raw edges using
// tree-sitter grammars. Raw edges carry textual keys only; resolving them to
// node IDs is the graph writer's job.
package extract

import (
	"context"
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/dusk-indust/repograph/internal/graph"
)

// Result holds one file's extraction output. Symbol IDs are unset; the
// writer assigns them when it knows the repo.
type Result struct {
	Symbols []graph.SymbolNode
	Raw     []graph.RawEdge
}

// langExtractor walks a parsed AST and accumulates symbols and raw edges.
type langExtractor interface {
	Extract(root *tree_sitter.Node, source []byte, filePath string) *Result
}

// Extractor parses source with tree-sitter and delegates to a per-language
// extractor. A new tree-sitter parser is created per Extract call, so
// concurrent calls are safe.
type Extractor struct {
	languages  map[graph.Lang]*tree_sitter.Language
	extractors map[graph.Lang]langExtractor
}

// New creates an Extractor with Go, Python, TypeScript, and Rust grammars
// registered.
func New() *Extractor {
	return &Extractor{
		languages: map[graph.Lang]*tree_sitter.Language{
			graph.LangGo:         tree_sitter.NewLanguage(tree_sitter_go.Language()),
			graph.LangPython:     tree_sitter.NewLanguage(tree_sitter_python.Language()),
			graph.LangTypeScript: tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
			graph.LangRust:       tree_sitter.NewLanguage(tree_sitter_rust.Language()),
		},
		extractors: map[graph.Lang]langExtractor{
			graph.LangGo:         &goExtractor{},
			graph.LangPython:     &pyExtractor{},
			graph.LangTypeScript: &tsExtractor{},
			graph.LangRust:       &rsExtractor{},
		},
	}
}

// Supported reports whether lang has a registered grammar.
func (e *Extractor) Supported(lang graph.Lang) bool {
	_, ok := e.languages[lang]
	return ok
}

// Extract parses one file and returns its symbols and raw edges. ctx is
// checked before the parse; tree-sitter itself is not interruptible.
func (e *Extractor) Extract(ctx context.Context, path string, source []byte, lang graph.Lang) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tsLang, ok := e.languages[lang]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
	ext := e.extractors[lang]

	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(tsLang); err != nil {
		return nil, fmt.Errorf("set language %s: %w", lang, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned nil tree for %s", path)
	}
	defer tree.Close()

	return ext.Extract(tree.RootNode(), source, path), nil
}

// Close releases parser resources. Parsers are per-call, so this is a no-op.
func (e *Extractor) Close() error {
	return nil
}

// scope tracks the enclosing declarations during a walk. class is the
// enclosing class name (not qualified); fn is the qualified name of the
// nearest extracted function or method, used to attribute calls.
type scope struct {
	class string
	fn    string
}

// addSymbol appends a symbol with its qualified name computed from scope.
func (r *Result) addSymbol(filePath, enclosingClass, name string, kind graph.SymbolKind, vis graph.Visibility, node *tree_sitter.Node) string {
	qn := graph.QualifiedName(filePath, enclosingClass, name)
	r.Symbols = append(r.Symbols, graph.SymbolNode{
		Name:          name,
		QualifiedName: qn,
		Kind:          kind,
		Visibility:    vis,
		FilePath:      filePath,
		StartLine:     int(node.StartPosition().Row) + 1,
		EndLine:       int(node.EndPosition().Row) + 1,
	})
	return qn
}

// addCall records a call reference. Calls inside an extracted function
// become CALLS from that function; top-level calls become USES from the
// file.
func (r *Result) addCall(sc scope, target string) {
	if target == "" {
		return
	}
	if sc.fn != "" {
		r.Raw = append(r.Raw, graph.RawEdge{Kind: graph.EdgeCalls, SourceQN: sc.fn, TargetKey: target})
		return
	}
	r.Raw = append(r.Raw, graph.RawEdge{Kind: graph.EdgeUses, TargetKey: target})
}

// addImport records an import specifier for later path resolution.
func (r *Result) addImport(spec string) {
	if spec != "" {
		r.Raw = append(r.Raw, graph.RawEdge{Kind: graph.EdgeImports, TargetKey: spec})
	}
}

package extract

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/repograph/internal/graph"
)

// pyExtractor extracts symbols and raw edges from Python source files.
// Module-level functions and classes become symbols; functions directly
// inside a class body become methods of that class. Deeper nesting is
// folded into the nearest extracted symbol for call attribution.
type pyExtractor struct{}

func (e *pyExtractor) Extract(root *tree_sitter.Node, source []byte, filePath string) *Result {
	res := &Result{}
	e.walk(root, source, filePath, scope{}, res)
	return res
}

func (e *pyExtractor) walk(node *tree_sitter.Node, source []byte, filePath string, sc scope, res *Result) {
	next := sc

	switch node.Kind() {
	case "function_definition":
		if name := fieldText(node, "name", source); name != "" {
			switch {
			case sc.class != "" && sc.fn == "":
				qn := res.addSymbol(filePath, sc.class, name, graph.SymbolMethod, pyVisibility(name), node)
				res.Raw = append(res.Raw, graph.RawEdge{
					Kind:      graph.EdgeBelongsTo,
					SourceQN:  qn,
					TargetKey: graph.QualifiedName(filePath, "", sc.class),
				})
				next.fn = qn
			case sc.class == "" && sc.fn == "":
				next.fn = res.addSymbol(filePath, "", name, graph.SymbolFunction, pyVisibility(name), node)
			}
			// Nested defs are not symbols; their calls attribute to the
			// enclosing one.
		}

	case "class_definition":
		if name := fieldText(node, "name", source); name != "" && sc.class == "" && sc.fn == "" {
			qn := res.addSymbol(filePath, "", name, graph.SymbolClass, pyVisibility(name), node)
			e.extractSuperclasses(node, source, qn, res)
			next.class = name
		}

	case "import_statement":
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child != nil && (child.Kind() == "dotted_name" || child.Kind() == "aliased_import") {
				spec := child.Utf8Text(source)
				if child.Kind() == "aliased_import" {
					if name := child.ChildByFieldName("name"); name != nil {
						spec = name.Utf8Text(source)
					}
				}
				res.addImport(spec)
			}
		}
		return

	case "import_from_statement":
		// module_name covers both dotted_name and relative_import, so
		// "from .util import x" keeps its leading dots.
		res.addImport(fieldText(node, "module_name", source))
		return

	case "call":
		if fn := node.ChildByFieldName("function"); fn != nil {
			switch fn.Kind() {
			case "identifier", "attribute":
				res.addCall(sc, fn.Utf8Text(source))
			}
		}
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			e.walk(child, source, filePath, next, res)
		}
	}
}

// extractSuperclasses emits INHERITS raw edges for each base in the class
// definition's superclass list.
func (e *pyExtractor) extractSuperclasses(node *tree_sitter.Node, source []byte, classQN string, res *Result) {
	supers := node.ChildByFieldName("superclasses")
	if supers == nil {
		return
	}
	for i := uint(0); i < supers.ChildCount(); i++ {
		child := supers.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "identifier", "attribute":
			res.Raw = append(res.Raw, graph.RawEdge{
				Kind:      graph.EdgeInherits,
				SourceQN:  classQN,
				TargetKey: child.Utf8Text(source),
			})
		}
	}
}

// pyVisibility follows the underscore convention.
func pyVisibility(name string) graph.Visibility {
	if strings.HasPrefix(name, "_") {
		return graph.VisibilityPrivate
	}
	return graph.VisibilityPublic
}

// fieldText returns the text of a named field child, or "".
func fieldText(node *tree_sitter.Node, field string, source []byte) string {
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return child.Utf8Text(source)
}

package extract

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/repograph/internal/graph"
)

// rsExtractor extracts symbols and raw edges from Rust source files.
// Structs, enums, traits, and type aliases map to class symbols. Functions
// inside impl blocks become methods of the impl target; a trait impl also
// emits an INHERITS edge from the type to the trait.
type rsExtractor struct{}

func (e *rsExtractor) Extract(root *tree_sitter.Node, source []byte, filePath string) *Result {
	res := &Result{}
	e.walk(root, source, filePath, scope{}, res)
	return res
}

func (e *rsExtractor) walk(node *tree_sitter.Node, source []byte, filePath string, sc scope, res *Result) {
	next := sc

	switch node.Kind() {
	case "function_item":
		if name := fieldText(node, "name", source); name != "" && sc.fn == "" {
			if sc.class != "" {
				qn := res.addSymbol(filePath, sc.class, name, graph.SymbolMethod, rsVisibility(node), node)
				res.Raw = append(res.Raw, graph.RawEdge{
					Kind:      graph.EdgeBelongsTo,
					SourceQN:  qn,
					TargetKey: graph.QualifiedName(filePath, "", sc.class),
				})
				next.fn = qn
			} else {
				next.fn = res.addSymbol(filePath, "", name, graph.SymbolFunction, rsVisibility(node), node)
			}
		}

	case "struct_item", "enum_item", "trait_item", "type_item":
		if name := fieldText(node, "name", source); name != "" {
			res.addSymbol(filePath, "", name, graph.SymbolClass, rsVisibility(node), node)
			if node.Kind() == "trait_item" {
				next.class = name
			}
		}

	case "impl_item":
		typeName := baseTypeName(fieldText(node, "type", source))
		if trait := fieldText(node, "trait", source); trait != "" && typeName != "" {
			res.Raw = append(res.Raw, graph.RawEdge{
				Kind:      graph.EdgeInherits,
				SourceQN:  graph.QualifiedName(filePath, "", typeName),
				TargetKey: baseTypeName(trait),
			})
		}
		if typeName != "" {
			next.class = typeName
		}

	case "use_declaration":
		if arg := node.ChildByFieldName("argument"); arg != nil {
			res.addImport(arg.Utf8Text(source))
		}
		return

	case "call_expression":
		if fn := node.ChildByFieldName("function"); fn != nil {
			switch fn.Kind() {
			case "identifier", "scoped_identifier", "field_expression":
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

// baseTypeName strips generic parameters: "Vec<T>" -> "Vec".
func baseTypeName(name string) string {
	if idx := strings.IndexByte(name, '<'); idx != -1 {
		name = name[:idx]
	}
	return strings.TrimSpace(name)
}

// rsVisibility checks for a leading pub modifier.
func rsVisibility(node *tree_sitter.Node) graph.Visibility {
	if first := node.Child(0); first != nil && first.Kind() == "visibility_modifier" {
		return graph.VisibilityPublic
	}
	return graph.VisibilityPrivate
}

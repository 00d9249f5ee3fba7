package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/repograph/internal/graph"
)

// goExtractor extracts symbols and raw edges from Go source files. Type
// declarations (structs, interfaces, aliases) are classes in the graph;
// methods attach to their receiver type via BELONGS_TO.
type goExtractor struct{}

func (e *goExtractor) Extract(root *tree_sitter.Node, source []byte, filePath string) *Result {
	res := &Result{}
	e.walk(root, source, filePath, scope{}, res)
	return res
}

func (e *goExtractor) walk(node *tree_sitter.Node, source []byte, filePath string, sc scope, res *Result) {
	next := sc

	switch node.Kind() {
	case "function_declaration":
		if name := fieldText(node, "name", source); name != "" {
			next.fn = res.addSymbol(filePath, "", name, graph.SymbolFunction, goVisibility(name), node)
		}

	case "method_declaration":
		name := fieldText(node, "name", source)
		recv := receiverTypeName(node, source)
		if name != "" {
			qn := res.addSymbol(filePath, recv, name, graph.SymbolMethod, goVisibility(name), node)
			if recv != "" {
				res.Raw = append(res.Raw, graph.RawEdge{
					Kind:      graph.EdgeBelongsTo,
					SourceQN:  qn,
					TargetKey: graph.QualifiedName(filePath, "", recv),
				})
			}
			next.fn = qn
		}

	case "type_declaration":
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child == nil || child.Kind() != "type_spec" {
				continue
			}
			if name := fieldText(child, "name", source); name != "" {
				res.addSymbol(filePath, "", name, graph.SymbolClass, goVisibility(name), child)
			}
		}

	case "import_spec":
		path := node.ChildByFieldName("path")
		if path == nil {
			for i := uint(0); i < node.ChildCount(); i++ {
				if child := node.Child(i); child != nil && child.Kind() == "interpreted_string_literal" {
					path = child
					break
				}
			}
		}
		if path != nil {
			res.addImport(strings.Trim(path.Utf8Text(source), "\""))
		}
		return

	case "call_expression":
		if fn := node.ChildByFieldName("function"); fn != nil {
			switch fn.Kind() {
			case "identifier", "selector_expression":
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

// receiverTypeName pulls the bare type name out of a method receiver,
// stripping pointers and type parameters: "(s *Server[T])" -> "Server".
func receiverTypeName(node *tree_sitter.Node, source []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	text := recv.Utf8Text(source)
	text = strings.Trim(text, "()")
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	name := fields[len(fields)-1]
	name = strings.TrimPrefix(name, "*")
	if idx := strings.IndexByte(name, '['); idx != -1 {
		name = name[:idx]
	}
	return name
}

// goVisibility follows the exported-identifier rule.
func goVisibility(name string) graph.Visibility {
	r, _ := utf8.DecodeRuneInString(name)
	if unicode.IsUpper(r) {
		return graph.VisibilityPublic
	}
	return graph.VisibilityPrivate
}

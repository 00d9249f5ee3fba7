package extract

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dusk-indust/repograph/internal/graph"
)

// tsExtractor extracts symbols and raw edges from TypeScript source files.
// Interfaces, type aliases, and enums map to class symbols; methods inside
// class bodies attach to their class.
type tsExtractor struct{}

func (e *tsExtractor) Extract(root *tree_sitter.Node, source []byte, filePath string) *Result {
	res := &Result{}
	e.walk(root, source, filePath, scope{}, res)
	return res
}

func (e *tsExtractor) walk(node *tree_sitter.Node, source []byte, filePath string, sc scope, res *Result) {
	next := sc

	switch node.Kind() {
	case "function_declaration":
		if name := fieldText(node, "name", source); name != "" && sc.fn == "" {
			next.fn = res.addSymbol(filePath, "", name, graph.SymbolFunction, tsVisibility(node), node)
		}

	case "class_declaration":
		if name := fieldText(node, "name", source); name != "" && sc.class == "" {
			qn := res.addSymbol(filePath, "", name, graph.SymbolClass, tsVisibility(node), node)
			e.extractHeritage(node, source, qn, res)
			next.class = name
		}

	case "interface_declaration", "type_alias_declaration", "enum_declaration":
		if name := fieldText(node, "name", source); name != "" && sc.class == "" {
			res.addSymbol(filePath, "", name, graph.SymbolClass, tsVisibility(node), node)
		}

	case "method_definition":
		if name := fieldText(node, "name", source); name != "" && sc.class != "" && sc.fn == "" {
			qn := res.addSymbol(filePath, sc.class, name, graph.SymbolMethod, graph.VisibilityPublic, node)
			res.Raw = append(res.Raw, graph.RawEdge{
				Kind:      graph.EdgeBelongsTo,
				SourceQN:  qn,
				TargetKey: graph.QualifiedName(filePath, "", sc.class),
			})
			next.fn = qn
		}

	case "lexical_declaration":
		// const foo = () => {} declares a function symbol.
		if sc.class == "" && sc.fn == "" {
			if qn := e.extractArrowFunction(node, source, filePath, res); qn != "" {
				next.fn = qn
			}
		}

	case "import_statement":
		src := node.ChildByFieldName("source")
		if src == nil {
			for i := uint(0); i < node.ChildCount(); i++ {
				if child := node.Child(i); child != nil && child.Kind() == "string" {
					src = child
					break
				}
			}
		}
		if src != nil {
			res.addImport(strings.Trim(src.Utf8Text(source), "\"'`"))
		}
		return

	case "call_expression":
		if fn := node.ChildByFieldName("function"); fn != nil {
			switch fn.Kind() {
			case "identifier", "member_expression":
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

// extractHeritage emits INHERITS edges from the extends clause.
func (e *tsExtractor) extractHeritage(node *tree_sitter.Node, source []byte, classQN string, res *Result) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || child.Kind() != "class_heritage" {
			continue
		}
		for j := uint(0); j < child.ChildCount(); j++ {
			clause := child.Child(j)
			if clause == nil || clause.Kind() != "extends_clause" {
				continue
			}
			for k := uint(0); k < clause.ChildCount(); k++ {
				base := clause.Child(k)
				if base == nil {
					continue
				}
				switch base.Kind() {
				case "identifier", "member_expression":
					res.Raw = append(res.Raw, graph.RawEdge{
						Kind:      graph.EdgeInherits,
						SourceQN:  classQN,
						TargetKey: base.Utf8Text(source),
					})
				}
			}
		}
	}
}

// extractArrowFunction handles "const foo = () => {}" declarations and
// returns the qualified name of the extracted symbol, if any.
func (e *tsExtractor) extractArrowFunction(node *tree_sitter.Node, source []byte, filePath string, res *Result) string {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || child.Kind() != "variable_declarator" {
			continue
		}
		value := child.ChildByFieldName("value")
		if value == nil || value.Kind() != "arrow_function" {
			continue
		}
		if name := fieldText(child, "name", source); name != "" {
			return res.addSymbol(filePath, "", name, graph.SymbolFunction, tsVisibility(node), child)
		}
	}
	return ""
}

// tsVisibility treats exported declarations as public.
func tsVisibility(node *tree_sitter.Node) graph.Visibility {
	if parent := node.Parent(); parent != nil && parent.Kind() == "export_statement" {
		return graph.VisibilityPublic
	}
	return graph.VisibilityPrivate
}

// Filename: javascript/helpers.go
package javascript

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/xkilldash9x/lancet-sast/api/schemas"
)

// nodeContent extracts the string content of a node from the source bytes.
func nodeContent(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return node.Content(source)
}

// nodeLocation converts a tree-sitter node position to a schemas.Location.
// Rows are 0-indexed in tree-sitter; issue locations are 1-indexed.
func nodeLocation(file string, node *sitter.Node) schemas.Location {
	if node == nil {
		return schemas.Location{File: file}
	}
	p := node.StartPoint()
	return schemas.Location{
		File:   file,
		Line:   int(p.Row) + 1,
		Column: int(p.Column),
	}
}

// flattenAccessPath flattens a chain of member and subscript accesses into
// qualified-name segments: `window.location.hash` or `obj['prop']` become
// ["window","location","hash"] and ["obj","prop"]. Chains that are not plain
// static property accesses (computed indices, call results) return nil and
// are treated as opaque.
func flattenAccessPath(node *sitter.Node, source []byte) []string {
	var path []string
	current := node

	for {
		if current == nil {
			return nil
		}

		switch current.Type() {
		case "identifier":
			return append([]string{nodeContent(current, source)}, path...)
		case "this":
			return append([]string{"this"}, path...)

		case "member_expression":
			object := current.ChildByFieldName("object")
			property := current.ChildByFieldName("property")
			if object == nil || property == nil {
				return nil
			}
			if property.Type() != "identifier" && property.Type() != "property_identifier" {
				return nil
			}
			path = append([]string{nodeContent(property, source)}, path...)
			current = object

		case "subscript_expression":
			object := current.ChildByFieldName("object")
			index := current.ChildByFieldName("index")
			if object == nil || index == nil {
				return nil
			}
			// Only static string indices flatten; obj[i] is computed access.
			if index.Type() != "string" {
				return nil
			}
			prop := strings.Trim(nodeContent(index, source), "\"'`")
			path = append([]string{prop}, path...)
			current = object

		default:
			return nil
		}
	}
}

// callArguments collects the expression nodes inside an arguments list,
// skipping punctuation and unwrapping nothing (spread elements come through
// as-is for the caller to approximate).
func callArguments(argsNode *sitter.Node) []*sitter.Node {
	var args []*sitter.Node
	if argsNode == nil {
		return args
	}
	for i := 0; i < int(argsNode.ChildCount()); i++ {
		child := argsNode.Child(i)
		switch child.Type() {
		case "(", ")", ",":
		default:
			args = append(args, child)
		}
	}
	return args
}

// parameterNames extracts the declared parameter identifiers of a function
// node in order. Destructured patterns contribute their nested identifiers
// flattened in source order.
func parameterNames(fnNode *sitter.Node, source []byte) []string {
	params := fnNode.ChildByFieldName("parameters")
	if params == nil {
		params = fnNode.ChildByFieldName("formal_parameters")
	}
	if params == nil {
		// Arrow function with a single bare parameter: x => ...
		if fnNode.Type() == "arrow_function" {
			if p := fnNode.ChildByFieldName("parameter"); p != nil && p.Type() == "identifier" {
				return []string{nodeContent(p, source)}
			}
		}
		return nil
	}

	var names []string
	for i := 0; i < int(params.ChildCount()); i++ {
		child := params.Child(i)
		switch child.Type() {
		case "identifier":
			names = append(names, nodeContent(child, source))
		case "assignment_pattern":
			if left := child.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
				names = append(names, nodeContent(left, source))
			}
		case "rest_parameter":
			if arg := child.ChildByFieldName("argument"); arg != nil && arg.Type() == "identifier" {
				names = append(names, nodeContent(arg, source))
			} else if child.ChildCount() > 1 && child.Child(1).Type() == "identifier" {
				names = append(names, nodeContent(child.Child(1), source))
			}
		}
	}
	return names
}

// isFunctionNode reports whether the node declares a function value.
func isFunctionNode(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	switch node.Type() {
	case "function", "function_expression", "function_declaration", "arrow_function", "generator_function", "generator_function_declaration":
		return true
	}
	return false
}

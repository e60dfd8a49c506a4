// Package pyast wraps the tree-sitter Python grammar with the small set
// of node helpers the artifact strategies share: parsing, decorator
// unwrapping, parameter and string handling, and scope-bounded walks.
package pyast

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Parse builds a syntax tree for src. Callers must Close the tree.
func Parse(ctx context.Context, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())
	return parser.ParseCtx(ctx, nil, src)
}

// Text returns the source text covered by n.
func Text(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(src)
}

// Line is the 1-based line n starts on.
func Line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// EndLine is the 1-based line n ends on.
func EndLine(n *sitter.Node) int {
	return int(n.EndPoint().Row) + 1
}

// NamedChildren collects the named children of n.
func NamedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}

// HasToken reports whether n carries the given anonymous token as a
// direct child, e.g. "async" on a function_definition.
func HasToken(n *sitter.Node, token string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == token {
			return true
		}
	}
	return false
}

// Definition unwraps a decorated_definition into the underlying
// function/class node plus its decorator nodes. For any other node it
// returns the node itself and no decorators.
func Definition(n *sitter.Node) (*sitter.Node, []*sitter.Node) {
	if n == nil || n.Type() != "decorated_definition" {
		return n, nil
	}
	def := n.ChildByFieldName("definition")
	var decorators []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "decorator" {
			decorators = append(decorators, child)
		}
	}
	return def, decorators
}

// DecoratorText renders a decorator node without the leading @.
func DecoratorText(dec *sitter.Node, src []byte) string {
	return strings.TrimPrefix(strings.TrimSpace(Text(dec, src)), "@")
}

// DecoratorName is the decorator's dotted callee without arguments:
// "app.route" for @app.route("/x"), "staticmethod" for @staticmethod.
func DecoratorName(dec *sitter.Node, src []byte) string {
	text := DecoratorText(dec, src)
	if i := strings.IndexByte(text, '('); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// ParamNames lists the parameter names of a function_definition,
// including *args/**kwargs spellings, in declaration order.
func ParamNames(fn *sitter.Node, src []byte) []string {
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	names := make([]string, 0, params.NamedChildCount())
	for _, p := range NamedChildren(params) {
		switch p.Type() {
		case "identifier":
			names = append(names, Text(p, src))
		case "typed_parameter", "typed_default_parameter", "default_parameter":
			if name := p.ChildByFieldName("name"); name != nil {
				names = append(names, Text(name, src))
			} else if id := firstOfType(p, "identifier"); id != nil {
				names = append(names, Text(id, src))
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			names = append(names, Text(p, src))
		case "keyword_separator", "positional_separator":
			// bare * and / markers carry no name
		default:
			if id := firstOfType(p, "identifier"); id != nil {
				names = append(names, Text(id, src))
			}
		}
	}
	return names
}

func firstOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == typ {
			return child
		}
	}
	return nil
}

// CalleeText is the dotted text of a call's function part:
// "db.session.commit" for db.session.commit(...).
func CalleeText(call *sitter.Node, src []byte) string {
	return Text(call.ChildByFieldName("function"), src)
}

// Unquote strips Python string prefixes and quotes from a literal's
// source text. It handles single, double, and triple quoting; it does
// not interpret escape sequences.
func Unquote(s string) string {
	s = strings.TrimSpace(s)
	for len(s) > 0 {
		switch s[0] {
		case 'r', 'b', 'f', 'u', 'R', 'B', 'F', 'U':
			s = s[1:]
			continue
		}
		break
	}
	for _, q := range []string{`"""`, "'''", `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

// VisitSameScope walks the subtree under n depth-first but does not
// descend into nested function or class definitions, so counts stay
// attributed to the enclosing scope. n itself is not visited.
func VisitSameScope(n *sitter.Node, visit func(*sitter.Node)) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		visit(child)
		switch child.Type() {
		case "function_definition", "class_definition":
			continue
		case "decorated_definition":
			continue
		}
		VisitSameScope(child, visit)
	}
}

// KeywordArgument returns the value node of the keyword argument with
// the given name in a call's argument_list, or nil.
func KeywordArgument(call *sitter.Node, src []byte, name string) *sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	for _, a := range NamedChildren(args) {
		if a.Type() != "keyword_argument" {
			continue
		}
		if Text(a.ChildByFieldName("name"), src) == name {
			return a.ChildByFieldName("value")
		}
	}
	return nil
}

// PositionalArguments returns a call's non-keyword argument nodes.
func PositionalArguments(call *sitter.Node) []*sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	var out []*sitter.Node
	for _, a := range NamedChildren(args) {
		if a.Type() == "keyword_argument" {
			continue
		}
		out = append(out, a)
	}
	return out
}

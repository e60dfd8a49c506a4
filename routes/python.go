package routes

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"codeatlas/analysis"
	"codeatlas/internal/crawler"
	"codeatlas/internal/pyast"
)

// pythonStrategy reads Flask and FastAPI registrations from the syntax
// tree: Blueprint/APIRouter assignments become blueprints, route
// decorators on functions become routes grouped by the receiver name.
type pythonStrategy struct{}

func (pythonStrategy) name() string         { return "python-ast" }
func (pythonStrategy) extensions() []string { return []string{".py"} }

// pyRouteVerbs are the decorator attributes that register a handler on
// a Flask app/blueprint or FastAPI app/router.
var pyRouteVerbs = map[string]bool{
	"route":     true,
	"get":       true,
	"post":      true,
	"put":       true,
	"patch":     true,
	"delete":    true,
	"head":      true,
	"options":   true,
	"websocket": true,
}

func (pythonStrategy) extract(ctx context.Context, f crawler.File, src []byte) (fileEntities, error) {
	tree, err := pyast.Parse(ctx, src)
	if err != nil {
		return fileEntities{}, fmt.Errorf("parse python: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return fileEntities{}, fmt.Errorf("python syntax error")
	}

	out := fileEntities{
		file:   f.Rel,
		module: analysis.ModuleName(f.Rel),
	}
	w := &pyRouteWalker{src: src, out: &out}
	w.visitChildren(root)
	return out, nil
}

type pyRouteWalker struct {
	src []byte
	out *fileEntities
}

func (w *pyRouteWalker) visitChildren(n *sitter.Node) {
	for _, child := range pyast.NamedChildren(n) {
		w.visit(child)
	}
}

func (w *pyRouteWalker) visit(n *sitter.Node) {
	switch n.Type() {
	case "expression_statement":
		for _, child := range pyast.NamedChildren(n) {
			if child.Type() == "assignment" {
				w.assignment(child)
			}
		}
	case "decorated_definition":
		def, decs := pyast.Definition(n)
		if def != nil && def.Type() == "function_definition" {
			w.handler(def, decs)
		}
		if def != nil && def.Type() == "class_definition" {
			if body := def.ChildByFieldName("body"); body != nil {
				w.visitChildren(body)
			}
		}
		return
	case "class_definition", "function_definition":
		if body := n.ChildByFieldName("body"); body != nil {
			w.visitChildren(body)
		}
		return
	}
	w.visitChildren(n)
}

// assignment records `bp = Blueprint("users", __name__, url_prefix=...)`
// and `router = APIRouter(prefix=...)` declarations.
func (w *pyRouteWalker) assignment(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left == nil || right == nil || left.Type() != "identifier" || right.Type() != "call" {
		return
	}
	callee := pyast.CalleeText(right, w.src)
	if i := strings.LastIndexByte(callee, '.'); i >= 0 {
		callee = callee[i+1:]
	}

	local := pyast.Text(left, w.src)
	line := pyast.Line(n)
	switch callee {
	case "Blueprint":
		name := local
		if args := pyast.PositionalArguments(right); len(args) > 0 && args[0].Type() == "string" {
			name = pyast.Unquote(pyast.Text(args[0], w.src))
		}
		prefix := ""
		if v := pyast.KeywordArgument(right, w.src, "url_prefix"); v != nil {
			prefix = pyast.Unquote(pyast.Text(v, w.src))
		}
		w.declareBlueprint(name, prefix, line, local)
	case "APIRouter":
		prefix := ""
		if v := pyast.KeywordArgument(right, w.src, "prefix"); v != nil {
			prefix = pyast.Unquote(pyast.Text(v, w.src))
		}
		w.declareBlueprint(local, prefix, line, local)
	}
}

func (w *pyRouteWalker) declareBlueprint(name, prefix string, line int, local string) {
	w.out.blueprints = append(w.out.blueprints, blueprintDecl{
		bp: Blueprint{
			ID:        entityID(w.out.module, name, line),
			Name:      name,
			URLPrefix: prefix,
			File:      w.out.file,
			Line:      line,
		},
		local: local,
	})
}

// handler turns each route decorator on a function into a route. The
// remaining decorators are scanned for auth markers that apply to all
// of the function's routes.
func (w *pyRouteWalker) handler(fn *sitter.Node, decs []*sitter.Node) {
	handlerName := pyast.Text(fn.ChildByFieldName("name"), w.src)

	var markers []string
	type reg struct {
		dec   *sitter.Node
		group string
		verb  string
		call  *sitter.Node
	}
	var regs []reg
	for _, dec := range decs {
		name := pyast.DecoratorName(dec, w.src)
		parts := strings.Split(name, ".")
		last := parts[len(parts)-1]
		if len(parts) == 2 && pyRouteVerbs[last] {
			regs = append(regs, reg{dec: dec, group: parts[0], verb: last, call: decoratorCall(dec)})
			continue
		}
		markers = append(markers, pyast.DecoratorText(dec, w.src))
	}

	sec := securityFrom(markers)
	for _, r := range regs {
		route := Route{
			Methods:     []string{strings.ToUpper(r.verb)},
			HandlerName: handlerName,
			File:        w.out.file,
			Line:        pyast.Line(r.dec),
			Security:    sec,
		}
		if r.call != nil {
			if args := pyast.PositionalArguments(r.call); len(args) > 0 && args[0].Type() == "string" {
				route.URLPattern = pyast.Unquote(pyast.Text(args[0], w.src))
			}
			if r.verb == "route" {
				route.Methods = routeMethods(r.call, w.src)
			}
		} else if r.verb == "route" {
			route.Methods = []string{"GET"}
		}
		route.ID = entityID(w.out.module, handlerName, route.Line)
		route.PathParams = pyPathParams(route.URLPattern, fn, w.src)
		w.out.routes = append(w.out.routes, routeDecl{route: route, group: r.group})
	}
}

func decoratorCall(dec *sitter.Node) *sitter.Node {
	for _, child := range pyast.NamedChildren(dec) {
		if child.Type() == "call" {
			return child
		}
	}
	return nil
}

// routeMethods reads the methods=[...] keyword of a @x.route decorator;
// Flask registers GET when the keyword is absent.
func routeMethods(call *sitter.Node, src []byte) []string {
	v := pyast.KeywordArgument(call, src, "methods")
	if v == nil || v.Type() != "list" {
		return []string{"GET"}
	}
	var methods []string
	for _, item := range pyast.NamedChildren(v) {
		if item.Type() == "string" {
			methods = append(methods, strings.ToUpper(pyast.Unquote(pyast.Text(item, src))))
		}
	}
	if len(methods) == 0 {
		return []string{"GET"}
	}
	return methods
}

var flaskParamRe = regexp.MustCompile(`<(?:(\w+):)?(\w+)>`)

// pyPathParams reads Flask `<converter:name>` placeholders or FastAPI
// `{name}` placeholders. FastAPI parameter types come from the handler
// signature's annotations.
func pyPathParams(pattern string, fn *sitter.Node, src []byte) []PathParam {
	var params []PathParam
	for _, m := range flaskParamRe.FindAllStringSubmatch(pattern, -1) {
		params = append(params, PathParam{Name: m[2], Type: flaskConverter(m[1])})
	}
	if params != nil {
		return params
	}
	annotations := paramAnnotations(fn, src)
	for _, m := range braceParamRe.FindAllStringSubmatch(pattern, -1) {
		params = append(params, PathParam{Name: m[1], Type: annotationType(annotations[m[1]])})
	}
	return params
}

func flaskConverter(conv string) string {
	switch conv {
	case "int", "float", "path", "uuid":
		return conv
	}
	return "string"
}

// paramAnnotations maps a function's parameter names to their
// annotation text.
func paramAnnotations(fn *sitter.Node, src []byte) map[string]string {
	out := make(map[string]string)
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return out
	}
	for _, p := range pyast.NamedChildren(params) {
		if p.Type() != "typed_parameter" && p.Type() != "typed_default_parameter" {
			continue
		}
		typ := pyast.Text(p.ChildByFieldName("type"), src)
		name := ""
		if n := p.ChildByFieldName("name"); n != nil {
			name = pyast.Text(n, src)
		} else if kids := pyast.NamedChildren(p); len(kids) > 0 && kids[0].Type() == "identifier" {
			name = pyast.Text(kids[0], src)
		}
		if name != "" {
			out[name] = typ
		}
	}
	return out
}

func annotationType(annotation string) string {
	switch annotation {
	case "int":
		return "int"
	case "float":
		return "float"
	case "UUID", "uuid.UUID":
		return "uuid"
	}
	return "string"
}

package structure

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"codeatlas/analysis"
	"codeatlas/internal/crawler"
	"codeatlas/internal/pyast"
)

// pythonStrategy walks the syntax tree, so decorated and nested classes
// are attributed exactly. Instance attributes assigned in __init__
// count as properties next to the class-level ones.
type pythonStrategy struct{}

func (pythonStrategy) name() string         { return "python-ast" }
func (pythonStrategy) extensions() []string { return []string{".py"} }

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

	out := fileEntities{file: f.Rel, module: analysis.ModuleName(f.Rel)}
	w := &pyStructWalker{src: src, out: &out}
	w.visitChildren(root)
	return out, nil
}

type pyStructWalker struct {
	src []byte
	out *fileEntities
}

func (w *pyStructWalker) visitChildren(n *sitter.Node) {
	for _, c := range pyast.NamedChildren(n) {
		w.visit(c)
	}
}

func (w *pyStructWalker) visit(n *sitter.Node) {
	switch n.Type() {
	case "import_statement":
		w.importStatement(n)
	case "import_from_statement":
		w.importFrom(n)
	case "decorated_definition":
		def, decs := pyast.Definition(n)
		if def != nil && def.Type() == "class_definition" {
			w.class(def, decs)
		}
	case "class_definition":
		w.class(n, nil)
	case "function_definition":
		// classes declared inside factory functions still belong to
		// the module
		if body := n.ChildByFieldName("body"); body != nil {
			w.visitChildren(body)
		}
	default:
		w.visitChildren(n)
	}
}

func (w *pyStructWalker) class(def *sitter.Node, decorators []*sitter.Node) {
	name := pyast.Text(def.ChildByFieldName("name"), w.src)
	if name == "" {
		return
	}
	line := pyast.Line(def)
	cl := Class{
		ID:     entityID(w.out.module, name, line),
		Name:   name,
		Module: w.out.module,
		File:   w.out.file,
		Line:   line,
	}
	for _, d := range decorators {
		cl.Decorators = append(cl.Decorators, pyast.DecoratorText(d, w.src))
	}

	if args := def.ChildByFieldName("superclasses"); args != nil {
		for _, a := range pyast.NamedChildren(args) {
			if a.Type() == "keyword_argument" {
				if pyast.Text(a.ChildByFieldName("name"), w.src) == "metaclass" &&
					strings.Contains(pyast.Text(a.ChildByFieldName("value"), w.src), "ABCMeta") {
					cl.IsAbstract = true
				}
				continue
			}
			base := strings.TrimSpace(pyast.Text(a, w.src))
			if base == "" {
				continue
			}
			cl.BaseClasses = append(cl.BaseClasses, base)
			switch simpleTypeName(stripTypeArgs(base)) {
			case "ABC", "ABCMeta":
				cl.IsAbstract = true
			case "Protocol":
				cl.IsInterface = true
			}
		}
	}

	type nestedClass struct {
		def  *sitter.Node
		decs []*sitter.Node
	}
	var nested []nestedClass
	if body := def.ChildByFieldName("body"); body != nil {
		for _, stmt := range pyast.NamedChildren(body) {
			switch stmt.Type() {
			case "decorated_definition":
				d, decs := pyast.Definition(stmt)
				if d == nil {
					continue
				}
				switch d.Type() {
				case "function_definition":
					w.method(&cl, d, decs)
				case "class_definition":
					nested = append(nested, nestedClass{def: d, decs: decs})
				}
			case "function_definition":
				w.method(&cl, stmt, nil)
			case "class_definition":
				nested = append(nested, nestedClass{def: stmt})
			case "expression_statement":
				w.classAttribute(&cl, stmt)
			}
		}
	}

	w.out.classes = append(w.out.classes, cl)
	for _, nc := range nested {
		w.class(nc.def, nc.decs)
	}
}

func (w *pyStructWalker) method(cl *Class, def *sitter.Node, decorators []*sitter.Node) {
	name := pyast.Text(def.ChildByFieldName("name"), w.src)
	if name == "" {
		return
	}
	m := Method{
		Name:       name,
		Line:       pyast.Line(def),
		Parameters: pyast.ParamNames(def, w.src),
		IsPrivate:  pyPrivate(name),
	}
	for _, d := range decorators {
		switch simpleTypeName(pyast.DecoratorName(d, w.src)) {
		case "staticmethod", "classmethod":
			m.IsStatic = true
		case "abstractmethod":
			cl.IsAbstract = true
		}
	}
	cl.Methods = append(cl.Methods, m)
	if name == "__init__" {
		w.initAttributes(cl, def)
	}
}

// pyPrivate follows the underscore convention; dunder names like
// __init__ stay public.
func pyPrivate(name string) bool {
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return false
	}
	return strings.HasPrefix(name, "_")
}

// classAttribute records a class-level assignment or bare annotation as
// a property.
func (w *pyStructWalker) classAttribute(cl *Class, stmt *sitter.Node) {
	n := stmt.NamedChild(0)
	if n == nil || n.Type() != "assignment" {
		return
	}
	left := n.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return
	}
	w.addProperty(cl, Property{
		Name: pyast.Text(left, w.src),
		Type: strings.TrimSpace(pyast.Text(n.ChildByFieldName("type"), w.src)),
		Line: pyast.Line(n),
	})
}

// initAttributes records self assignments in __init__ as properties, so
// the usual idiom of declaring state in the constructor shows up on the
// class.
func (w *pyStructWalker) initAttributes(cl *Class, def *sitter.Node) {
	body := def.ChildByFieldName("body")
	if body == nil {
		return
	}
	pyast.VisitSameScope(body, func(n *sitter.Node) {
		if n.Type() != "assignment" {
			return
		}
		left := n.ChildByFieldName("left")
		if left == nil || left.Type() != "attribute" {
			return
		}
		obj := left.ChildByFieldName("object")
		if obj == nil || pyast.Text(obj, w.src) != "self" {
			return
		}
		w.addProperty(cl, Property{
			Name: pyast.Text(left.ChildByFieldName("attribute"), w.src),
			Type: strings.TrimSpace(pyast.Text(n.ChildByFieldName("type"), w.src)),
			Line: pyast.Line(n),
		})
	})
}

// addProperty keeps the first declaration when a name repeats, a class
// body annotation wins over the __init__ assignment that fills it.
func (w *pyStructWalker) addProperty(cl *Class, p Property) {
	if p.Name == "" {
		return
	}
	for _, have := range cl.Properties {
		if have.Name == p.Name {
			return
		}
	}
	cl.Properties = append(cl.Properties, p)
}

func (w *pyStructWalker) importStatement(n *sitter.Node) {
	for _, item := range pyast.NamedChildren(n) {
		switch item.Type() {
		case "dotted_name":
			w.addImport(pyast.Text(item, w.src), nil, pyast.Line(n))
		case "aliased_import":
			w.addImport(pyast.Text(item.ChildByFieldName("name"), w.src), nil, pyast.Line(n))
		}
	}
}

func (w *pyStructWalker) importFrom(n *sitter.Node) {
	kids := pyast.NamedChildren(n)
	if len(kids) == 0 {
		return
	}
	source := pyast.Text(kids[0], w.src)
	var names []string
	for _, item := range kids[1:] {
		switch item.Type() {
		case "dotted_name":
			names = append(names, pyast.Text(item, w.src))
		case "aliased_import":
			names = append(names, pyast.Text(item.ChildByFieldName("name"), w.src))
		case "wildcard_import":
			names = append(names, "*")
		}
	}
	w.addImport(source, names, pyast.Line(n))
}

func (w *pyStructWalker) addImport(source string, names []string, line int) {
	if source == "" {
		return
	}
	w.out.imports = append(w.out.imports, Import{
		Module: w.out.module,
		Source: source,
		Names:  names,
		Line:   line,
	})
}

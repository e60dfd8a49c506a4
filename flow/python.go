package flow

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"codeatlas/analysis"
	"codeatlas/internal/crawler"
	"codeatlas/internal/pyast"
)

// pythonStrategy walks the syntax tree, so nested functions, decorators
// and comprehension scopes are attributed exactly. Calls and branches
// found at class or module level have no enclosing function and are
// dropped.
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

	out := fileEntities{
		file:    f.Rel,
		module:  analysis.ModuleName(f.Rel),
		imports: newFileImports(),
	}
	w := &pyWalker{src: src, out: &out}
	w.visitChildren(root, pyCtx{fnIdx: -1})
	return out, nil
}

// pyCtx is the walk state: which function encloses the current node and
// whether it sits inside a branch arm or a loop body.
type pyCtx struct {
	fnIdx       int
	inClass     bool
	conditional bool
	loop        bool
}

type pyWalker struct {
	src []byte
	out *fileEntities
}

func (w *pyWalker) visit(n *sitter.Node, ctx pyCtx) {
	switch n.Type() {
	case "import_statement":
		w.importStatement(n)
	case "import_from_statement":
		w.importFrom(n)
	case "decorated_definition":
		def, decs := pyast.Definition(n)
		if def == nil {
			return
		}
		switch def.Type() {
		case "function_definition":
			w.declare(def, decs, ctx.inClass)
		case "class_definition":
			w.class(def)
		}
	case "function_definition":
		w.declare(n, nil, ctx.inClass)
	case "class_definition":
		w.class(n)
	case "if_statement":
		w.ifStatement(n, ctx)
	case "for_statement":
		w.forStatement(n, ctx)
	case "while_statement":
		w.whileStatement(n, ctx)
	case "try_statement":
		w.tryStatement(n, ctx)
	case "call":
		w.call(n, ctx)
		w.visitChildren(n, ctx)
	case "conditional_expression":
		w.bump(ctx)
		inner := ctx
		inner.conditional = true
		w.visitChildren(n, inner)
	case "boolean_operator", "for_in_clause", "if_clause":
		w.bump(ctx)
		w.visitChildren(n, ctx)
	default:
		w.visitChildren(n, ctx)
	}
}

func (w *pyWalker) visitChildren(n *sitter.Node, ctx pyCtx) {
	for _, c := range pyast.NamedChildren(n) {
		w.visit(c, ctx)
	}
}

// bump adds one decision point to the enclosing function.
func (w *pyWalker) bump(ctx pyCtx) {
	if ctx.fnIdx >= 0 {
		w.out.functions[ctx.fnIdx].Complexity++
	}
}

func (w *pyWalker) declare(def *sitter.Node, decorators []*sitter.Node, isMethod bool) {
	name := pyast.Text(def.ChildByFieldName("name"), w.src)
	if name == "" {
		return
	}
	line := pyast.Line(def)
	fn := Function{
		ID:         functionID(w.out.module, name, line),
		Name:       name,
		Module:     w.out.module,
		File:       w.out.file,
		LineStart:  line,
		LineEnd:    pyast.EndLine(def),
		Parameters: pyast.ParamNames(def, w.src),
		Complexity: 1,
		IsAsync:    pyast.HasToken(def, "async"),
		IsMethod:   isMethod,
	}
	for _, d := range decorators {
		fn.Decorators = append(fn.Decorators, pyast.DecoratorText(d, w.src))
	}
	w.out.functions = append(w.out.functions, fn)

	if body := def.ChildByFieldName("body"); body != nil {
		w.visitChildren(body, pyCtx{fnIdx: len(w.out.functions) - 1})
	}
}

func (w *pyWalker) class(def *sitter.Node) {
	if body := def.ChildByFieldName("body"); body != nil {
		w.visitChildren(body, pyCtx{fnIdx: -1, inClass: true})
	}
}

func (w *pyWalker) call(n *sitter.Node, ctx pyCtx) {
	if ctx.fnIdx < 0 {
		return
	}
	callee := strings.TrimSpace(pyast.CalleeText(n, w.src))
	if callee == "" {
		return
	}
	w.out.calls = append(w.out.calls, rawCall{
		callerID:    w.out.functions[ctx.fnIdx].ID,
		callee:      callee,
		line:        pyast.Line(n),
		conditional: ctx.conditional,
		loop:        ctx.loop,
	})
}

func (w *pyWalker) flow(n *sitter.Node, ctx pyCtx, flowType, condition string, branches []string) {
	if ctx.fnIdx < 0 {
		return
	}
	w.out.flows = append(w.out.flows, ControlFlowNode{
		ParentFunctionID: w.out.functions[ctx.fnIdx].ID,
		FlowType:         flowType,
		Condition:        condense(condition),
		Line:             pyast.Line(n),
		Branches:         branches,
	})
}

func (w *pyWalker) ifStatement(n *sitter.Node, ctx pyCtx) {
	w.bump(ctx)
	branches := []string{"if"}
	var elifs []*sitter.Node
	var elseClause *sitter.Node
	for _, c := range pyast.NamedChildren(n) {
		switch c.Type() {
		case "elif_clause":
			branches = append(branches, "elif")
			elifs = append(elifs, c)
		case "else_clause":
			branches = append(branches, "else")
			elseClause = c
		}
	}
	w.flow(n, ctx, FlowIfElse, pyast.Text(n.ChildByFieldName("condition"), w.src), branches)

	if cond := n.ChildByFieldName("condition"); cond != nil {
		w.visit(cond, ctx)
	}
	arm := ctx
	arm.conditional = true
	if cons := n.ChildByFieldName("consequence"); cons != nil {
		w.visitChildren(cons, arm)
	}
	for _, e := range elifs {
		w.bump(ctx)
		if cond := e.ChildByFieldName("condition"); cond != nil {
			w.visit(cond, arm)
		}
		if cons := e.ChildByFieldName("consequence"); cons != nil {
			w.visitChildren(cons, arm)
		}
	}
	if elseClause != nil {
		if body := elseClause.ChildByFieldName("body"); body != nil {
			w.visitChildren(body, arm)
		}
	}
}

func (w *pyWalker) forStatement(n *sitter.Node, ctx pyCtx) {
	w.bump(ctx)
	left := pyast.Text(n.ChildByFieldName("left"), w.src)
	right := pyast.Text(n.ChildByFieldName("right"), w.src)
	branches := []string{"body"}
	elseClause := childOfType(n, "else_clause")
	if elseClause != nil {
		branches = append(branches, "else")
	}
	w.flow(n, ctx, FlowForLoop, left+" in "+right, branches)

	if r := n.ChildByFieldName("right"); r != nil {
		w.visit(r, ctx)
	}
	body := ctx
	body.loop = true
	if b := n.ChildByFieldName("body"); b != nil {
		w.visitChildren(b, body)
	}
	w.elseArm(elseClause, ctx)
}

func (w *pyWalker) whileStatement(n *sitter.Node, ctx pyCtx) {
	w.bump(ctx)
	branches := []string{"body"}
	elseClause := childOfType(n, "else_clause")
	if elseClause != nil {
		branches = append(branches, "else")
	}
	w.flow(n, ctx, FlowWhileLoop, pyast.Text(n.ChildByFieldName("condition"), w.src), branches)

	if cond := n.ChildByFieldName("condition"); cond != nil {
		w.visit(cond, ctx)
	}
	body := ctx
	body.loop = true
	if b := n.ChildByFieldName("body"); b != nil {
		w.visitChildren(b, body)
	}
	w.elseArm(elseClause, ctx)
}

func (w *pyWalker) tryStatement(n *sitter.Node, ctx pyCtx) {
	branches := make([]string, 0, 2)
	var handlers []*sitter.Node
	var elseClause, finallyClause *sitter.Node
	for _, c := range pyast.NamedChildren(n) {
		switch c.Type() {
		case "except_clause":
			w.bump(ctx)
			label := "except"
			if t := exceptType(c, w.src); t != "" {
				label = t
			}
			branches = append(branches, label)
			handlers = append(handlers, c)
		case "else_clause":
			branches = append(branches, "else")
			elseClause = c
		case "finally_clause":
			branches = append(branches, "finally")
			finallyClause = c
		}
	}
	w.flow(n, ctx, FlowTryExcept, "", branches)

	if body := n.ChildByFieldName("body"); body != nil {
		w.visitChildren(body, ctx)
	}
	arm := ctx
	arm.conditional = true
	for _, h := range handlers {
		for _, c := range pyast.NamedChildren(h) {
			if c.Type() == "block" {
				w.visitChildren(c, arm)
			}
		}
	}
	w.elseArm(elseClause, ctx)
	if finallyClause != nil {
		for _, c := range pyast.NamedChildren(finallyClause) {
			if c.Type() == "block" {
				w.visitChildren(c, ctx)
			}
		}
	}
}

func (w *pyWalker) elseArm(clause *sitter.Node, ctx pyCtx) {
	if clause == nil {
		return
	}
	arm := ctx
	arm.conditional = true
	if body := clause.ChildByFieldName("body"); body != nil {
		w.visitChildren(body, arm)
	}
}

// exceptType is the handled exception expression of an except clause,
// "ValueError" or "(TypeError, KeyError)", empty for a bare except.
func exceptType(clause *sitter.Node, src []byte) string {
	for _, c := range pyast.NamedChildren(clause) {
		if c.Type() == "block" {
			break
		}
		if c.Type() == "as_pattern" {
			if v := c.NamedChild(0); v != nil {
				return condense(pyast.Text(v, src))
			}
			continue
		}
		return condense(pyast.Text(c, src))
	}
	return ""
}

func childOfType(n *sitter.Node, typ string) *sitter.Node {
	for _, c := range pyast.NamedChildren(n) {
		if c.Type() == typ {
			return c
		}
	}
	return nil
}

func (w *pyWalker) importStatement(n *sitter.Node) {
	for _, item := range pyast.NamedChildren(n) {
		switch item.Type() {
		case "dotted_name":
			// import app.utils binds the top-level name; call sites
			// spell out the rest of the path themselves.
			head := firstSegment(pyast.Text(item, w.src))
			w.out.imports.addModule(head, head)
		case "aliased_import":
			name := pyast.Text(item.ChildByFieldName("name"), w.src)
			alias := pyast.Text(item.ChildByFieldName("alias"), w.src)
			w.out.imports.addModule(alias, name)
		}
	}
}

func (w *pyWalker) importFrom(n *sitter.Node) {
	kids := pyast.NamedChildren(n)
	if len(kids) == 0 {
		return
	}
	mod := strings.TrimLeft(pyast.Text(kids[0], w.src), ".")
	for _, item := range kids[1:] {
		switch item.Type() {
		case "dotted_name":
			name := pyast.Text(item, w.src)
			w.registerFromImport(name, mod, name)
		case "aliased_import":
			orig := pyast.Text(item.ChildByFieldName("name"), w.src)
			alias := pyast.Text(item.ChildByFieldName("alias"), w.src)
			w.registerFromImport(alias, mod, orig)
		}
	}
}

// registerFromImport records a from-import under both readings: the
// imported name may be a symbol inside the module or a submodule of it.
func (w *pyWalker) registerFromImport(local, mod, orig string) {
	if mod == "" {
		w.out.imports.addModule(local, orig)
		return
	}
	w.out.imports.addSymbol(local, mod, orig)
	w.out.imports.addModule(local, mod+"."+orig)
}

func firstSegment(s string) string {
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		return s[:dot]
	}
	return s
}

// condense flattens a possibly multi-line expression to one line.
func condense(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package schema

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"codeatlas/internal/crawler"
	"codeatlas/internal/pyast"
)

// pythonStrategy reads SQLAlchemy and Django model declarations from
// the syntax tree. Both ORM dialects can appear in one project; each
// class is classified by its base list.
type pythonStrategy struct{}

func (pythonStrategy) name() string         { return "python-orm" }
func (pythonStrategy) extensions() []string { return []string{".py"} }
func (pythonStrategy) readsContent() bool   { return true }

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

	var out fileEntities
	for _, child := range pyast.NamedChildren(root) {
		def, _ := pyast.Definition(child)
		if def == nil || def.Type() != "class_definition" {
			continue
		}
		className := pyast.Text(def.ChildByFieldName("name"), src)
		body := def.ChildByFieldName("body")
		if className == "" || body == nil {
			continue
		}
		bases := classBases(def, src)
		switch {
		case isSQLAlchemyModel(bases, body, src):
			if t, ok := sqlalchemyTable(className, body, f, def, src); ok {
				out.tables = append(out.tables, t)
			}
		case isDjangoModel(bases):
			if t, ok := djangoTable(className, body, f, def, src); ok {
				out.tables = append(out.tables, t)
			}
		}
	}
	return out, nil
}

func classBases(def *sitter.Node, src []byte) []string {
	args := def.ChildByFieldName("superclasses")
	if args == nil {
		return nil
	}
	var bases []string
	for _, a := range pyast.NamedChildren(args) {
		if a.Type() == "keyword_argument" {
			continue
		}
		bases = append(bases, pyast.Text(a, src))
	}
	return bases
}

func isSQLAlchemyModel(bases []string, body *sitter.Node, src []byte) bool {
	for _, b := range bases {
		if b == "db.Model" || strings.Contains(b, "Base") {
			return true
		}
	}
	return hasTablename(body, src)
}

func isDjangoModel(bases []string) bool {
	for _, b := range bases {
		if b == "models.Model" || b == "Model" {
			return true
		}
	}
	return false
}

func hasTablename(body *sitter.Node, src []byte) bool {
	for _, stmt := range pyast.NamedChildren(body) {
		if assign := assignmentOf(stmt); assign != nil {
			if pyast.Text(assign.ChildByFieldName("left"), src) == "__tablename__" {
				return true
			}
		}
	}
	return false
}

func assignmentOf(stmt *sitter.Node) *sitter.Node {
	if stmt.Type() != "expression_statement" {
		return nil
	}
	for _, c := range pyast.NamedChildren(stmt) {
		if c.Type() == "assignment" {
			return c
		}
	}
	return nil
}

func sqlalchemyTable(className string, body *sitter.Node, f crawler.File, def *sitter.Node, src []byte) (Table, bool) {
	t := Table{
		Name: defaultTableName(className),
		File: f.Rel,
		Line: pyast.Line(def),
	}
	named := false
	var indexed []string

	for _, stmt := range pyast.NamedChildren(body) {
		assign := assignmentOf(stmt)
		if assign == nil {
			continue
		}
		left := pyast.Text(assign.ChildByFieldName("left"), src)
		right := assign.ChildByFieldName("right")
		switch {
		case left == "__tablename__" && right != nil:
			t.Name = pyast.Unquote(pyast.Text(right, src))
			named = true
		case left == "__table_args__" && right != nil:
			collectTableArgs(right, src, &t)
		case right != nil && right.Type() == "call":
			col, fk, isIndexed, ok := sqlalchemyColumn(left, assign, right, src)
			if !ok {
				continue
			}
			t.Columns = append(t.Columns, col)
			if fk != nil {
				t.ForeignKeys = append(t.ForeignKeys, *fk)
			}
			if isIndexed {
				indexed = append(indexed, col.Name)
			}
		}
	}

	for _, col := range indexed {
		t.Indexes = append(t.Indexes, Index{
			Name:    fmt.Sprintf("ix_%s_%s", t.Name, col),
			Columns: []string{col},
		})
	}
	return t, len(t.Columns) > 0 || named
}

func sqlalchemyColumn(attr string, assign, call *sitter.Node, src []byte) (Column, *ForeignKey, bool, bool) {
	callee := lastSegment(pyast.CalleeText(call, src))
	if callee != "Column" && callee != "mapped_column" {
		return Column{}, nil, false, false
	}

	col := Column{Name: attr}
	var fk *ForeignKey
	indexed := false
	nullableSet := false

	for _, arg := range pyast.PositionalArguments(call) {
		switch arg.Type() {
		case "string":
			col.Name = pyast.Unquote(pyast.Text(arg, src))
		case "call":
			inner := lastSegment(pyast.CalleeText(arg, src))
			if inner == "ForeignKey" {
				fk = foreignKeyRef(col.Name, arg, src)
			} else if col.Type == "" {
				col.Type = inner
			}
		case "identifier", "attribute":
			if col.Type == "" {
				col.Type = lastSegment(pyast.Text(arg, src))
			}
		}
	}

	if args := call.ChildByFieldName("arguments"); args != nil {
		for _, a := range pyast.NamedChildren(args) {
			if a.Type() != "keyword_argument" {
				continue
			}
			name := pyast.Text(a.ChildByFieldName("name"), src)
			value := pyast.Text(a.ChildByFieldName("value"), src)
			switch name {
			case "primary_key":
				col.PrimaryKey = value == "True"
			case "unique":
				col.Unique = value == "True"
			case "nullable":
				col.Nullable = value == "True"
				nullableSet = true
			case "index":
				indexed = value == "True"
			}
		}
	}

	if col.Type == "" {
		col.Type = annotatedType(assign, src)
	}
	if !nullableSet {
		col.Nullable = !col.PrimaryKey
	}
	if fk != nil {
		fk.Column = col.Name
	}
	return col, fk, indexed, true
}

// annotatedType recovers the column type from a Mapped[...] annotation
// when mapped_column carries no positional type argument.
func annotatedType(assign *sitter.Node, src []byte) string {
	ann := pyast.Text(assign.ChildByFieldName("type"), src)
	if ann == "" {
		return ""
	}
	if open := strings.IndexByte(ann, '['); open >= 0 && strings.HasSuffix(ann, "]") {
		if strings.HasPrefix(ann, "Mapped") {
			return strings.TrimSpace(ann[open+1 : len(ann)-1])
		}
	}
	return ann
}

func foreignKeyRef(column string, fkCall *sitter.Node, src []byte) *ForeignKey {
	pos := pyast.PositionalArguments(fkCall)
	if len(pos) == 0 || pos[0].Type() != "string" {
		return nil
	}
	target := pyast.Unquote(pyast.Text(pos[0], src))
	fk := &ForeignKey{Column: column, ReferencesColumn: "id"}
	if dot := strings.LastIndexByte(target, '.'); dot >= 0 {
		fk.ReferencesTable = target[:dot]
		fk.ReferencesColumn = target[dot+1:]
	} else {
		fk.ReferencesTable = target
	}
	return fk
}

// collectTableArgs pulls Index and UniqueConstraint declarations out of
// a __table_args__ tuple.
func collectTableArgs(right *sitter.Node, src []byte, t *Table) {
	handle := func(n *sitter.Node) {
		if n.Type() != "call" {
			return
		}
		callee := lastSegment(pyast.CalleeText(n, src))
		if callee != "Index" && callee != "UniqueConstraint" {
			return
		}
		idx := Index{Unique: callee == "UniqueConstraint"}
		for _, arg := range pyast.PositionalArguments(n) {
			if arg.Type() != "string" {
				continue
			}
			text := pyast.Unquote(pyast.Text(arg, src))
			if callee == "Index" && idx.Name == "" {
				idx.Name = text
				continue
			}
			idx.Columns = append(idx.Columns, text)
		}
		if name := pyast.KeywordArgument(n, src, "name"); name != nil {
			idx.Name = pyast.Unquote(pyast.Text(name, src))
		}
		if idx.Name == "" {
			idx.Name = "uq_" + strings.Join(idx.Columns, "_")
		}
		if len(idx.Columns) > 0 {
			t.Indexes = append(t.Indexes, idx)
		}
	}
	handle(right)
	pyast.VisitSameScope(right, handle)
}

func djangoTable(className string, body *sitter.Node, f crawler.File, def *sitter.Node, src []byte) (Table, bool) {
	t := Table{
		Name: strings.ToLower(className),
		File: f.Rel,
		Line: pyast.Line(def),
	}

	for _, stmt := range pyast.NamedChildren(body) {
		if assign := assignmentOf(stmt); assign != nil {
			left := pyast.Text(assign.ChildByFieldName("left"), src)
			right := assign.ChildByFieldName("right")
			if right == nil || right.Type() != "call" {
				continue
			}
			col, fk, ok := djangoColumn(className, left, right, src)
			if !ok {
				continue
			}
			t.Columns = append(t.Columns, col)
			if fk != nil {
				t.ForeignKeys = append(t.ForeignKeys, *fk)
			}
			continue
		}
		// class Meta: db_table override
		meta, _ := pyast.Definition(stmt)
		if meta != nil && meta.Type() == "class_definition" &&
			pyast.Text(meta.ChildByFieldName("name"), src) == "Meta" {
			if metaBody := meta.ChildByFieldName("body"); metaBody != nil {
				for _, ms := range pyast.NamedChildren(metaBody) {
					if ma := assignmentOf(ms); ma != nil &&
						pyast.Text(ma.ChildByFieldName("left"), src) == "db_table" {
						t.Name = pyast.Unquote(pyast.Text(ma.ChildByFieldName("right"), src))
					}
				}
			}
		}
	}
	return t, len(t.Columns) > 0
}

func djangoColumn(className, attr string, call *sitter.Node, src []byte) (Column, *ForeignKey, bool) {
	callee := lastSegment(pyast.CalleeText(call, src))
	switch {
	case callee == "ForeignKey" || callee == "OneToOneField":
		col := Column{
			Name:   attr + "_id",
			Type:   callee,
			Unique: callee == "OneToOneField",
		}
		ref := djangoRelationTarget(className, call, src)
		if ref == "" {
			return Column{}, nil, false
		}
		applyDjangoKeywords(&col, call, src)
		fk := &ForeignKey{Column: col.Name, ReferencesTable: ref, ReferencesColumn: "id"}
		return col, fk, true
	case callee == "ManyToManyField":
		// join table, not a column on this model
		return Column{}, nil, false
	case strings.HasSuffix(callee, "Field"):
		col := Column{Name: attr, Type: callee}
		applyDjangoKeywords(&col, call, src)
		return col, nil, true
	}
	return Column{}, nil, false
}

func djangoRelationTarget(className string, call *sitter.Node, src []byte) string {
	pos := pyast.PositionalArguments(call)
	if len(pos) == 0 {
		return ""
	}
	target := pyast.Text(pos[0], src)
	if pos[0].Type() == "string" {
		target = pyast.Unquote(target)
	}
	target = lastSegment(target)
	if target == "self" {
		target = className
	}
	return strings.ToLower(target)
}

func applyDjangoKeywords(col *Column, call *sitter.Node, src []byte) {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return
	}
	for _, a := range pyast.NamedChildren(args) {
		if a.Type() != "keyword_argument" {
			continue
		}
		name := pyast.Text(a.ChildByFieldName("name"), src)
		value := pyast.Text(a.ChildByFieldName("value"), src)
		switch name {
		case "primary_key":
			col.PrimaryKey = value == "True"
		case "unique":
			col.Unique = value == "True" || col.Unique
		case "null":
			col.Nullable = value == "True"
		}
	}
}

func lastSegment(s string) string {
	if dot := strings.LastIndexByte(s, '.'); dot >= 0 {
		return s[dot+1:]
	}
	return s
}

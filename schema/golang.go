package schema

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// golangStrategy reads GORM models. A struct counts as a model when it
// embeds gorm.Model, carries a gorm tag on some field, or has a
// TableName method in the same file; anything else is an ordinary
// struct and stays out of the schema.
type golangStrategy struct{}

func (golangStrategy) name() string { return "gorm" }
func (golangStrategy) extensions() []string {
	return []string{".go"}
}
func (golangStrategy) readsContent() bool { return true }

var (
	goStructRe    = regexp.MustCompile(`type\s+(\w+)\s+struct\s*\{`)
	goTableFnRe   = regexp.MustCompile(`func\s*\(\s*(?:\w+\s+)?\*?(\w+)\s*\)\s*TableName\s*\(\s*\)\s*string\s*\{\s*return\s+("[^"]*")`)
	goFieldRe     = regexp.MustCompile(`^\s*(\w+)\s+([*\[\]\w.]+)`)
	goGormTagRe   = regexp.MustCompile(`gorm:"([^"]*)"`)
	goEmbeddedRe  = regexp.MustCompile(`(?m)^\s*\*?gorm\.Model\b`)
	goPrimitiveRe = regexp.MustCompile(`^(?:u?int(?:8|16|32|64)?|float(?:32|64)|string|bool|byte|rune|time\.Time|gorm\.DeletedAt|sql\.Null\w+|\[\]byte)$`)
)

type goNav struct {
	field   string
	base    string
	isSlice bool
	opts    map[string]string
}

func (golangStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	src := textutil.NewSource(string(content), textutil.FamilyCurly)

	type goStruct struct {
		name      string
		body      string
		bodyStart int
		line      int
	}
	var structs []goStruct
	for _, idx := range goStructRe.FindAllStringSubmatchIndex(src.Masked, -1) {
		s := goStruct{name: src.MaskedGroup(idx, 1), line: src.Line(idx[0])}
		s.body, s.bodyStart, _ = textutil.ExtractBlockBody(src.Masked, idx[1]-1)
		if s.bodyStart < 0 {
			continue
		}
		structs = append(structs, s)
	}

	overrides := map[string]string{}
	for _, idx := range goTableFnRe.FindAllStringSubmatchIndex(src.Masked, -1) {
		overrides[src.MaskedGroup(idx, 1)] = stripQuotes(src.Group(idx, 2))
	}

	tables := map[string]string{}
	for _, s := range structs {
		litBody := src.Lit[s.bodyStart : s.bodyStart+len(s.body)]
		isModel := overrides[s.name] != "" ||
			goEmbeddedRe.MatchString(s.body) ||
			goGormTagRe.MatchString(litBody)
		if !isModel {
			continue
		}
		if t, ok := overrides[s.name]; ok {
			tables[s.name] = t
		} else {
			tables[s.name] = pluralize(gormSnake(s.name))
		}
	}

	var out fileEntities
	for _, s := range structs {
		table, ok := tables[s.name]
		if !ok {
			continue
		}
		t := Table{Name: table, File: f.Rel, Line: s.line}
		litBody := src.Lit[s.bodyStart : s.bodyStart+len(s.body)]
		navs := gormFields(s.body, litBody, &t)
		gormRelations(navs, &t, &out, tables)
		out.tables = append(out.tables, t)
	}
	return out, nil
}

// gormFields walks the struct body line by line, returning the
// model-typed navigation fields for the relation pass.
func gormFields(body, litBody string, t *Table) []goNav {
	lines := strings.Split(body, "\n")
	litLines := strings.Split(litBody, "\n")
	depth := 0
	var navs []goNav

	for i, line := range lines {
		if depth != 0 {
			depth += strings.Count(line, "{") - strings.Count(line, "}")
			continue
		}
		if goEmbeddedRe.MatchString(line) {
			gormModelColumns(t)
			continue
		}
		m := goFieldRe.FindStringSubmatch(line)
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if m == nil {
			continue
		}
		name, fieldType := m[1], m[2]
		if !unicode.IsUpper(rune(name[0])) {
			continue
		}

		opts := map[string]string{}
		if tm := goGormTagRe.FindStringSubmatch(litLines[i]); tm != nil {
			opts = parseGormTag(tm[1])
		}
		if _, skip := opts["-"]; skip {
			continue
		}
		if _, ok := opts["many2many"]; ok {
			continue
		}

		if fieldType == "struct" || fieldType == "interface" {
			continue
		}
		isSlice := strings.HasPrefix(fieldType, "[]")
		base := strings.TrimPrefix(strings.TrimPrefix(fieldType, "[]"), "*")
		if isNavType(base) {
			navs = append(navs, goNav{field: name, base: base, isSlice: isSlice, opts: opts})
			continue
		}
		t.Columns = append(t.Columns, gormColumn(name, fieldType, opts, t))
	}
	return navs
}

func gormColumn(field, fieldType string, opts map[string]string, t *Table) Column {
	col := Column{Name: gormSnake(field), Type: fieldType, Nullable: true}
	if v, ok := opts["column"]; ok && v != "" {
		col.Name = v
	}
	if v, ok := opts["type"]; ok && v != "" {
		col.Type = v
	}
	if _, ok := opts["primarykey"]; ok {
		col.PrimaryKey = true
	}
	if _, ok := opts["primary_key"]; ok {
		col.PrimaryKey = true
	}
	if field == "ID" && len(opts) == 0 {
		col.PrimaryKey = true
	}
	if col.PrimaryKey {
		col.Nullable = false
	}
	if _, ok := opts["not null"]; ok {
		col.Nullable = false
	}
	if _, ok := opts["unique"]; ok {
		col.Unique = true
	}
	if _, ok := opts["uniqueindex"]; ok {
		col.Unique = true
		t.Indexes = append(t.Indexes, Index{
			Name: "idx_" + t.Name + "_" + col.Name, Columns: []string{col.Name}, Unique: true,
		})
	}
	if _, ok := opts["index"]; ok {
		t.Indexes = append(t.Indexes, Index{
			Name: "idx_" + t.Name + "_" + col.Name, Columns: []string{col.Name},
		})
	}
	return col
}

// gormModelColumns expands the embedded gorm.Model base columns.
func gormModelColumns(t *Table) {
	ensureColumn(t, Column{Name: "id", Type: "uint", PrimaryKey: true})
	ensureColumn(t, Column{Name: "created_at", Type: "time.Time", Nullable: true})
	ensureColumn(t, Column{Name: "updated_at", Type: "time.Time", Nullable: true})
	ensureColumn(t, Column{Name: "deleted_at", Type: "gorm.DeletedAt", Nullable: true})
	t.Indexes = append(t.Indexes, Index{
		Name: "idx_" + t.Name + "_deleted_at", Columns: []string{"deleted_at"},
	})
}

// gormRelations resolves navigation fields: a declared <Field>ID column
// marks the belongs-to side, slices are has-many, the rest reads as
// has-one.
func gormRelations(navs []goNav, t *Table, out *fileEntities, tables map[string]string) {
	for _, nav := range navs {
		target, ok := tables[nav.base]
		if !ok {
			target = pluralize(gormSnake(nav.base))
		}
		if nav.isSlice {
			out.rels = append(out.rels, Relationship{FromTable: t.Name, ToTable: target, Type: OneToMany})
			continue
		}

		fkField := nav.field + "ID"
		if v, ok := nav.opts["foreignkey"]; ok && v != "" {
			fkField = v
		}
		refColumn := "id"
		if v, ok := nav.opts["references"]; ok && v != "" {
			refColumn = gormSnake(v)
		}
		fkColumn := gormSnake(fkField)
		if columnNamed(t, fkColumn) {
			t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
				Column: fkColumn, ReferencesTable: target, ReferencesColumn: refColumn,
			})
		} else {
			// has-one, the foreign key lives on the other table
			out.rels = append(out.rels, Relationship{FromTable: t.Name, ToTable: target, Type: OneToOne})
		}
	}
}

func columnNamed(t *Table, name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// isNavType reports whether a field type names another model struct
// rather than a storable value.
func isNavType(base string) bool {
	if base == "" || goPrimitiveRe.MatchString(base) {
		return false
	}
	if strings.ContainsAny(base, ".[") {
		return false
	}
	return unicode.IsUpper(rune(base[0]))
}

func parseGormTag(tag string) map[string]string {
	opts := map[string]string{}
	for _, part := range strings.Split(tag, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, ":")
		opts[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return opts
}

// gormSnake converts a Go field name to GORM's column convention,
// keeping initialism runs together: TeamID -> team_id, HTTPCode ->
// http_code.
func gormSnake(s string) string {
	var b strings.Builder
	rs := []rune(s)
	for i, r := range rs {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(rs[i-1]) || unicode.IsDigit(rs[i-1]) ||
				(i+1 < len(rs) && unicode.IsLower(rs[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

package schema

import (
	"context"
	"regexp"
	"strings"

	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// phpStrategy reads Laravel migrations and Eloquent models line by
// line. Schema::create blocks carry the columns, model classes the
// relations; both sightings of a table merge after the file pass.
type phpStrategy struct{}

func (phpStrategy) name() string { return "eloquent" }
func (phpStrategy) extensions() []string {
	return []string{".php"}
}
func (phpStrategy) readsContent() bool { return true }

var (
	phpCreateRe  = regexp.MustCompile(`Schema::(?:create|table)\s*\(\s*('[^']*'|"[^"]*")`)
	phpBlockEnd  = regexp.MustCompile(`^\}\)`)
	phpMethodRe  = regexp.MustCompile(`\$table->(\w+)\s*\(([^;]*)`)
	phpQuotedRe  = regexp.MustCompile(`'([^']*)'|"([^"]*)"`)
	phpListRe    = regexp.MustCompile(`\[([^\]]*)\]`)
	phpClassRe   = regexp.MustCompile(`class\s+(\w+)\s+extends\s+(?:Model|Authenticatable|Pivot)\b`)
	phpTableRe   = regexp.MustCompile(`(?:protected|public)\s+\$table\s*=\s*('[^']*'|"[^"]*")`)
	phpFnRe      = regexp.MustCompile(`function\s+(\w+)\s*\(`)
	phpRelRe     = regexp.MustCompile(`\$this->(belongsTo|hasMany|hasOne|belongsToMany)\s*\(\s*([\w\\]+)::class(?:\s*,\s*('[^']*'|"[^"]*"))?`)
	phpOnRe      = regexp.MustCompile(`->on\s*\(\s*('[^']*'|"[^"]*")`)
	phpRefsRe    = regexp.MustCompile(`->references\s*\(\s*('[^']*'|"[^"]*")`)
	phpConstrRe  = regexp.MustCompile(`->constrained\s*\(\s*(?:('[^']*'|"[^"]*"))?`)
	phpNullable  = regexp.MustCompile(`->nullable\s*\(\s*\)`)
	phpUniqueMod = regexp.MustCompile(`->unique\s*\(\s*\)`)
	phpIndexMod  = regexp.MustCompile(`->index\s*\(\s*\)`)
	phpPrimary   = regexp.MustCompile(`->primary\s*\(\s*\)`)
)

func (phpStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	lit := textutil.RemoveComments(string(content), textutil.FamilyPHP)
	lines := strings.Split(lit, "\n")

	var out fileEntities
	cur := -1      // open Schema::create / Schema::table block
	modelIdx := -1 // current Eloquent model's table
	pendingFn := ""

	idxOf := func(name string, line int) int {
		for i := range out.tables {
			if out.tables[i].Name == name {
				return i
			}
		}
		out.tables = append(out.tables, Table{Name: name, File: f.Rel, Line: line})
		return len(out.tables) - 1
	}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		lineNo := i + 1

		if m := phpCreateRe.FindStringSubmatch(line); m != nil {
			cur = idxOf(stripQuotes(m[1]), lineNo)
			continue
		}
		if cur >= 0 {
			if phpBlockEnd.MatchString(line) {
				cur = -1
				continue
			}
			if m := phpMethodRe.FindStringSubmatch(line); m != nil {
				phpTableMethod(&out.tables[cur], m[1], m[2], line)
			}
			continue
		}

		if m := phpClassRe.FindStringSubmatch(line); m != nil {
			table := pluralize(snakeCase(m[1]))
			modelIdx = idxOf(table, lineNo)
			ensureColumn(&out.tables[modelIdx], Column{Name: "id", Type: "bigint", PrimaryKey: true})
			continue
		}
		if m := phpTableRe.FindStringSubmatch(line); m != nil && modelIdx >= 0 {
			out.tables[modelIdx].Name = stripQuotes(m[1])
			continue
		}
		if m := phpFnRe.FindStringSubmatch(line); m != nil {
			pendingFn = m[1]
		}
		if m := phpRelRe.FindStringSubmatch(line); m != nil && modelIdx >= 0 {
			phpRelation(&out, modelIdx, m[1], phpClassTable(m[2]), stripQuotes(m[3]), pendingFn)
		}
	}
	return out, nil
}

// phpTableMethod dispatches one $table-> call inside a migration block.
func phpTableMethod(t *Table, method, args, line string) {
	name := ""
	if qm := phpQuotedRe.FindStringSubmatch(args); qm != nil {
		name = qm[1] + qm[2]
	}

	switch method {
	case "id":
		if name == "" {
			name = "id"
		}
		ensureColumn(t, Column{Name: name, Type: "bigint", PrimaryKey: true})
	case "timestamps", "timestampsTz":
		ensureColumn(t, Column{Name: "created_at", Type: "timestamp", Nullable: true})
		ensureColumn(t, Column{Name: "updated_at", Type: "timestamp", Nullable: true})
	case "softDeletes":
		ensureColumn(t, Column{Name: "deleted_at", Type: "timestamp", Nullable: true})
	case "rememberToken":
		ensureColumn(t, Column{Name: "remember_token", Type: "string", Nullable: true})
	case "morphs", "nullableMorphs":
		nullable := method == "nullableMorphs"
		ensureColumn(t, Column{Name: name + "_id", Type: "bigint", Nullable: nullable})
		ensureColumn(t, Column{Name: name + "_type", Type: "string", Nullable: nullable})
	case "foreignId", "foreignUuid":
		col := Column{Name: name, Type: "bigint", Nullable: phpNullable.MatchString(line)}
		if method == "foreignUuid" {
			col.Type = "uuid"
		}
		ensureColumn(t, col)
		if cm := phpConstrRe.FindStringSubmatchIndex(line); cm != nil {
			target := pluralize(strings.TrimSuffix(name, "_id"))
			if cm[2] >= 0 {
				target = stripQuotes(line[cm[2]:cm[3]])
			}
			t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
				Column: name, ReferencesTable: target, ReferencesColumn: "id",
			})
		}
	case "foreign":
		fk := ForeignKey{Column: name, ReferencesColumn: "id"}
		if rm := phpRefsRe.FindStringSubmatch(line); rm != nil {
			fk.ReferencesColumn = stripQuotes(rm[1])
		}
		if om := phpOnRe.FindStringSubmatch(line); om != nil {
			fk.ReferencesTable = stripQuotes(om[1])
		}
		if fk.ReferencesTable != "" {
			t.ForeignKeys = append(t.ForeignKeys, fk)
		}
	case "index", "unique", "primary":
		cols, idxName := phpIndexArgs(args)
		if len(cols) == 0 {
			return
		}
		if method == "primary" {
			for _, c := range cols {
				for j := range t.Columns {
					if t.Columns[j].Name == c {
						t.Columns[j].PrimaryKey = true
						t.Columns[j].Nullable = false
					}
				}
			}
			return
		}
		if idxName == "" {
			idxName = laravelIndexName(t.Name, cols, method)
		}
		t.Indexes = append(t.Indexes, Index{Name: idxName, Columns: cols, Unique: method == "unique"})
	default:
		if name == "" || strings.HasPrefix(method, "drop") || strings.HasPrefix(method, "rename") {
			return
		}
		col := Column{
			Name:     name,
			Type:     method,
			Nullable: phpNullable.MatchString(line),
			Unique:   phpUniqueMod.MatchString(line),
		}
		if phpPrimary.MatchString(line) {
			col.PrimaryKey = true
			col.Nullable = false
		}
		ensureColumn(t, col)
		if col.Unique {
			t.Indexes = append(t.Indexes, Index{
				Name: laravelIndexName(t.Name, []string{name}, "unique"), Columns: []string{name}, Unique: true,
			})
		} else if phpIndexMod.MatchString(line) {
			t.Indexes = append(t.Indexes, Index{
				Name: laravelIndexName(t.Name, []string{name}, "index"), Columns: []string{name},
			})
		}
	}
}

// phpIndexArgs reads the column list and optional custom name out of a
// table-level index call: (['a', 'b'], 'name') or ('email').
func phpIndexArgs(args string) ([]string, string) {
	var cols []string
	name := ""
	if lm := phpListRe.FindStringSubmatchIndex(args); lm != nil {
		for _, qm := range phpQuotedRe.FindAllStringSubmatch(args[lm[2]:lm[3]], -1) {
			cols = append(cols, qm[1]+qm[2])
		}
		if nm := phpQuotedRe.FindStringSubmatch(args[lm[1]:]); nm != nil {
			name = nm[1] + nm[2]
		}
		return cols, name
	}
	quoted := phpQuotedRe.FindAllStringSubmatch(args, -1)
	if len(quoted) > 0 {
		cols = []string{quoted[0][1] + quoted[0][2]}
	}
	if len(quoted) > 1 {
		name = quoted[1][1] + quoted[1][2]
	}
	return cols, name
}

// phpRelation records an Eloquent association. The foreign key column
// defaults to the relation method's snake_case name plus _id.
func phpRelation(out *fileEntities, modelIdx int, verb, target, fkArg, fn string) {
	from := out.tables[modelIdx].Name
	switch verb {
	case "belongsTo":
		column := snakeCase(fn) + "_id"
		if fkArg != "" {
			column = fkArg
		}
		out.tables[modelIdx].ForeignKeys = append(out.tables[modelIdx].ForeignKeys, ForeignKey{
			Column: column, ReferencesTable: target, ReferencesColumn: "id",
		})
		ensureColumn(&out.tables[modelIdx], Column{Name: column, Type: "bigint"})
	case "hasMany":
		out.rels = append(out.rels, Relationship{FromTable: from, ToTable: target, Type: OneToMany})
	case "hasOne":
		out.rels = append(out.rels, Relationship{FromTable: from, ToTable: target, Type: OneToOne})
	}
	// belongsToMany resolves through a pivot table migration
}

// phpClassTable maps Team::class or \App\Models\Team::class to the
// conventional table name.
func phpClassTable(class string) string {
	if i := strings.LastIndex(class, `\`); i >= 0 {
		class = class[i+1:]
	}
	return pluralize(snakeCase(class))
}

func laravelIndexName(table string, cols []string, kind string) string {
	return table + "_" + strings.Join(cols, "_") + "_" + kind
}

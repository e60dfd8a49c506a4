package schema

import (
	"context"
	"regexp"
	"strings"

	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// rubyStrategy reads ActiveRecord migrations and models line by line.
// Migrations carry the columns, models carry the associations; assemble
// folds both sightings of a table together.
type rubyStrategy struct{}

func (rubyStrategy) name() string { return "activerecord" }
func (rubyStrategy) extensions() []string {
	return []string{".rb"}
}
func (rubyStrategy) readsContent() bool { return true }

var (
	rbCreateTableRe = regexp.MustCompile(`^create_table\s+(:\w+|"[^"]*"|'[^']*')(.*)$`)
	rbTimestampsRe  = regexp.MustCompile(`^t\.timestamps\b`)
	rbIndexRe       = regexp.MustCompile(`^t\.index\s+(.+)$`)
	rbRefRe         = regexp.MustCompile(`^t\.(?:references|belongs_to)\s+(:\w+|"[^"]*"|'[^']*')(.*)$`)
	rbTFKRe         = regexp.MustCompile(`^t\.foreign_key\s+(:\w+|"[^"]*"|'[^']*')(.*)$`)
	rbColumnRe      = regexp.MustCompile(`^t\.(\w+)\s+(:\w+|"[^"]*"|'[^']*')(.*)$`)
	rbAddIndexRe    = regexp.MustCompile(`^add_index\s+(:\w+|"[^"]*"|'[^']*')\s*,\s*(.+)$`)
	rbAddColumnRe   = regexp.MustCompile(`^add_column\s+(:\w+|"[^"]*"|'[^']*')\s*,\s*(:\w+|"[^"]*"|'[^']*')\s*,\s*:(\w+)(.*)$`)
	rbAddFKRe       = regexp.MustCompile(`^add_foreign_key\s+(:\w+|"[^"]*"|'[^']*')\s*,\s*(:\w+|"[^"]*"|'[^']*')(.*)$`)

	rbModelRe     = regexp.MustCompile(`^class\s+([A-Z]\w*(?:::[A-Z]\w*)*)\s*<\s*(?:ApplicationRecord|ActiveRecord::Base)\b`)
	rbTableNameRe = regexp.MustCompile(`^self\.table_name\s*=\s*("[^"]*"|'[^']*')`)
	rbBelongsToRe = regexp.MustCompile(`^belongs_to\s+:(\w+)(.*)$`)
	rbHasManyRe   = regexp.MustCompile(`^has_many\s+:(\w+)(.*)$`)
	rbHasOneRe    = regexp.MustCompile(`^has_one\s+:(\w+)(.*)$`)

	rbSymListRe     = regexp.MustCompile(`\[([^\]]*)\]`)
	rbSymRe         = regexp.MustCompile(`:(\w+)`)
	rbClassNameRe   = regexp.MustCompile(`class_name:\s*("[^"]*"|'[^']*')`)
	rbFKOptRe       = regexp.MustCompile(`foreign_key:\s*:(\w+)`)
	rbToTableRe     = regexp.MustCompile(`to_table:\s*:(\w+)`)
	rbThroughRe     = regexp.MustCompile(`through:\s*:`)
	rbColumnOptRe   = regexp.MustCompile(`column:\s*:(\w+)`)
	rbNameOptRe     = regexp.MustCompile(`name:\s*("[^"]*"|'[^']*')`)
	rbNullFalseRe   = regexp.MustCompile(`null:\s*false`)
	rbUniqueRe      = regexp.MustCompile(`unique:\s*true`)
	rbIndexOptRe    = regexp.MustCompile(`index:\s*(true|\{[^}]*\})`)
	rbIDFalseRe     = regexp.MustCompile(`id:\s*false`)
	rbPolymorphicRe = regexp.MustCompile(`polymorphic:\s*true`)
)

func (rubyStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	lit := textutil.RemoveComments(string(content), textutil.FamilyRuby)
	lines := strings.Split(lit, "\n")

	var out fileEntities
	var cur *Table // open create_table block
	modelIdx := -1 // current model's entry in out.tables

	// find-or-create, for add_index and friends that name their table
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

		if cur != nil {
			switch {
			case line == "end":
				out.tables = append(out.tables, *cur)
				cur = nil
			case rbTimestampsRe.MatchString(line):
				ensureColumn(cur, Column{Name: "created_at", Type: "datetime"})
				ensureColumn(cur, Column{Name: "updated_at", Type: "datetime"})
			case rbIndexRe.MatchString(line):
				args := rbIndexRe.FindStringSubmatch(line)[1]
				cur.Indexes = append(cur.Indexes, rubyIndex(cur.Name, args))
			case rbRefRe.MatchString(line):
				m := rbRefRe.FindStringSubmatch(line)
				rubyReference(cur, rubyName(m[1]), m[2])
			case rbTFKRe.MatchString(line):
				m := rbTFKRe.FindStringSubmatch(line)
				target := rubyName(m[1])
				column := singularize(target) + "_id"
				if cm := rbColumnOptRe.FindStringSubmatch(m[2]); cm != nil {
					column = cm[1]
				}
				cur.ForeignKeys = append(cur.ForeignKeys, ForeignKey{
					Column: column, ReferencesTable: target, ReferencesColumn: "id",
				})
			case rbColumnRe.MatchString(line):
				m := rbColumnRe.FindStringSubmatch(line)
				rubyColumn(cur, m[1], rubyName(m[2]), m[3])
			}
			continue
		}

		switch {
		case rbCreateTableRe.MatchString(line):
			m := rbCreateTableRe.FindStringSubmatch(line)
			cur = &Table{Name: rubyName(m[1]), File: f.Rel, Line: lineNo}
			if !rbIDFalseRe.MatchString(m[2]) {
				cur.Columns = append(cur.Columns, Column{Name: "id", Type: "bigint", PrimaryKey: true})
			}
		case rbModelRe.MatchString(line):
			class := rbModelRe.FindStringSubmatch(line)[1]
			table := pluralize(snakeCase(lastSegment(strings.ReplaceAll(class, "::", "."))))
			modelIdx = idxOf(table, lineNo)
			ensureColumn(&out.tables[modelIdx], Column{Name: "id", Type: "bigint", PrimaryKey: true})
		case rbTableNameRe.MatchString(line) && modelIdx >= 0:
			out.tables[modelIdx].Name = stripQuotes(rbTableNameRe.FindStringSubmatch(line)[1])
		case rbBelongsToRe.MatchString(line) && modelIdx >= 0:
			m := rbBelongsToRe.FindStringSubmatch(line)
			if rbPolymorphicRe.MatchString(m[2]) {
				break
			}
			column := m[1] + "_id"
			if cm := rbFKOptRe.FindStringSubmatch(m[2]); cm != nil {
				column = cm[1]
			}
			out.tables[modelIdx].ForeignKeys = append(out.tables[modelIdx].ForeignKeys, ForeignKey{
				Column: column, ReferencesTable: rubyAssocTable(m[1], m[2], false), ReferencesColumn: "id",
			})
			ensureColumn(&out.tables[modelIdx], Column{Name: column, Type: "bigint"})
		case rbHasManyRe.MatchString(line) && modelIdx >= 0:
			m := rbHasManyRe.FindStringSubmatch(line)
			if rbThroughRe.MatchString(m[2]) {
				break // join model owns the direct edges
			}
			out.rels = append(out.rels, Relationship{
				FromTable: out.tables[modelIdx].Name,
				ToTable:   rubyAssocTable(m[1], m[2], true),
				Type:      OneToMany,
			})
		case rbHasOneRe.MatchString(line) && modelIdx >= 0:
			m := rbHasOneRe.FindStringSubmatch(line)
			out.rels = append(out.rels, Relationship{
				FromTable: out.tables[modelIdx].Name,
				ToTable:   rubyAssocTable(m[1], m[2], false),
				Type:      OneToOne,
			})
		case rbAddIndexRe.MatchString(line):
			m := rbAddIndexRe.FindStringSubmatch(line)
			j := idxOf(rubyName(m[1]), lineNo)
			out.tables[j].Indexes = append(out.tables[j].Indexes, rubyIndex(out.tables[j].Name, m[2]))
		case rbAddColumnRe.MatchString(line):
			m := rbAddColumnRe.FindStringSubmatch(line)
			j := idxOf(rubyName(m[1]), lineNo)
			rubyColumn(&out.tables[j], m[3], rubyName(m[2]), m[4])
		case rbAddFKRe.MatchString(line):
			m := rbAddFKRe.FindStringSubmatch(line)
			j := idxOf(rubyName(m[1]), lineNo)
			target := rubyName(m[2])
			column := singularize(target) + "_id"
			if cm := rbColumnOptRe.FindStringSubmatch(m[3]); cm != nil {
				column = cm[1]
			}
			out.tables[j].ForeignKeys = append(out.tables[j].ForeignKeys, ForeignKey{
				Column: column, ReferencesTable: target, ReferencesColumn: "id",
			})
		}
	}
	if cur != nil {
		out.tables = append(out.tables, *cur)
	}
	return out, nil
}

// rubyName strips the symbol colon or quotes off a table or column name.
func rubyName(s string) string {
	if strings.HasPrefix(s, ":") {
		return s[1:]
	}
	return stripQuotes(s)
}

func rubyColumn(t *Table, colType, name, rest string) {
	col := Column{
		Name:     name,
		Type:     colType,
		Nullable: !rbNullFalseRe.MatchString(rest),
	}
	if im := rbIndexOptRe.FindStringSubmatch(rest); im != nil {
		unique := rbUniqueRe.MatchString(im[1])
		col.Unique = unique
		t.Indexes = append(t.Indexes, Index{
			Name:    railsIndexName(t.Name, []string{name}),
			Columns: []string{name},
			Unique:  unique,
		})
	}
	ensureColumn(t, col)
}

// rubyReference expands t.references / t.belongs_to into the FK column
// pair. Polymorphic references get the _type column and no foreign key.
func rubyReference(t *Table, assoc, rest string) {
	column := assoc + "_id"
	ensureColumn(t, Column{Name: column, Type: "bigint", Nullable: !rbNullFalseRe.MatchString(rest)})
	if rbPolymorphicRe.MatchString(rest) {
		ensureColumn(t, Column{Name: assoc + "_type", Type: "string", Nullable: !rbNullFalseRe.MatchString(rest)})
		return
	}
	target := pluralize(assoc)
	if tm := rbToTableRe.FindStringSubmatch(rest); tm != nil {
		target = tm[1]
	}
	t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
		Column: column, ReferencesTable: target, ReferencesColumn: "id",
	})
}

func rubyIndex(table, args string) Index {
	idx := Index{Unique: rbUniqueRe.MatchString(args)}
	if lm := rbSymListRe.FindStringSubmatch(args); lm != nil {
		for _, sm := range rbSymRe.FindAllStringSubmatch(lm[1], -1) {
			idx.Columns = append(idx.Columns, sm[1])
		}
	} else if sm := rbSymRe.FindStringSubmatch(args); sm != nil {
		idx.Columns = []string{sm[1]}
	}
	if nm := rbNameOptRe.FindStringSubmatch(args); nm != nil {
		idx.Name = stripQuotes(nm[1])
	} else {
		idx.Name = railsIndexName(table, idx.Columns)
	}
	return idx
}

// rubyAssocTable resolves an association target to its table name:
// class_name wins, has_many names are already plural.
func rubyAssocTable(assoc, rest string, plural bool) string {
	if cm := rbClassNameRe.FindStringSubmatch(rest); cm != nil {
		class := stripQuotes(cm[1])
		return pluralize(snakeCase(lastSegment(strings.ReplaceAll(class, "::", "."))))
	}
	if plural {
		return assoc
	}
	return pluralize(assoc)
}

func railsIndexName(table string, cols []string) string {
	return "index_" + table + "_on_" + strings.Join(cols, "_and_")
}

func singularize(s string) string {
	switch {
	case strings.HasSuffix(s, "ies"):
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(s, "ses"), strings.HasSuffix(s, "xes"), strings.HasSuffix(s, "zes"),
		strings.HasSuffix(s, "ches"), strings.HasSuffix(s, "shes"):
		return s[:len(s)-2]
	case strings.HasSuffix(s, "s"):
		return s[:len(s)-1]
	}
	return s
}

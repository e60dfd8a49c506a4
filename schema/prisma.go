package schema

import (
	"context"
	"regexp"
	"strings"

	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// prismaStrategy reads the declarative schema DSL line by line. Models
// and enums are collected first so relation fields can be told apart
// from scalar columns, then each model becomes a table.
type prismaStrategy struct{}

func (prismaStrategy) name() string         { return "prisma" }
func (prismaStrategy) extensions() []string { return []string{".prisma"} }
func (prismaStrategy) readsContent() bool   { return true }

var (
	prismaModelRe    = regexp.MustCompile(`^model\s+(\w+)\s*\{`)
	prismaEnumRe     = regexp.MustCompile(`^enum\s+(\w+)\s*\{`)
	prismaMapRe      = regexp.MustCompile(`@@map\(\s*"([^"]+)"\s*\)`)
	prismaFieldMapRe = regexp.MustCompile(`@map\(\s*"([^"]+)"\s*\)`)
	// fields: and references: are searched independently so either
	// argument order inside @relation matches.
	prismaFieldsRe  = regexp.MustCompile(`fields:\s*\[([^\]]*)\]`)
	prismaRefsRe    = regexp.MustCompile(`references:\s*\[([^\]]*)\]`)
	prismaBlockRe   = regexp.MustCompile(`^@@(index|unique|id)\(\s*\[([^\]]*)\]`)
	prismaNameArgRe = regexp.MustCompile(`(?:name|map):\s*"([^"]+)"`)
)

type prismaLine struct {
	text string
	line int
}

type prismaModel struct {
	name   string
	line   int
	fields []prismaLine
	attrs  []prismaLine
}

func (prismaStrategy) extract(_ context.Context, f crawler.File, src []byte) (fileEntities, error) {
	content := textutil.RemoveComments(string(src), textutil.FamilyPrisma)
	models, enums := splitPrismaBlocks(content)

	tableOf := make(map[string]string, len(models))
	for _, m := range models {
		name := m.name
		for _, a := range m.attrs {
			if match := prismaMapRe.FindStringSubmatch(a.text); match != nil {
				name = match[1]
			}
		}
		tableOf[m.name] = name
	}

	var out fileEntities
	for _, m := range models {
		t := Table{Name: tableOf[m.name], File: f.Rel, Line: m.line}
		for _, fl := range m.fields {
			buildPrismaField(fl, &t, &out, tableOf, enums)
		}
		for _, a := range m.attrs {
			applyPrismaBlockAttr(a.text, &t)
		}
		out.tables = append(out.tables, t)
	}
	return out, nil
}

func splitPrismaBlocks(content string) ([]prismaModel, map[string]bool) {
	var models []prismaModel
	enums := map[string]bool{}

	var cur *prismaModel
	inEnum := false
	for i, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case inEnum:
			if line == "}" {
				inEnum = false
			}
		case cur != nil:
			if line == "}" {
				models = append(models, *cur)
				cur = nil
				continue
			}
			if line == "" {
				continue
			}
			entry := prismaLine{text: line, line: i + 1}
			if strings.HasPrefix(line, "@@") {
				cur.attrs = append(cur.attrs, entry)
			} else {
				cur.fields = append(cur.fields, entry)
			}
		default:
			if m := prismaModelRe.FindStringSubmatch(line); m != nil {
				cur = &prismaModel{name: m[1], line: i + 1}
			} else if m := prismaEnumRe.FindStringSubmatch(line); m != nil {
				enums[m[1]] = true
				inEnum = true
			}
		}
	}
	if cur != nil {
		models = append(models, *cur)
	}
	return models, enums
}

func buildPrismaField(fl prismaLine, t *Table, out *fileEntities, tableOf map[string]string, enums map[string]bool) {
	tokens := strings.Fields(fl.text)
	if len(tokens) < 2 {
		return
	}
	name, fieldType := tokens[0], tokens[1]
	optional := strings.HasSuffix(fieldType, "?")
	base := strings.TrimSuffix(fieldType, "?")
	list := strings.HasSuffix(base, "[]")
	base = strings.TrimSuffix(base, "[]")

	targetTable, isRelation := tableOf[base]
	switch {
	case list && isRelation:
		out.rels = append(out.rels, Relationship{FromTable: t.Name, ToTable: targetTable, Type: OneToMany})
	case isRelation:
		cols := prismaFieldsRe.FindStringSubmatch(fl.text)
		refs := prismaRefsRe.FindStringSubmatch(fl.text)
		if cols == nil || refs == nil {
			return
		}
		colNames := splitPrismaList(cols[1])
		refNames := splitPrismaList(refs[1])
		if len(colNames) == 0 || len(refNames) == 0 {
			return
		}
		t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
			Column:           colNames[0],
			ReferencesTable:  targetTable,
			ReferencesColumn: refNames[0],
		})
	default:
		if !prismaScalars[base] && !enums[base] {
			// relation to a model declared in another file; no local
			// table to resolve against
			return
		}
		attrs := prismaFieldAttrs(tokens[2:])
		col := Column{
			Name:       name,
			Type:       base,
			Nullable:   optional,
			Unique:     attrs["unique"],
			PrimaryKey: attrs["id"],
		}
		if m := prismaFieldMapRe.FindStringSubmatch(fl.text); m != nil {
			col.Name = m[1]
		}
		t.Columns = append(t.Columns, col)
	}
}

var prismaScalars = map[string]bool{
	"Int": true, "BigInt": true, "String": true, "Boolean": true,
	"DateTime": true, "Float": true, "Decimal": true, "Json": true,
	"Bytes": true,
}

func applyPrismaBlockAttr(text string, t *Table) {
	m := prismaBlockRe.FindStringSubmatch(text)
	if m == nil {
		return
	}
	cols := splitPrismaList(m[2])
	if len(cols) == 0 {
		return
	}
	switch m[1] {
	case "id":
		for _, name := range cols {
			for i := range t.Columns {
				if t.Columns[i].Name == name {
					t.Columns[i].PrimaryKey = true
				}
			}
		}
	case "index", "unique":
		idx := Index{Columns: cols, Unique: m[1] == "unique"}
		if nm := prismaNameArgRe.FindStringSubmatch(text); nm != nil {
			idx.Name = nm[1]
		} else {
			idx.Name = t.Name + "_" + strings.Join(cols, "_") + "_idx"
		}
		t.Indexes = append(t.Indexes, idx)
	}
}

func prismaFieldAttrs(tokens []string) map[string]bool {
	attrs := map[string]bool{}
	for _, tok := range tokens {
		if !strings.HasPrefix(tok, "@") || strings.HasPrefix(tok, "@@") {
			continue
		}
		name := tok[1:]
		if i := strings.IndexByte(name, '('); i >= 0 {
			name = name[:i]
		}
		attrs[name] = true
	}
	return attrs
}

func splitPrismaList(inner string) []string {
	var out []string
	for _, part := range strings.Split(inner, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package schema

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// javaStrategy reads JPA entity classes. Fields are taken the way the
// provider maps them: every non-static, non-transient field becomes a
// column unless a relation annotation claims it.
type javaStrategy struct{}

func (javaStrategy) name() string { return "jpa" }
func (javaStrategy) extensions() []string {
	return []string{".java"}
}
func (javaStrategy) readsContent() bool { return true }

var (
	javaClassRe = regexp.MustCompile(`((?:@\w+(?:\s*\((?:[^()]|\([^()]*\))*\))?\s*)+)(?:public\s+|abstract\s+|final\s+)*class\s+(\w+)`)
	javaTableRe = regexp.MustCompile(`@Table\s*\(((?:[^()]|\([^()]*\))*)\)`)
	javaNameRe  = regexp.MustCompile(`name\s*=\s*"([^"]*)"`)

	javaFieldRe = regexp.MustCompile(`((?:@\w+(?:\s*\((?:[^()]|\([^()]*\))*\))?\s*)*)(private|protected|public)((?:\s+static|\s+final|\s+transient)*)\s+([\w.<>\[\],\s]+?)\s+(\w+)\s*(?:=[^;]*)?;`)

	javaIdRe        = regexp.MustCompile(`@Id\b`)
	javaColumnRe    = regexp.MustCompile(`@Column\s*\(((?:[^()]|\([^()]*\))*)\)`)
	javaJoinRe      = regexp.MustCompile(`@JoinColumn\s*\(((?:[^()]|\([^()]*\))*)\)`)
	javaRefColRe    = regexp.MustCompile(`referencedColumnName\s*=\s*"([^"]*)"`)
	javaNullableRe  = regexp.MustCompile(`nullable\s*=\s*false`)
	javaUniqueRe    = regexp.MustCompile(`unique\s*=\s*true`)
	javaMappedByRe  = regexp.MustCompile(`mappedBy\s*=`)
	javaGenericRe   = regexp.MustCompile(`<\s*([\w.]+)\s*>`)
	javaIndexRe     = regexp.MustCompile(`@Index\s*\(((?:[^()]|\([^()]*\))*)\)`)
	javaColumnsRe   = regexp.MustCompile(`columnList\s*=\s*"([^"]*)"`)
	javaUniqConstRe = regexp.MustCompile(`@UniqueConstraint\s*\(((?:[^()]|\([^()]*\))*)\)`)
	javaColNamesRe  = regexp.MustCompile(`columnNames\s*=\s*\{([^}]*)\}`)
	javaQuotedRe    = regexp.MustCompile(`"([^"]*)"`)
)

func (javaStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	src := textutil.NewSource(string(content), textutil.FamilyCurly)

	var out fileEntities
	tables := map[string]string{}

	type entity struct {
		class     string
		annosLit  string
		body      string
		bodyStart int
		line      int
	}
	var entities []entity

	// Anchor on the class declaration and take the annotation run in
	// front of it, so @Table before or after @Entity both resolve.
	for _, idx := range javaClassRe.FindAllStringSubmatchIndex(src.Masked, -1) {
		annos := src.Masked[idx[2]:idx[3]]
		if !strings.Contains(annos, "@Entity") {
			continue
		}
		class := src.Masked[idx[4]:idx[5]]
		body, bodyStart, _ := textutil.ExtractBlockBody(src.Masked, idx[1])
		if bodyStart < 0 {
			continue
		}
		e := entity{
			class:     class,
			annosLit:  src.Lit[idx[2]:idx[3]],
			body:      body,
			bodyStart: bodyStart,
			line:      src.Line(idx[0]),
		}
		entities = append(entities, e)

		table := snakeCase(class)
		if tm := javaTableRe.FindStringSubmatch(e.annosLit); tm != nil {
			if nm := javaNameRe.FindStringSubmatch(tm[1]); nm != nil {
				table = nm[1]
			}
		}
		tables[class] = table
	}

	for _, e := range entities {
		t := Table{Name: tables[e.class], File: f.Rel, Line: e.line}
		if tm := javaTableRe.FindStringSubmatch(e.annosLit); tm != nil {
			t.Indexes = javaTableIndexes(tm[1], t.Name)
		}
		litBody := src.Lit[e.bodyStart : e.bodyStart+len(e.body)]
		javaFields(e.body, litBody, &t, &out, tables)
		out.tables = append(out.tables, t)
	}
	return out, nil
}

func javaFields(body, litBody string, t *Table, out *fileEntities, tables map[string]string) {
	for _, idx := range javaFieldRe.FindAllStringSubmatchIndex(body, -1) {
		// Only class-level fields, not locals inside method bodies.
		if braceDepth(body, idx[0]) != 0 {
			continue
		}
		annos := body[idx[2]:idx[3]]
		litAnnos := litBody[idx[2]:idx[3]]
		modifiers := body[idx[6]:idx[7]]
		fieldType := strings.TrimSpace(body[idx[8]:idx[9]])
		name := body[idx[10]:idx[11]]

		if strings.Contains(modifiers, "static") || strings.Contains(modifiers, "transient") ||
			strings.Contains(annos, "@Transient") {
			continue
		}

		switch {
		case strings.Contains(annos, "@ManyToOne"):
			javaToOne(litAnnos, name, fieldType, false, t, tables)
		case strings.Contains(annos, "@OneToOne"):
			if javaMappedByRe.MatchString(litAnnos) {
				continue // inverse side owns no column
			}
			javaToOne(litAnnos, name, fieldType, true, t, tables)
		case strings.Contains(annos, "@OneToMany"):
			if gm := javaGenericRe.FindStringSubmatch(fieldType); gm != nil {
				target := tableFor(tables, lastSegment(gm[1]), snakeCase)
				out.rels = append(out.rels, Relationship{FromTable: t.Name, ToTable: target, Type: OneToMany})
			}
		case strings.Contains(annos, "@ManyToMany"):
			// join table side, nothing to record per table
		default:
			t.Columns = append(t.Columns, javaColumn(litAnnos, name, fieldType))
		}
	}
}

func javaColumn(litAnnos, name, fieldType string) Column {
	col := Column{
		Name:     snakeCase(name),
		Type:     lastSegment(fieldType),
		Nullable: true,
	}
	if cm := javaColumnRe.FindStringSubmatch(litAnnos); cm != nil {
		if nm := javaNameRe.FindStringSubmatch(cm[1]); nm != nil {
			col.Name = nm[1]
		}
		col.Nullable = !javaNullableRe.MatchString(cm[1])
		col.Unique = javaUniqueRe.MatchString(cm[1])
	}
	if javaIdRe.MatchString(litAnnos) {
		col.PrimaryKey = true
		col.Nullable = false
	}
	return col
}

// javaToOne records the owning side of a @ManyToOne or @OneToOne field:
// a foreign key column named by @JoinColumn or the field_id default.
func javaToOne(litAnnos, name, fieldType string, unique bool, t *Table, tables map[string]string) {
	fkColumn := snakeCase(name) + "_id"
	refColumn := "id"
	if jm := javaJoinRe.FindStringSubmatch(litAnnos); jm != nil {
		if nm := javaNameRe.FindStringSubmatch(jm[1]); nm != nil {
			fkColumn = nm[1]
		}
		if rm := javaRefColRe.FindStringSubmatch(jm[1]); rm != nil {
			refColumn = rm[1]
		}
	}
	target := tableFor(tables, lastSegment(fieldType), snakeCase)
	t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
		Column: fkColumn, ReferencesTable: target, ReferencesColumn: refColumn,
	})
	ensureColumn(t, Column{Name: fkColumn, Type: "bigint", Unique: unique})
}

// javaTableIndexes reads indexes and uniqueConstraints out of a @Table
// annotation's arguments.
func javaTableIndexes(args, table string) []Index {
	var indexes []Index
	for _, im := range javaIndexRe.FindAllStringSubmatch(args, -1) {
		idx := Index{Unique: javaUniqueRe.MatchString(im[1])}
		if nm := javaNameRe.FindStringSubmatch(im[1]); nm != nil {
			idx.Name = nm[1]
		}
		if cm := javaColumnsRe.FindStringSubmatch(im[1]); cm != nil {
			for _, c := range strings.Split(cm[1], ",") {
				if c = strings.TrimSpace(c); c != "" {
					idx.Columns = append(idx.Columns, c)
				}
			}
		}
		if idx.Name == "" {
			idx.Name = fmt.Sprintf("%s_%s_idx", table, strings.Join(idx.Columns, "_"))
		}
		indexes = append(indexes, idx)
	}
	for _, um := range javaUniqConstRe.FindAllStringSubmatch(args, -1) {
		idx := Index{Unique: true}
		if nm := javaNameRe.FindStringSubmatch(um[1]); nm != nil {
			idx.Name = nm[1]
		}
		if cm := javaColNamesRe.FindStringSubmatch(um[1]); cm != nil {
			for _, q := range javaQuotedRe.FindAllStringSubmatch(cm[1], -1) {
				idx.Columns = append(idx.Columns, q[1])
			}
		}
		if idx.Name == "" {
			idx.Name = "uq_" + strings.Join(idx.Columns, "_")
		}
		indexes = append(indexes, idx)
	}
	return indexes
}

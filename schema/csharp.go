package schema

import (
	"context"
	"regexp"
	"strings"

	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// csharpStrategy reads EF Core models: DbSet properties bind entity
// classes to table names, data annotations refine columns. Classes
// configured purely through the fluent API in another file are out of
// reach for a per-file pass and are picked up only when annotated.
type csharpStrategy struct{}

func (csharpStrategy) name() string { return "efcore" }
func (csharpStrategy) extensions() []string {
	return []string{".cs"}
}
func (csharpStrategy) readsContent() bool { return true }

var (
	csClassRe = regexp.MustCompile(`((?:\[[^\]]*\]\s*)*)(?:public\s+|internal\s+|abstract\s+|sealed\s+|partial\s+)*class\s+(\w+)(?:\s*:\s*([\w.,<>\s]+?))?\s*\{`)
	csDbSetRe = regexp.MustCompile(`DbSet<\s*(\w+)\s*>\s+(\w+)`)
	csPropRe  = regexp.MustCompile(`((?:\[[^\]]*\]\s*)*)public\s+((?:virtual\s+|required\s+|static\s+|override\s+|new\s+)*)([\w.<>\[\],?\s]+?)\s+(\w+)\s*\{\s*(?:get|init)`)

	csTableAttrRe  = regexp.MustCompile(`\[Table\s*\(\s*"([^"]*)"`)
	csColumnAttrRe = regexp.MustCompile(`\[Column\s*\(((?:[^()"]|"[^"]*"|\([^()]*\))*)\)`)
	csColLeadRe    = regexp.MustCompile(`\[Column\s*\(\s*"([^"]*)"`)
	csColNameRe    = regexp.MustCompile(`"([^"]*)"`)
	csTypeNameRe   = regexp.MustCompile(`TypeName\s*=\s*"([^"]*)"`)
	csKeyAttrRe    = regexp.MustCompile(`\[Key\s*[\],]`)
	csRequiredRe   = regexp.MustCompile(`\[Required\s*[\],]`)
	csNotMappedRe  = regexp.MustCompile(`\[NotMapped\s*[\],]`)
	csFKAttrRe     = regexp.MustCompile(`\[ForeignKey\s*\(\s*(?:nameof\s*\(\s*(\w+)\s*\)|"([^"]*)")\s*\)`)
	csIndexAttrRe  = regexp.MustCompile(`\[Index\s*\(((?:[^()"]|"[^"]*"|\([^()]*\))*)\)\s*\]`)
	csNameOfRe     = regexp.MustCompile(`nameof\s*\(\s*(\w+)\s*\)`)
	csIsUniqueRe   = regexp.MustCompile(`IsUnique\s*=\s*true`)
	csIdxNameRe    = regexp.MustCompile(`Name\s*=\s*"([^"]*)"`)
	csCollectionRe = regexp.MustCompile(`^(?:System\.Collections\.Generic\.)?(?:ICollection|IEnumerable|IList|List|ISet|HashSet|IReadOnlyCollection)\s*<\s*(\w+)\s*>$`)
)

type csClass struct {
	name      string
	attrsLit  string
	base      string
	body      string
	bodyStart int
	line      int
}

func (csharpStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	src := textutil.NewSource(string(content), textutil.FamilyCurly)

	// DbSet<User> Users binds the entity to its table wherever the
	// context class sits in the file.
	dbsets := map[string]string{}
	for _, m := range csDbSetRe.FindAllStringSubmatch(src.Masked, -1) {
		dbsets[m[1]] = m[2]
	}

	var classes []csClass
	tables := map[string]string{}
	for _, idx := range csClassRe.FindAllStringSubmatchIndex(src.Masked, -1) {
		c := csClass{
			name:     src.MaskedGroup(idx, 2),
			attrsLit: src.Lit[idx[2]:idx[3]],
			base:     src.MaskedGroup(idx, 3),
			line:     src.Line(idx[0]),
		}
		c.body, c.bodyStart, _ = textutil.ExtractBlockBody(src.Masked, idx[1]-1)
		if c.bodyStart < 0 {
			continue
		}
		if strings.Contains(c.base, "DbContext") {
			continue
		}
		tableAttr := csTableAttrRe.FindStringSubmatch(c.attrsLit)
		switch {
		case tableAttr != nil:
			tables[c.name] = tableAttr[1]
		case dbsets[c.name] != "":
			tables[c.name] = dbsets[c.name]
		case csKeyAttrRe.MatchString(src.Lit[c.bodyStart : c.bodyStart+len(c.body)]):
			tables[c.name] = pluralize(c.name)
		default:
			continue // plain class, nothing marks it as mapped
		}
		classes = append(classes, c)
	}

	var out fileEntities
	for _, c := range classes {
		t := Table{Name: tables[c.name], File: f.Rel, Line: c.line}
		t.Indexes = csharpIndexes(c.attrsLit, t.Name)
		litBody := src.Lit[c.bodyStart : c.bodyStart+len(c.body)]
		csharpProperties(c.name, c.body, litBody, &t, &out, tables)
		out.tables = append(out.tables, t)
	}
	return out, nil
}

func csharpProperties(class, body, litBody string, t *Table, out *fileEntities, tables map[string]string) {
	for _, idx := range csPropRe.FindAllStringSubmatchIndex(body, -1) {
		if braceDepth(body, idx[0]) != 0 {
			continue
		}
		litAttrs := litBody[idx[2]:idx[3]]
		modifiers := body[idx[4]:idx[5]]
		propType := strings.TrimSpace(body[idx[6]:idx[7]])
		name := body[idx[8]:idx[9]]

		if strings.Contains(modifiers, "static") || csNotMappedRe.MatchString(litAttrs) {
			continue
		}

		if cm := csCollectionRe.FindStringSubmatch(propType); cm != nil {
			target := tableFor(tables, cm[1], pluralize)
			out.rels = append(out.rels, Relationship{FromTable: t.Name, ToTable: target, Type: OneToMany})
			continue
		}

		bare := strings.TrimSuffix(propType, "?")
		if _, ok := tables[bare]; ok && bare != class {
			// navigation property to an entity declared in this file
			fkColumn := name + "Id"
			if fm := csFKAttrRe.FindStringSubmatch(litAttrs); fm != nil {
				if fm[1] != "" {
					fkColumn = fm[1]
				} else {
					fkColumn = fm[2]
				}
			}
			t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
				Column: fkColumn, ReferencesTable: tables[bare], ReferencesColumn: "Id",
			})
			ensureColumn(t, Column{Name: fkColumn, Type: "int"})
			continue
		}

		col := Column{Name: name, Type: bare}
		col.PrimaryKey = csKeyAttrRe.MatchString(litAttrs) || name == "Id" || name == class+"Id"
		required := csRequiredRe.MatchString(litAttrs) || strings.Contains(modifiers, "required")
		col.Nullable = !col.PrimaryKey && !required
		if nm := csColLeadRe.FindStringSubmatch(litAttrs); nm != nil {
			col.Name = nm[1]
		}
		if am := csColumnAttrRe.FindStringSubmatch(litAttrs); am != nil {
			if tm := csTypeNameRe.FindStringSubmatch(am[1]); tm != nil {
				col.Type = tm[1]
			}
		}
		ensureColumn(t, col)
	}
}

// csharpIndexes reads EF Core 5 style [Index(nameof(Email), IsUnique = true)]
// class attributes.
func csharpIndexes(litAttrs, table string) []Index {
	var indexes []Index
	for _, im := range csIndexAttrRe.FindAllStringSubmatch(litAttrs, -1) {
		idx := Index{Unique: csIsUniqueRe.MatchString(im[1])}
		for _, nm := range csNameOfRe.FindAllStringSubmatch(im[1], -1) {
			idx.Columns = append(idx.Columns, nm[1])
		}
		if len(idx.Columns) == 0 {
			for _, qm := range csColNameRe.FindAllStringSubmatch(im[1], -1) {
				if strings.HasPrefix(qm[1], "IX_") {
					continue
				}
				idx.Columns = append(idx.Columns, qm[1])
			}
		}
		if nm := csIdxNameRe.FindStringSubmatch(im[1]); nm != nil {
			idx.Name = nm[1]
		} else {
			idx.Name = "IX_" + table + "_" + strings.Join(idx.Columns, "_")
		}
		indexes = append(indexes, idx)
	}
	return indexes
}

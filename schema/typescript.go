package schema

import (
	"context"
	"regexp"
	"strings"

	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// typescriptStrategy covers TypeORM entities, Sequelize models and
// Mongoose schemas. Structure is matched on the masked view; names and
// other literals are read back from the literal view at the same
// offsets.
type typescriptStrategy struct{}

func (typescriptStrategy) name() string { return "typescript-orm" }
func (typescriptStrategy) extensions() []string {
	return []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}
}
func (typescriptStrategy) readsContent() bool { return true }

func (typescriptStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	src := textutil.NewSource(string(content), textutil.FamilyCurly)

	var out fileEntities
	tables := map[string]string{} // class or model variable -> table name
	extractTypeORM(src, f, &out, tables)
	extractSequelize(src, f, &out, tables)
	extractMongoose(src, f, &out, tables)
	return out, nil
}

// tableFor resolves a class or model name seen in a relation target,
// falling back to the naming convention when the declaration lives in
// another file.
func tableFor(tables map[string]string, class string, fallback func(string) string) string {
	if t, ok := tables[class]; ok {
		return t
	}
	return fallback(class)
}

// closingParen returns the offset just past the parenthesis closing the
// call whose opening paren is the first one at or after from. Masked
// content keeps parens inside strings and comments from unbalancing the
// walk.
func closingParen(s string, from int) int {
	depth := 0
	opened := false
	for i := from; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
			opened = true
		case ')':
			depth--
			if opened && depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// braceDepth returns the brace nesting depth at pos within masked text.
func braceDepth(s string, pos int) int {
	depth := 0
	for i := 0; i < pos && i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		}
	}
	return depth
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// --- TypeORM ---

var (
	tsEntityRe = regexp.MustCompile(`@Entity\s*(?:\(((?:[^()]|\([^()]*\))*)\))?\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(\w+)`)
	tsColumnRe = regexp.MustCompile(`@(PrimaryGeneratedColumn|PrimaryColumn|CreateDateColumn|UpdateDateColumn|DeleteDateColumn|VersionColumn|Column)\s*\(((?:[^()]|\([^()]*\))*)\)\s*(?:@\w+\s*(?:\((?:[^()]|\([^()]*\))*\))?\s*)*(?:public\s+|private\s+|protected\s+|readonly\s+)*(\w+)\s*([?!])?\s*:\s*([\w.<>\[\]]+)`)
	tsRelRe    = regexp.MustCompile(`@(ManyToOne|OneToOne|OneToMany|ManyToMany)\s*\(\s*(?:\(\s*\)|\w+)\s*=>\s*(\w+)`)
	tsPropRe   = regexp.MustCompile(`(?m)^\s*(?:public\s+|private\s+|protected\s+|readonly\s+)*(\w+)\s*[?!]?\s*[:;=]`)
	tsJoinRe   = regexp.MustCompile(`@JoinColumn\s*\(\s*\{[^}]*name\s*:\s*("[^"]*"|'[^']*')`)

	tsNameOptRe     = regexp.MustCompile(`name\s*:\s*("[^"]*"|'[^']*')`)
	tsQuotedRe      = regexp.MustCompile(`"[^"]*"|'[^']*'`)
	tsTypeOptRe     = regexp.MustCompile(`type\s*:\s*("[^"]*"|'[^']*')`)
	tsUniqueOptRe   = regexp.MustCompile(`unique\s*:\s*true`)
	tsNullableOptRe = regexp.MustCompile(`nullable\s*:\s*true`)
)

func extractTypeORM(src textutil.Source, f crawler.File, out *fileEntities, tables map[string]string) {
	entityIdx := tsEntityRe.FindAllStringSubmatchIndex(src.Masked, -1)
	if entityIdx == nil {
		return
	}

	// Register every entity's table name up front so relations between
	// classes in the same file resolve regardless of declaration order.
	for _, idx := range entityIdx {
		class := src.MaskedGroup(idx, 2)
		tables[class] = typeormTableName(src.Group(idx, 1), class)
	}

	for _, idx := range entityIdx {
		class := src.MaskedGroup(idx, 2)
		body, bodyStart, _ := textutil.ExtractBlockBody(src.Masked, idx[1])
		if bodyStart < 0 {
			continue
		}
		litBody := src.Lit[bodyStart : bodyStart+len(body)]

		t := Table{Name: tables[class], File: f.Rel, Line: src.Line(idx[0])}
		for _, cidx := range tsColumnRe.FindAllStringSubmatchIndex(body, -1) {
			t.Columns = append(t.Columns, typeormColumn(body, litBody, cidx))
		}
		typeormRelations(body, litBody, &t, out, tables)
		out.tables = append(out.tables, t)
	}
}

// typeormTableName resolves @Entity("users"), @Entity({name: "users"})
// and the bare @Entity() default.
func typeormTableName(arg, class string) string {
	if m := tsNameOptRe.FindStringSubmatch(arg); m != nil {
		return stripQuotes(m[1])
	}
	trimmed := strings.TrimSpace(arg)
	if strings.HasPrefix(trimmed, `"`) || strings.HasPrefix(trimmed, "'") {
		if m := tsQuotedRe.FindString(trimmed); m != "" {
			return stripQuotes(m)
		}
	}
	return snakeCase(class)
}

func typeormColumn(body, litBody string, idx []int) Column {
	kind := body[idx[2]:idx[3]]
	options := litBody[idx[4]:idx[5]]
	col := Column{
		Name:       body[idx[6]:idx[7]],
		PrimaryKey: kind == "PrimaryGeneratedColumn" || kind == "PrimaryColumn",
		Unique:     tsUniqueOptRe.MatchString(options),
		Nullable:   tsNullableOptRe.MatchString(options),
	}
	if idx[8] >= 0 && body[idx[8]:idx[9]] == "?" {
		col.Nullable = true
	}
	switch {
	case tsTypeOptRe.MatchString(options):
		col.Type = stripQuotes(tsTypeOptRe.FindStringSubmatch(options)[1])
	case strings.HasPrefix(strings.TrimSpace(options), `"`), strings.HasPrefix(strings.TrimSpace(options), "'"):
		// @Column("varchar", {...}) passes the type as first argument.
		col.Type = stripQuotes(tsQuotedRe.FindString(options))
	default:
		col.Type = body[idx[10]:idx[11]]
	}
	return col
}

func typeormRelations(body, litBody string, t *Table, out *fileEntities, tables map[string]string) {
	for _, idx := range tsRelRe.FindAllStringSubmatchIndex(body, -1) {
		kind := body[idx[2]:idx[3]]
		target := body[idx[4]:idx[5]]
		targetTable := tableFor(tables, target, snakeCase)

		// Skip past the decorator's argument list, then take the text
		// up to the owning property declaration. @JoinColumn lives in
		// that stretch when present.
		after := closingParen(body, idx[0])
		if after < 0 {
			continue
		}
		window := body[after:]
		litWindow := litBody[after:]
		propName := ""
		declEnd := len(window)
		if pm := tsPropRe.FindStringSubmatchIndex(window); pm != nil {
			propName = window[pm[2]:pm[3]]
			declEnd = pm[1]
		}
		head := window[:declEnd]

		fkColumn := snakeCase(propName) + "_id"
		if jm := tsJoinRe.FindStringSubmatchIndex(litWindow[:declEnd]); jm != nil {
			if name := stripQuotes(litWindow[jm[2]:jm[3]]); name != "" {
				fkColumn = name
			}
		}

		switch kind {
		case "ManyToOne":
			t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
				Column: fkColumn, ReferencesTable: targetTable, ReferencesColumn: "id",
			})
			ensureColumn(t, Column{Name: fkColumn, Type: "integer"})
		case "OneToOne":
			// Only the side carrying @JoinColumn owns the column; the
			// inverse side declares no storage.
			if !strings.Contains(head, "@JoinColumn") {
				continue
			}
			t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
				Column: fkColumn, ReferencesTable: targetTable, ReferencesColumn: "id",
			})
			ensureColumn(t, Column{Name: fkColumn, Type: "integer", Unique: true})
		case "OneToMany":
			out.rels = append(out.rels, Relationship{FromTable: t.Name, ToTable: targetTable, Type: OneToMany})
		}
		// ManyToMany maps through a join table we cannot name reliably.
	}
}

// --- Sequelize ---

var (
	seqDefineRe    = regexp.MustCompile(`(\w+)\s*=\s*\w+\.define\s*\(\s*("[^"]*"|'[^']*')\s*,`)
	seqInitRe      = regexp.MustCompile(`(\w+)\.init\s*\(\s*\{`)
	seqAttrRe      = regexp.MustCompile(`(?m)^\s*(\w+)\s*:\s*\{`)
	seqAttrShortRe = regexp.MustCompile(`(?m)^\s*(\w+)\s*:\s*(?:DataTypes|Sequelize)\.(\w+)\s*,?\s*$`)
	seqTypeRe      = regexp.MustCompile(`type\s*:\s*(?:DataTypes|Sequelize)\.(\w+)`)
	seqPKRe        = regexp.MustCompile(`primaryKey\s*:\s*true`)
	seqUniqueRe    = regexp.MustCompile(`unique\s*:\s*true`)
	seqNotNullRe   = regexp.MustCompile(`allowNull\s*:\s*false`)
	seqTableNameRe = regexp.MustCompile(`tableName\s*:\s*("[^"]*"|'[^']*')`)
	seqAssocRe     = regexp.MustCompile(`(\w+)\.(belongsTo|hasMany|hasOne|belongsToMany)\s*\(\s*(\w+)`)
	seqFKOptRe     = regexp.MustCompile(`foreignKey\s*:\s*("[^"]*"|'[^']*')`)
)

func extractSequelize(src textutil.Source, f crawler.File, out *fileEntities, tables map[string]string) {
	for _, idx := range seqDefineRe.FindAllStringSubmatchIndex(src.Masked, -1) {
		varName := src.MaskedGroup(idx, 1)
		model := stripQuotes(src.Group(idx, 2))
		sequelizeModel(src, f, out, tables, idx, varName, model)
	}
	for _, idx := range seqInitRe.FindAllStringSubmatchIndex(src.Masked, -1) {
		varName := src.MaskedGroup(idx, 1)
		sequelizeModel(src, f, out, tables, idx, varName, varName)
	}

	for _, idx := range seqAssocRe.FindAllStringSubmatchIndex(src.Masked, -1) {
		ownerVar := src.MaskedGroup(idx, 1)
		verb := src.MaskedGroup(idx, 2)
		targetVar := src.MaskedGroup(idx, 3)
		owner, ok := tables[ownerVar]
		if !ok {
			continue
		}
		target := tableFor(tables, targetVar, func(s string) string { return pluralize(strings.ToLower(s)) })

		callEnd := closingParen(src.Masked, idx[0])
		if callEnd < idx[1] {
			callEnd = len(src.Masked)
		}
		opts := src.Lit[idx[1]:callEnd]

		switch verb {
		case "belongsTo":
			fkColumn := lowerFirst(targetVar) + "Id"
			if m := seqFKOptRe.FindStringSubmatch(opts); m != nil {
				fkColumn = stripQuotes(m[1])
			}
			for i := range out.tables {
				if out.tables[i].Name == owner {
					out.tables[i].ForeignKeys = append(out.tables[i].ForeignKeys, ForeignKey{
						Column: fkColumn, ReferencesTable: target, ReferencesColumn: "id",
					})
					ensureColumn(&out.tables[i], Column{Name: fkColumn, Type: "INTEGER"})
				}
			}
		case "hasMany":
			out.rels = append(out.rels, Relationship{FromTable: owner, ToTable: target, Type: OneToMany})
		case "hasOne":
			out.rels = append(out.rels, Relationship{FromTable: owner, ToTable: target, Type: OneToOne})
		}
		// belongsToMany goes through a junction model declared on its own.
	}
}

func sequelizeModel(src textutil.Source, f crawler.File, out *fileEntities, tables map[string]string, idx []int, varName, modelName string) {
	attrs, attrStart, attrEnd := textutil.ExtractBlockBody(src.Masked, idx[1]-1)
	if attrStart < 0 {
		return
	}
	litAttrs := src.Lit[attrStart : attrStart+len(attrs)]

	table := pluralize(strings.ToLower(modelName))
	// tableName lives in the options object after the attribute block;
	// stop looking at the end of the define or init call.
	callEnd := closingParen(src.Masked, idx[0])
	if callEnd < attrEnd {
		callEnd = len(src.Masked)
	}
	if m := seqTableNameRe.FindStringSubmatch(src.Lit[attrEnd:callEnd]); m != nil {
		table = stripQuotes(m[1])
	}

	tables[varName] = table
	if modelName != varName {
		tables[modelName] = table
	}

	t := Table{Name: table, File: f.Rel, Line: src.Line(idx[0])}
	sequelizeAttributes(attrs, litAttrs, &t)
	out.tables = append(out.tables, t)
}

func sequelizeAttributes(attrs, litAttrs string, t *Table) {
	for _, idx := range seqAttrRe.FindAllStringSubmatchIndex(attrs, -1) {
		if braceDepth(attrs, idx[0]) != 0 {
			continue
		}
		name := attrs[idx[2]:idx[3]]
		body, bodyStart, _ := textutil.ExtractBlockBody(attrs, idx[1]-1)
		if bodyStart < 0 {
			continue
		}
		opts := litAttrs[bodyStart : bodyStart+len(body)]
		col := Column{
			Name:     name,
			Nullable: !seqNotNullRe.MatchString(opts),
			Unique:   seqUniqueRe.MatchString(opts),
		}
		if m := seqTypeRe.FindStringSubmatch(opts); m != nil {
			col.Type = m[1]
		}
		if seqPKRe.MatchString(opts) {
			col.PrimaryKey = true
			col.Nullable = false
		}
		t.Columns = append(t.Columns, col)
	}
	// email: DataTypes.STRING shorthand.
	for _, idx := range seqAttrShortRe.FindAllStringSubmatchIndex(attrs, -1) {
		if braceDepth(attrs, idx[0]) != 0 {
			continue
		}
		ensureColumn(t, Column{Name: attrs[idx[2]:idx[3]], Type: attrs[idx[4]:idx[5]], Nullable: true})
	}
}

// --- Mongoose ---

var (
	mgSchemaRe = regexp.MustCompile(`(?:const|let|var)\s+(\w+)\s*=\s*new\s+(?:\w+\.)?Schema\s*(?:<[^>]*>)?\s*\(`)
	mgModelRe  = regexp.MustCompile(`(?:\w+\.)?model\s*(?:<[^>]*>)?\s*\(\s*("[^"]*"|'[^']*')\s*,\s*(\w+)`)
	mgFieldRe  = regexp.MustCompile(`(?m)^\s*(\w+)\s*:\s*(\[)?\s*\{`)
	mgShortRe  = regexp.MustCompile(`(?m)^\s*(\w+)\s*:\s*(\[)?\s*(?:\w+\.)?(?:Schema\.)?(?:Types\.)?(String|Number|Boolean|Date|Buffer|ObjectId|Decimal128|Mixed)\s*\]?\s*,?\s*$`)
	mgTypeRe   = regexp.MustCompile(`type\s*:\s*(?:\w+\.)?(?:Schema\.)?(?:Types\.)?(\w+)`)
	mgRefRe    = regexp.MustCompile(`ref\s*:\s*("[^"]*"|'[^']*')`)
	mgReqRe    = regexp.MustCompile(`required\s*:\s*true`)
	mgUniqRe   = regexp.MustCompile(`unique\s*:\s*true`)
)

func extractMongoose(src textutil.Source, f crawler.File, out *fileEntities, tables map[string]string) {
	schemaIdx := mgSchemaRe.FindAllStringSubmatchIndex(src.Masked, -1)
	if schemaIdx == nil {
		return
	}

	// model('User', userSchema) binds a schema variable to its
	// collection name.
	collections := map[string]string{}
	for _, idx := range mgModelRe.FindAllStringSubmatchIndex(src.Masked, -1) {
		model := stripQuotes(src.Group(idx, 1))
		schemaVar := src.MaskedGroup(idx, 2)
		collections[schemaVar] = pluralize(strings.ToLower(model))
	}

	for _, idx := range schemaIdx {
		schemaVar := src.MaskedGroup(idx, 1)
		table, ok := collections[schemaVar]
		if !ok {
			table = pluralize(strings.ToLower(strings.TrimSuffix(schemaVar, "Schema")))
		}
		tables[schemaVar] = table

		body, bodyStart, _ := textutil.ExtractBlockBody(src.Masked, idx[1]-1)
		if bodyStart < 0 {
			continue
		}
		litBody := src.Lit[bodyStart : bodyStart+len(body)]

		t := Table{Name: table, File: f.Rel, Line: src.Line(idx[0])}
		t.Columns = append(t.Columns, Column{Name: "_id", Type: "ObjectId", PrimaryKey: true})
		mongooseFields(body, litBody, &t, out)
		out.tables = append(out.tables, t)
	}
}

func mongooseFields(body, litBody string, t *Table, out *fileEntities) {
	for _, idx := range mgFieldRe.FindAllStringSubmatchIndex(body, -1) {
		if braceDepth(body, idx[0]) != 0 {
			continue
		}
		name := body[idx[2]:idx[3]]
		isArray := idx[4] >= 0
		fieldBody, bodyStart, _ := textutil.ExtractBlockBody(body, idx[1]-1)
		if bodyStart < 0 {
			continue
		}
		opts := litBody[bodyStart : bodyStart+len(fieldBody)]
		col := Column{
			Name:     name,
			Nullable: !mgReqRe.MatchString(opts),
			Unique:   mgUniqRe.MatchString(opts),
		}
		if m := mgTypeRe.FindStringSubmatch(opts); m != nil {
			col.Type = m[1]
		}
		if m := mgRefRe.FindStringSubmatch(opts); m != nil {
			target := pluralize(strings.ToLower(stripQuotes(m[1])))
			if isArray {
				// An array of references reads as the one side of a
				// one-to-many.
				out.rels = append(out.rels, Relationship{FromTable: t.Name, ToTable: target, Type: OneToMany})
			} else {
				t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
					Column: name, ReferencesTable: target, ReferencesColumn: "_id",
				})
			}
		}
		t.Columns = append(t.Columns, col)
	}
	// title: String shorthand, with or without array brackets.
	for _, idx := range mgShortRe.FindAllStringSubmatchIndex(body, -1) {
		if braceDepth(body, idx[0]) != 0 {
			continue
		}
		ensureColumn(t, Column{Name: body[idx[2]:idx[3]], Type: body[idx[6]:idx[7]], Nullable: true})
	}
}

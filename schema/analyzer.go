package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"codeatlas/analysis"
	"codeatlas/detect"
	"codeatlas/internal/crawler"
)

const analysisType = "database_schema"

// fileEntities is what one file contributes before the second pass.
// Strategies fill it without looking at any other file.
type fileEntities struct {
	tables []Table
	rels   []Relationship
}

type strategy interface {
	name() string
	extensions() []string
	// readsContent is false for strategies that open files themselves,
	// e.g. the SQLite driver; those are exempt from the size guard.
	readsContent() bool
	extract(ctx context.Context, f crawler.File, src []byte) (fileEntities, error)
}

func strategyFor(m detect.Match) strategy {
	switch m.Language {
	case detect.LangSQLite:
		return sqliteStrategy{}
	case detect.LangPython:
		return pythonStrategy{}
	case detect.LangPrisma:
		return prismaStrategy{}
	case detect.LangTypeScript:
		return typescriptStrategy{}
	case detect.LangJava:
		return javaStrategy{}
	case detect.LangCSharp:
		return csharpStrategy{}
	case detect.LangRuby:
		return rubyStrategy{}
	case detect.LangGo:
		return golangStrategy{}
	case detect.LangPHP:
		return phpStrategy{}
	case detect.LangABAP:
		return abapStrategy{}
	}
	return nil
}

// Parse analyzes the project at root and returns its database schema.
// Per-file failures are collected into the result; only an unusable
// root, an unsupported project, or cancellation fail the call.
func Parse(ctx context.Context, root string, opts analysis.Options) (*Result, error) {
	ctx, cancel := opts.Context(ctx)
	defer cancel()
	log := opts.Log()

	matches, err := detect.Detect(root)
	if err != nil {
		return nil, fmt.Errorf("schema analysis: %w", err)
	}
	strat, match := pickStrategy(matches)
	if strat == nil {
		return nil, &analysis.UnsupportedProjectError{Root: root, Artifact: analysisType}
	}

	files, err := crawler.FindSourceFiles(root, strat.extensions(), opts.SkipDirs)
	if err != nil {
		return nil, fmt.Errorf("schema analysis: %w", err)
	}

	maxSize := opts.MaxFileSize()
	parts, parseErrs, err := analysis.RunFiles(ctx, files, opts.WorkerCount(), func(ctx context.Context, f crawler.File) (fileEntities, error) {
		var src []byte
		if strat.readsContent() {
			var readErr error
			src, readErr = crawler.ReadFileSafely(f.Path, maxSize)
			if readErr != nil {
				return fileEntities{}, readErr
			}
		}
		return strat.extract(ctx, f, src)
	})
	if err != nil {
		return nil, fmt.Errorf("schema analysis: %w", err)
	}
	for _, pe := range parseErrs {
		log.Warn("schema extraction failed", "strategy", strat.name(), "file", pe.FilePath, "error", pe.Message)
	}

	result := assemble(match, parts, parseErrs, log)
	log.Info("schema analysis complete",
		"root", root,
		"language", match.Language,
		"framework", match.Framework,
		"files", len(files),
		"tables", len(result.Tables),
		"relationships", len(result.Relationships),
		"failed_files", len(parseErrs))
	return result, nil
}

func pickStrategy(matches []detect.Match) (strategy, detect.Match) {
	for _, m := range matches {
		if s := strategyFor(m); s != nil {
			return s, m
		}
	}
	return nil, detect.Match{}
}

// assemble merges per-file entities in file order and runs the second
// pass: foreign keys become relationships when the referenced table was
// parsed, and statistics are computed over the complete set.
func assemble(match detect.Match, parts []fileEntities, parseErrs []analysis.ParseError, log *slog.Logger) *Result {
	collected := make([]Table, 0)
	explicit := make([]Relationship, 0)
	for _, p := range parts {
		collected = append(collected, p.tables...)
		explicit = append(explicit, p.rels...)
	}

	// The same table can surface from two files, a migration and a
	// model for instance. Fold later sightings into the first.
	tables := make([]Table, 0, len(collected))
	byName := make(map[string]int, len(collected))
	for _, t := range collected {
		j, ok := byName[t.Name]
		if !ok {
			byName[t.Name] = len(tables)
			tables = append(tables, t)
			continue
		}
		mergeTable(&tables[j], t)
	}

	for i := range tables {
		if tables[i].Columns == nil {
			tables[i].Columns = []Column{}
		}
		if tables[i].ForeignKeys == nil {
			tables[i].ForeignKeys = []ForeignKey{}
		}
		if tables[i].Indexes == nil {
			tables[i].Indexes = []Index{}
		}
	}

	known := make(map[string]bool, len(tables))
	for _, t := range tables {
		known[t.Name] = true
	}

	rels := make([]Relationship, 0)
	seen := map[Relationship]bool{}
	addRel := func(r Relationship) {
		if seen[r] {
			return
		}
		seen[r] = true
		rels = append(rels, r)
	}

	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if !known[fk.ReferencesTable] {
				log.Warn("foreign key references unknown table, edge omitted",
					"table", t.Name, "column", fk.Column, "references", fk.ReferencesTable)
				continue
			}
			relType := ManyToOne
			if columnUnique(t, fk.Column) {
				relType = OneToOne
			}
			addRel(Relationship{FromTable: t.Name, ToTable: fk.ReferencesTable, Type: relType})
		}
	}
	for _, r := range explicit {
		if !known[r.FromTable] || !known[r.ToTable] {
			continue
		}
		addRel(r)
	}

	stats := Statistics{
		TotalTables:        len(tables),
		TotalRelationships: len(rels),
	}
	for _, t := range tables {
		stats.TotalColumns += len(t.Columns)
		for _, c := range t.Columns {
			if c.PrimaryKey {
				stats.TablesWithPrimaryKey++
				break
			}
		}
	}

	return &Result{
		AnalysisType:  analysisType,
		Version:       analysis.Version,
		Language:      match.Language,
		Framework:     match.Framework,
		Tables:        tables,
		Relationships: rels,
		Statistics:    stats,
		ParseErrors:   parseErrs,
	}
}

func columnUnique(t Table, name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return c.Unique
		}
	}
	return false
}

// mergeTable folds another sighting of the same table into dst. New
// columns, foreign keys and indexes are appended, existing entries win.
func mergeTable(dst *Table, src Table) {
	for _, c := range src.Columns {
		ensureColumn(dst, c)
	}
	for _, fk := range src.ForeignKeys {
		if !hasForeignKey(dst, fk) {
			dst.ForeignKeys = append(dst.ForeignKeys, fk)
		}
	}
	for _, idx := range src.Indexes {
		if !hasIndex(dst, idx.Name) {
			dst.Indexes = append(dst.Indexes, idx)
		}
	}
}

func hasForeignKey(t *Table, fk ForeignKey) bool {
	for _, f := range t.ForeignKeys {
		if f == fk {
			return true
		}
	}
	return false
}

func hasIndex(t *Table, name string) bool {
	for _, i := range t.Indexes {
		if i.Name == name {
			return true
		}
	}
	return false
}

// snakeCase converts CamelCase identifiers to snake_case table naming.
func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				prev := name[i-1]
				if prev >= 'a' && prev <= 'z' || prev >= '0' && prev <= '9' {
					b.WriteByte('_')
				}
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// pluralize applies the naive inflection ORMs use for default table
// names: User -> users, Category -> categories, Address -> addresses.
func pluralize(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, "y") && len(lower) > 1 && !isVowel(lower[len(lower)-2]):
		return name[:len(name)-1] + "ies"
	case strings.HasSuffix(lower, "s"), strings.HasSuffix(lower, "x"),
		strings.HasSuffix(lower, "z"), strings.HasSuffix(lower, "ch"),
		strings.HasSuffix(lower, "sh"):
		return name + "es"
	default:
		return name + "s"
	}
}

func isVowel(ch byte) bool {
	switch ch {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

// defaultTableName is the shared ORM convention: snake_case pluralized.
func defaultTableName(class string) string {
	return pluralize(snakeCase(class))
}

// stripQuotes removes one matching pair of ', " or ` delimiters.
func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	open := s[0]
	if (open == '\'' || open == '"' || open == '`') && s[len(s)-1] == open {
		return s[1 : len(s)-1]
	}
	return s
}

// ensureColumn appends a column unless one with that name exists, used
// for relation columns the ORM creates implicitly.
func ensureColumn(t *Table, col Column) {
	for _, c := range t.Columns {
		if c.Name == col.Name {
			return
		}
	}
	t.Columns = append(t.Columns, col)
}

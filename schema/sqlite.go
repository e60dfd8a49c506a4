package schema

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"codeatlas/internal/crawler"
)

// sqliteStrategy introspects a database file through the catalog
// instead of reading source text. Files are opened read-only and the
// handle always closed before returning, so a failed pragma can never
// leak a descriptor.
type sqliteStrategy struct{}

func (sqliteStrategy) name() string         { return "sqlite" }
func (sqliteStrategy) extensions() []string { return []string{".db", ".sqlite", ".sqlite3"} }
func (sqliteStrategy) readsContent() bool   { return false }

func (sqliteStrategy) extract(ctx context.Context, f crawler.File, _ []byte) (fileEntities, error) {
	if !hasSQLiteMagic(f.Path) {
		// extension matched but the file is not a database
		return fileEntities{}, nil
	}

	db, err := sql.Open("sqlite3", "file:"+f.Path+"?mode=ro")
	if err != nil {
		return fileEntities{}, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	names, err := tableNames(ctx, db)
	if err != nil {
		return fileEntities{}, err
	}

	var out fileEntities
	for _, name := range names {
		t, err := introspectTable(ctx, db, name)
		if err != nil {
			return fileEntities{}, err
		}
		t.File = f.Rel
		out.tables = append(out.tables, t)
	}
	return out, nil
}

func hasSQLiteMagic(path string) bool {
	fh, err := os.Open(path)
	if err != nil {
		return false
	}
	defer fh.Close()

	header := make([]byte, 16)
	if _, err := io.ReadFull(fh, header); err != nil {
		return false
	}
	return string(header) == "SQLite format 3\x00"
}

func tableNames(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func introspectTable(ctx context.Context, db *sql.DB, name string) (Table, error) {
	t := Table{Name: name}
	quoted := quoteIdent(name)

	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+quoted+")")
	if err != nil {
		return t, fmt.Errorf("table_info %s: %w", name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid, notNull, pk int
			colName, colType string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return t, fmt.Errorf("table_info %s: %w", name, err)
		}
		t.Columns = append(t.Columns, Column{
			Name:       colName,
			Type:       colType,
			Nullable:   notNull == 0 && pk == 0,
			PrimaryKey: pk > 0,
		})
	}
	if err := rows.Err(); err != nil {
		return t, fmt.Errorf("table_info %s: %w", name, err)
	}

	if err := introspectForeignKeys(ctx, db, quoted, &t); err != nil {
		return t, err
	}
	if err := introspectIndexes(ctx, db, quoted, &t); err != nil {
		return t, err
	}
	return t, nil
}

func introspectForeignKeys(ctx context.Context, db *sql.DB, quoted string, t *Table) error {
	rows, err := db.QueryContext(ctx, "PRAGMA foreign_key_list("+quoted+")")
	if err != nil {
		return fmt.Errorf("foreign_key_list %s: %w", t.Name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id, seq                    int
			table, from                string
			to                         sql.NullString
			onUpdate, onDelete, match_ string
		)
		if err := rows.Scan(&id, &seq, &table, &from, &to, &onUpdate, &onDelete, &match_); err != nil {
			return fmt.Errorf("foreign_key_list %s: %w", t.Name, err)
		}
		refColumn := "id"
		if to.Valid {
			refColumn = to.String
		}
		t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
			Column:           from,
			ReferencesTable:  table,
			ReferencesColumn: refColumn,
		})
	}
	return rows.Err()
}

func introspectIndexes(ctx context.Context, db *sql.DB, quoted string, t *Table) error {
	rows, err := db.QueryContext(ctx, "PRAGMA index_list("+quoted+")")
	if err != nil {
		return fmt.Errorf("index_list %s: %w", t.Name, err)
	}
	defer rows.Close()

	type indexEntry struct {
		name   string
		unique bool
	}
	var entries []indexEntry
	for rows.Next() {
		var (
			seq            int
			name, origin   string
			unique, parted int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &parted); err != nil {
			return fmt.Errorf("index_list %s: %w", t.Name, err)
		}
		if strings.HasPrefix(name, "sqlite_") {
			continue
		}
		entries = append(entries, indexEntry{name: name, unique: unique == 1})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, e := range entries {
		cols, err := indexColumns(ctx, db, e.name)
		if err != nil {
			return err
		}
		t.Indexes = append(t.Indexes, Index{Name: e.name, Columns: cols, Unique: e.unique})
		if e.unique && len(cols) == 1 {
			for i := range t.Columns {
				if t.Columns[i].Name == cols[0] {
					t.Columns[i].Unique = true
				}
			}
		}
	}
	return nil
}

func indexColumns(ctx context.Context, db *sql.DB, index string) ([]string, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA index_info("+quoteIdent(index)+")")
	if err != nil {
		return nil, fmt.Errorf("index_info %s: %w", index, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			seqno, cid int
			name       sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, fmt.Errorf("index_info %s: %w", index, err)
		}
		if name.Valid {
			cols = append(cols, name.String)
		}
	}
	return cols, rows.Err()
}

// quoteIdent escapes an identifier for interpolation into a PRAGMA,
// which cannot take bound parameters.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

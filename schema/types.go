// Package schema extracts database structure from a project: ORM model
// declarations, migration DSLs, schema files, or a SQLite database
// itself, normalized into one table/relationship graph.
package schema

import "codeatlas/analysis"

// Result is the database_schema artifact for one project parse.
type Result struct {
	AnalysisType  string                `json:"analysis_type"`
	Version       string                `json:"version"`
	Language      string                `json:"language"`
	Framework     string                `json:"framework,omitempty"`
	Tables        []Table               `json:"tables"`
	Relationships []Relationship        `json:"relationships"`
	Statistics    Statistics            `json:"statistics"`
	ParseErrors   []analysis.ParseError `json:"parse_errors"`
}

// Table is one declared or introspected table.
type Table struct {
	Name        string       `json:"name"`
	File        string       `json:"file,omitempty"`
	Line        int          `json:"line,omitempty"`
	Columns     []Column     `json:"columns"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
	Indexes     []Index      `json:"indexes"`
}

type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	Unique     bool   `json:"unique"`
	PrimaryKey bool   `json:"primary_key"`
}

type ForeignKey struct {
	Column           string `json:"column"`
	ReferencesTable  string `json:"references_table"`
	ReferencesColumn string `json:"references_column"`
}

type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// Relationship types.
const (
	ManyToOne = "many-to-one"
	OneToMany = "one-to-many"
	OneToOne  = "one-to-one"
)

// Relationship is one edge between two parsed tables.
type Relationship struct {
	FromTable string `json:"from"`
	ToTable   string `json:"to"`
	Type      string `json:"type"`
}

type Statistics struct {
	TotalTables          int `json:"total_tables"`
	TotalColumns         int `json:"total_columns"`
	TotalRelationships   int `json:"total_relationships"`
	TablesWithPrimaryKey int `json:"tables_with_primary_key"`
}

// Package structure extracts the class model of a project: modules,
// classes with their members, the imports between files, and the
// inheritance and composition relationships the declarations imply.
package structure

import "codeatlas/analysis"

// Result is the code_structure artifact for one project parse.
type Result struct {
	AnalysisType  string                `json:"analysis_type"`
	Version       string                `json:"version"`
	Language      string                `json:"language"`
	Framework     string                `json:"framework,omitempty"`
	Modules       []Module              `json:"modules"`
	Classes       []Class               `json:"classes"`
	Imports       []Import              `json:"imports"`
	Relationships []Relationship        `json:"relationships"`
	Statistics    Statistics            `json:"statistics"`
	ParseErrors   []analysis.ParseError `json:"parse_errors"`
}

// Module is one source file in dotted-name form. File paths are unique
// within a project, so the name itself is the ID.
type Module struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	File       string `json:"file"`
	ClassCount int    `json:"class_count"`
}

// Class is one declared class or interface. The ID is module:name:line,
// derived only from parsed content so reruns over an unchanged tree
// reproduce it exactly.
type Class struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Module      string     `json:"module"`
	File        string     `json:"file"`
	Line        int        `json:"line"`
	BaseClasses []string   `json:"base_classes"`
	Decorators  []string   `json:"decorators"`
	IsAbstract  bool       `json:"is_abstract"`
	IsInterface bool       `json:"is_interface"`
	Methods     []Method   `json:"methods"`
	Properties  []Property `json:"properties"`
}

// Method is one member function of a class.
type Method struct {
	Name       string   `json:"name"`
	Line       int      `json:"line"`
	Parameters []string `json:"parameters"`
	IsStatic   bool     `json:"is_static"`
	IsPrivate  bool     `json:"is_private"`
}

// Property is one member attribute or field. Type is the annotation as
// written, empty when the declaration carries none.
type Property struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Line int    `json:"line"`
}

// Import is one import statement. Names lists the symbols bound from
// Source, empty when the whole module is imported.
type Import struct {
	Module string   `json:"module"`
	Source string   `json:"source"`
	Names  []string `json:"names"`
	Line   int      `json:"line"`
}

// Relationship types.
const (
	RelInheritance = "inheritance"
	RelComposition = "composition"
)

// Relationship is one edge between two declared classes: inheritance
// from a base-class entry, composition from a property whose type names
// another class.
type Relationship struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Type     string `json:"type"`
}

type Statistics struct {
	TotalModules           int     `json:"total_modules"`
	TotalClasses           int     `json:"total_classes"`
	TotalImports           int     `json:"total_imports"`
	TotalRelationships     int     `json:"total_relationships"`
	AbstractClasses        int     `json:"abstract_classes"`
	Interfaces             int     `json:"interfaces"`
	AverageMethodsPerClass float64 `json:"average_methods_per_class"`
	MaxInheritanceDepth    int     `json:"max_inheritance_depth"`
}

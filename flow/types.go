// Package flow extracts the runtime call graph from a project: declared
// functions and methods, the call sites between them with their
// control-flow context, entry points, and derived graph statistics.
package flow

import "codeatlas/analysis"

// Result is the runtime_flow artifact for one project parse.
type Result struct {
	AnalysisType string                `json:"analysis_type"`
	Version      string                `json:"version"`
	Language     string                `json:"language"`
	Framework    string                `json:"framework,omitempty"`
	Functions    []Function            `json:"functions"`
	Calls        []Call                `json:"calls"`
	ControlFlows []ControlFlowNode     `json:"control_flows"`
	EntryPoints  []string              `json:"entry_points"`
	Statistics   Statistics            `json:"statistics"`
	ParseErrors  []analysis.ParseError `json:"parse_errors"`
}

// Function is one declared function or method. The ID is
// module:name:line, derived only from parsed content so reruns over an
// unchanged tree reproduce it exactly.
type Function struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Module     string   `json:"module"`
	File       string   `json:"file"`
	LineStart  int      `json:"line_start"`
	LineEnd    int      `json:"line_end"`
	Parameters []string `json:"parameters"`
	Decorators []string `json:"decorators"`
	Complexity int      `json:"complexity"`
	IsAsync    bool     `json:"is_async"`
	IsMethod   bool     `json:"is_method"`
}

// Call types. A direct call resolved to a declared function; external
// and unresolved calls point at placeholder IDs carrying the callee
// text as written.
const (
	CallDirect     = "direct"
	CallExternal   = "external"
	CallUnresolved = "unresolved"
)

// Call is one call site. CallerID always refers to a Function in the
// same result; CalleeID may be a placeholder for calls that leave the
// project or could not be resolved.
type Call struct {
	CallerID      string `json:"caller_id"`
	CalleeID      string `json:"callee_id"`
	Line          int    `json:"line"`
	IsConditional bool   `json:"is_conditional"`
	IsLoop        bool   `json:"is_loop"`
	CallType      string `json:"call_type"`
}

// Control flow node types.
const (
	FlowIfElse    = "if_else"
	FlowForLoop   = "for_loop"
	FlowWhileLoop = "while_loop"
	FlowTryExcept = "try_except"
)

// ControlFlowNode is one branching construct inside a function body.
// Branches labels the arms: "if"/"elif"/"else" for conditionals, the
// handled exception types plus "finally" for try blocks, "body" and an
// optional "else" for loops.
type ControlFlowNode struct {
	ParentFunctionID string   `json:"parent_function_id"`
	FlowType         string   `json:"flow_type"`
	Condition        string   `json:"condition,omitempty"`
	Line             int      `json:"line"`
	Branches         []string `json:"branches"`
}

type Statistics struct {
	TotalFunctions       int        `json:"total_functions"`
	TotalCalls           int        `json:"total_calls"`
	TotalControlFlows    int        `json:"total_control_flows"`
	AsyncFunctions       int        `json:"async_functions"`
	MethodFunctions      int        `json:"method_functions"`
	AverageComplexity    float64    `json:"average_complexity"`
	OrphanFunctions      []string   `json:"orphan_functions"`
	CircularDependencies [][]string `json:"circular_dependencies"`
	MaxCallDepth         int        `json:"max_call_depth"`
}

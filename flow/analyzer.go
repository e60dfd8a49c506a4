package flow

import (
	"context"
	"fmt"
	"math"
	"path"
	"strings"

	"codeatlas/analysis"
	"codeatlas/detect"
	"codeatlas/internal/crawler"
)

const analysisType = "runtime_flow"

// fileEntities is what one file contributes before the second pass.
// Callee names stay plain text here; resolving them needs the complete
// function set.
type fileEntities struct {
	file      string
	module    string
	functions []Function
	calls     []rawCall
	flows     []ControlFlowNode
	imports   fileImports
}

// rawCall is a call site before callee resolution.
type rawCall struct {
	callerID    string
	callee      string
	line        int
	conditional bool
	loop        bool
}

type strategy interface {
	name() string
	extensions() []string
	extract(ctx context.Context, f crawler.File, src []byte) (fileEntities, error)
}

func strategyFor(m detect.Match) strategy {
	switch m.Language {
	case detect.LangPython:
		return pythonStrategy{}
	case detect.LangTypeScript:
		return typescriptStrategy{}
	case detect.LangJava:
		return javaStrategy{}
	case detect.LangCSharp:
		return csharpStrategy{}
	case detect.LangGo:
		return golangStrategy{}
	}
	return nil
}

// Parse analyzes the project at root and returns its call graph.
// Per-file failures are collected into the result; only an unusable
// root, an unsupported project, or cancellation fail the call.
func Parse(ctx context.Context, root string, opts analysis.Options) (*Result, error) {
	ctx, cancel := opts.Context(ctx)
	defer cancel()
	log := opts.Log()

	matches, err := detect.Detect(root)
	if err != nil {
		return nil, fmt.Errorf("flow analysis: %w", err)
	}
	strat, match := pickStrategy(matches)
	if strat == nil {
		return nil, &analysis.UnsupportedProjectError{Root: root, Artifact: analysisType}
	}

	files, err := crawler.FindSourceFiles(root, strat.extensions(), opts.SkipDirs)
	if err != nil {
		return nil, fmt.Errorf("flow analysis: %w", err)
	}

	maxSize := opts.MaxFileSize()
	parts, parseErrs, err := analysis.RunFiles(ctx, files, opts.WorkerCount(), func(ctx context.Context, f crawler.File) (fileEntities, error) {
		src, readErr := crawler.ReadFileSafely(f.Path, maxSize)
		if readErr != nil {
			return fileEntities{}, readErr
		}
		return strat.extract(ctx, f, src)
	})
	if err != nil {
		return nil, fmt.Errorf("flow analysis: %w", err)
	}
	for _, pe := range parseErrs {
		log.Warn("flow extraction failed", "strategy", strat.name(), "file", pe.FilePath, "error", pe.Message)
	}

	result := assemble(match, parts, parseErrs)
	log.Info("flow analysis complete",
		"root", root,
		"language", match.Language,
		"framework", match.Framework,
		"files", len(files),
		"functions", len(result.Functions),
		"calls", len(result.Calls),
		"entry_points", len(result.EntryPoints),
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

// assemble runs the second pass over the complete entity set: callee
// resolution, entry-point detection, and the graph statistics.
func assemble(match detect.Match, parts []fileEntities, parseErrs []analysis.ParseError) *Result {
	functions := make([]Function, 0)
	flows := make([]ControlFlowNode, 0)
	for _, p := range parts {
		functions = append(functions, p.functions...)
		flows = append(flows, p.flows...)
	}
	for i := range functions {
		if functions[i].Parameters == nil {
			functions[i].Parameters = []string{}
		}
		if functions[i].Decorators == nil {
			functions[i].Decorators = []string{}
		}
	}
	for i := range flows {
		if flows[i].Branches == nil {
			flows[i].Branches = []string{}
		}
	}

	res := newResolver(functions, parts)
	calls := make([]Call, 0)
	for _, p := range parts {
		for _, rc := range p.calls {
			calls = append(calls, res.resolve(p.file, p.imports, rc))
		}
	}

	entries := make([]string, 0)
	entrySet := make(map[string]bool)
	for _, fn := range functions {
		if isEntryPoint(fn) {
			entries = append(entries, fn.ID)
			entrySet[fn.ID] = true
		}
	}

	adj := buildAdjacency(calls)
	inbound := make(map[string]int)
	for _, c := range calls {
		if c.CallType == CallDirect {
			inbound[c.CalleeID]++
		}
	}

	order := make([]string, 0, len(functions))
	orphans := make([]string, 0)
	stats := Statistics{
		TotalFunctions:    len(functions),
		TotalCalls:        len(calls),
		TotalControlFlows: len(flows),
	}
	var complexity int
	for _, fn := range functions {
		order = append(order, fn.ID)
		complexity += fn.Complexity
		if fn.IsAsync {
			stats.AsyncFunctions++
		}
		if fn.IsMethod {
			stats.MethodFunctions++
		}
		if inbound[fn.ID] == 0 && !entrySet[fn.ID] {
			orphans = append(orphans, fn.ID)
		}
	}
	if len(functions) > 0 {
		avg := float64(complexity) / float64(len(functions))
		stats.AverageComplexity = math.Round(avg*100) / 100
	}
	stats.OrphanFunctions = orphans
	stats.CircularDependencies = findCycles(order, adj)
	stats.MaxCallDepth = maxCallDepth(entries, adj)

	return &Result{
		AnalysisType: analysisType,
		Version:      analysis.Version,
		Language:     match.Language,
		Framework:    match.Framework,
		Functions:    functions,
		Calls:        calls,
		ControlFlows: flows,
		EntryPoints:  entries,
		Statistics:   stats,
		ParseErrors:  parseErrs,
	}
}

// routeDecorators are the handler markers of the supported web
// frameworks, compared against a decorator's last dotted segment.
var routeDecorators = map[string]bool{
	"route": true, "get": true, "post": true, "put": true,
	"patch": true, "delete": true, "head": true, "options": true,
	"websocket": true,
	"getmapping": true, "postmapping": true, "putmapping": true,
	"patchmapping": true, "deletemapping": true, "requestmapping": true,
	"httpget": true, "httppost": true, "httpput": true,
	"httppatch": true, "httpdelete": true,
}

// isEntryPoint marks call-graph roots: functions only reachable from
// outside the project, either a main or a route handler.
func isEntryPoint(fn Function) bool {
	if fn.Name == "main" {
		return true
	}
	for _, dec := range fn.Decorators {
		if isRouteDecorator(dec) {
			return true
		}
	}
	return false
}

func isRouteDecorator(dec string) bool {
	name := dec
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSpace(name)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return routeDecorators[strings.ToLower(name)]
}

// functionID builds the stable identity every graph edge hangs off.
func functionID(module, name string, line int) string {
	return fmt.Sprintf("%s:%s:%d", module, name, line)
}

var importExts = map[string]bool{
	".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".mjs": true, ".cjs": true, ".py": true, ".go": true,
}

// cleanImportPath normalizes an import specifier to dotted module form:
// relative markers and a source extension are dropped and separators
// become dots, "./lib/utils.js" becomes "lib.utils".
func cleanImportPath(spec string) string {
	spec = strings.Trim(spec, "'\"` ")
	for {
		if strings.HasPrefix(spec, "./") {
			spec = spec[2:]
			continue
		}
		if strings.HasPrefix(spec, "../") {
			spec = spec[3:]
			continue
		}
		break
	}
	if ext := path.Ext(spec); importExts[ext] {
		spec = strings.TrimSuffix(spec, ext)
	}
	spec = strings.Trim(spec, "/")
	return strings.ReplaceAll(spec, "/", ".")
}

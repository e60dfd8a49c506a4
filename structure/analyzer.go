package structure

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"codeatlas/analysis"
	"codeatlas/detect"
	"codeatlas/internal/crawler"
)

const analysisType = "code_structure"

// fileEntities is what one file contributes before the second pass.
// Base classes and property types stay plain text here; turning them
// into relationship edges needs the complete class set.
type fileEntities struct {
	file    string
	module  string
	classes []Class
	imports []Import
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
	case detect.LangRuby:
		return rubyStrategy{}
	case detect.LangABAP:
		return abapStrategy{}
	}
	return nil
}

// Parse analyzes the project at root and returns its class model.
// Per-file failures are collected into the result; only an unusable
// root, an unsupported project, or cancellation fail the call.
func Parse(ctx context.Context, root string, opts analysis.Options) (*Result, error) {
	ctx, cancel := opts.Context(ctx)
	defer cancel()
	log := opts.Log()

	matches, err := detect.Detect(root)
	if err != nil {
		return nil, fmt.Errorf("structure analysis: %w", err)
	}
	strat, match := pickStrategy(matches)
	if strat == nil {
		return nil, &analysis.UnsupportedProjectError{Root: root, Artifact: analysisType}
	}

	files, err := crawler.FindSourceFiles(root, strat.extensions(), opts.SkipDirs)
	if err != nil {
		return nil, fmt.Errorf("structure analysis: %w", err)
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
		return nil, fmt.Errorf("structure analysis: %w", err)
	}
	for _, pe := range parseErrs {
		log.Warn("structure extraction failed", "strategy", strat.name(), "file", pe.FilePath, "error", pe.Message)
	}

	result := assemble(match, parts, parseErrs)
	log.Info("structure analysis complete",
		"root", root,
		"language", match.Language,
		"framework", match.Framework,
		"files", len(files),
		"modules", len(result.Modules),
		"classes", len(result.Classes),
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

// assemble runs the second pass over the complete class set: each
// parsed file becomes a module, base classes and property types resolve
// into relationship edges, and the statistics are computed.
func assemble(match detect.Match, parts []fileEntities, parseErrs []analysis.ParseError) *Result {
	modules := make([]Module, 0, len(parts))
	classes := make([]Class, 0)
	imports := make([]Import, 0)
	for _, p := range parts {
		modules = append(modules, Module{
			ID:         p.module,
			Name:       p.module,
			File:       p.file,
			ClassCount: len(p.classes),
		})
		classes = append(classes, p.classes...)
		imports = append(imports, p.imports...)
	}
	for i := range classes {
		if classes[i].BaseClasses == nil {
			classes[i].BaseClasses = []string{}
		}
		if classes[i].Decorators == nil {
			classes[i].Decorators = []string{}
		}
		if classes[i].Methods == nil {
			classes[i].Methods = []Method{}
		}
		if classes[i].Properties == nil {
			classes[i].Properties = []Property{}
		}
		for j := range classes[i].Methods {
			if classes[i].Methods[j].Parameters == nil {
				classes[i].Methods[j].Parameters = []string{}
			}
		}
	}
	for i := range imports {
		if imports[i].Names == nil {
			imports[i].Names = []string{}
		}
	}

	rels := inferRelationships(classes)

	stats := Statistics{
		TotalModules:       len(modules),
		TotalClasses:       len(classes),
		TotalImports:       len(imports),
		TotalRelationships: len(rels),
	}
	var methods int
	for _, cl := range classes {
		methods += len(cl.Methods)
		if cl.IsInterface {
			stats.Interfaces++
		} else if cl.IsAbstract {
			stats.AbstractClasses++
		}
	}
	if len(classes) > 0 {
		avg := float64(methods) / float64(len(classes))
		stats.AverageMethodsPerClass = math.Round(avg*100) / 100
	}
	stats.MaxInheritanceDepth = maxInheritanceDepth(classes, rels)

	return &Result{
		AnalysisType:  analysisType,
		Version:       analysis.Version,
		Language:      match.Language,
		Framework:     match.Framework,
		Modules:       modules,
		Classes:       classes,
		Imports:       imports,
		Relationships: rels,
		Statistics:    stats,
		ParseErrors:   parseErrs,
	}
}

// entityID builds the stable identity every relationship hangs off.
func entityID(module, name string, line int) string {
	return fmt.Sprintf("%s:%s:%d", module, name, line)
}

// classIndex resolves a simple class name against the declared set,
// preferring a declaration in the caller's own module, then the first
// one declared project-wide.
type classIndex struct {
	classes []Class
	byName  map[string][]int
}

func newClassIndex(classes []Class) *classIndex {
	ci := &classIndex{classes: classes, byName: make(map[string][]int)}
	for i, cl := range classes {
		ci.byName[cl.Name] = append(ci.byName[cl.Name], i)
	}
	return ci
}

func (ci *classIndex) resolve(name, module string) *Class {
	idxs := ci.byName[name]
	if len(idxs) == 0 {
		return nil
	}
	for _, i := range idxs {
		if ci.classes[i].Module == module {
			return &ci.classes[i]
		}
	}
	return &ci.classes[idxs[0]]
}

// inferRelationships matches base classes and property types against
// the declared class names. An entry that names no declared class
// contributes no edge; only what the project itself defines is drawn.
// Parallel edges collapse, two properties of one type are one edge.
func inferRelationships(classes []Class) []Relationship {
	idx := newClassIndex(classes)
	rels := make([]Relationship, 0)
	seen := make(map[Relationship]bool)
	add := func(r Relationship) {
		if !seen[r] {
			seen[r] = true
			rels = append(rels, r)
		}
	}

	for _, cl := range classes {
		for _, base := range cl.BaseClasses {
			name := simpleTypeName(stripTypeArgs(base))
			if name == "" {
				continue
			}
			if target := idx.resolve(name, cl.Module); target != nil && target.ID != cl.ID {
				add(Relationship{SourceID: cl.ID, TargetID: target.ID, Type: RelInheritance})
			}
		}
		for _, prop := range cl.Properties {
			name := simpleTypeName(unwrapType(prop.Type))
			if name == "" {
				continue
			}
			if target := idx.resolve(name, cl.Module); target != nil && target.ID != cl.ID {
				add(Relationship{SourceID: cl.ID, TargetID: target.ID, Type: RelComposition})
			}
		}
	}
	return rels
}

// typeWrappers are container and optionality generics whose argument is
// the type that matters for composition.
var typeWrappers = map[string]bool{
	"Optional": true, "List": true, "Set": true, "FrozenSet": true,
	"Sequence": true, "Iterable": true, "Tuple": true, "Dict": true,
	"Mapping": true, "Type": true,
	"Array": true, "ReadonlyArray": true, "Promise": true, "Record": true,
	"Map": true, "Nullable": true,
	"IEnumerable": true, "ICollection": true, "IList": true,
	"IReadOnlyList": true, "IDictionary": true, "Dictionary": true,
	"HashSet": true, "Collection": true, "ArrayList": true,
}

// unwrapType peels optionality and container wrappers off a property
// type until a bare name remains: Optional[List[Wheel]], Wheel[] and
// Wheel? all yield Wheel. Map-like generics yield their value type, a
// union keeps its single non-nullish member.
func unwrapType(t string) string {
	t = strings.TrimSpace(t)
	for {
		switch {
		case strings.HasSuffix(t, "?"):
			t = strings.TrimSuffix(t, "?")
		case strings.HasSuffix(t, "[]"):
			t = strings.TrimSuffix(t, "[]")
		default:
			if inner, ok := wrappedType(t); ok {
				t = inner
				break
			}
			if strings.Contains(t, "|") {
				got, ok := soleUnionMember(t)
				if !ok {
					return ""
				}
				t = got
				break
			}
			return strings.TrimSpace(t)
		}
		t = strings.TrimSpace(t)
		if t == "" {
			return ""
		}
	}
}

// soleUnionMember reduces a union type to its only member besides the
// nullish ones; a union of two real types names no single class.
func soleUnionMember(t string) (string, bool) {
	got := ""
	for _, part := range strings.Split(t, "|") {
		part = strings.TrimSpace(part)
		switch part {
		case "null", "undefined", "None", "":
			continue
		}
		if got != "" {
			return "", false
		}
		got = part
	}
	return got, got != ""
}

// wrappedType unwraps one W[X] or W<X> layer when W is a known wrapper,
// taking the last type argument so maps resolve to their value type.
func wrappedType(t string) (string, bool) {
	open := strings.IndexAny(t, "[<")
	if open <= 0 {
		return "", false
	}
	var closer byte = ']'
	if t[open] == '<' {
		closer = '>'
	}
	if t[len(t)-1] != closer {
		return "", false
	}
	head := simpleTypeName(t[:open])
	if !typeWrappers[head] {
		return "", false
	}
	args := splitTypeArgs(t[open+1 : len(t)-1])
	if len(args) == 0 {
		return "", false
	}
	return args[len(args)-1], true
}

// splitTypeArgs splits a generic argument list on top-level commas.
func splitTypeArgs(s string) []string {
	parts := make([]string, 0, 2)
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '<', '(':
			depth++
		case ']', '>', ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// stripTypeArgs drops a trailing generic argument list from a base
// class entry, Repository<User> resolves as Repository.
func stripTypeArgs(t string) string {
	if i := strings.IndexAny(t, "[<"); i >= 0 {
		return t[:i]
	}
	return t
}

var typeNameRe = regexp.MustCompile(`^[A-Za-z_]\w*$`)

// simpleTypeName reduces a type expression to the bare class name it
// references: qualification is dropped and forward-reference quotes are
// removed. Anything that is not a plain identifier afterwards yields "".
func simpleTypeName(t string) string {
	t = strings.TrimSpace(t)
	t = strings.Trim(t, `'"`)
	t = strings.TrimSpace(t)
	if i := strings.LastIndexByte(t, '.'); i >= 0 {
		t = t[i+1:]
	}
	if !typeNameRe.MatchString(t) {
		return ""
	}
	return t
}

// depthCap bounds the longest inheritance chain the depth pass will
// follow.
const depthCap = 50

// maxInheritanceDepth is the longest chain of inheritance edges in the
// project, counted in edges. Depths are memoized per class and edges
// back into the current chain are skipped, so a cyclic declaration pair
// cannot hang the walk.
func maxInheritanceDepth(classes []Class, rels []Relationship) int {
	adj := make(map[string][]string)
	for _, r := range rels {
		if r.Type == RelInheritance {
			adj[r.SourceID] = append(adj[r.SourceID], r.TargetID)
		}
	}

	memo := make(map[string]int)
	onPath := make(map[string]bool)
	var walk func(id string, budget int) int
	walk = func(id string, budget int) int {
		if budget == 0 {
			return 0
		}
		if d, ok := memo[id]; ok {
			return d
		}
		onPath[id] = true
		best := 0
		for _, next := range adj[id] {
			if onPath[next] {
				continue
			}
			if d := walk(next, budget-1) + 1; d > best {
				best = d
			}
		}
		delete(onPath, id)
		memo[id] = best
		return best
	}

	depth := 0
	for _, cl := range classes {
		if d := walk(cl.ID, depthCap); d > depth {
			depth = d
		}
	}
	if depth > depthCap {
		depth = depthCap
	}
	return depth
}

package flow

import (
	"regexp"
	"strings"
)

// fileImports records what one file pulls in, keyed by the local name a
// call site would use. modules maps an alias to a module specifier,
// symbols maps an imported name to its module and original symbol.
type fileImports struct {
	modules map[string]string
	symbols map[string][2]string
}

func newFileImports() fileImports {
	return fileImports{
		modules: make(map[string]string),
		symbols: make(map[string][2]string),
	}
}

func (fi fileImports) addModule(local, spec string) {
	if local != "" && spec != "" {
		fi.modules[local] = spec
	}
}

func (fi fileImports) addSymbol(local, spec, symbol string) {
	if local != "" && spec != "" && symbol != "" {
		fi.symbols[local] = [2]string{spec, symbol}
	}
}

// resolver answers callee lookups during the second pass. Functions are
// indexed by file and by bare name in declaration order, so a lookup
// with several candidates picks the first one declared.
type resolver struct {
	funcs   []Function
	byFile  map[string]map[string][]int
	byName  map[string][]int
	modules map[string]bool
}

func newResolver(funcs []Function, parts []fileEntities) *resolver {
	r := &resolver{
		funcs:   funcs,
		byFile:  make(map[string]map[string][]int),
		byName:  make(map[string][]int),
		modules: make(map[string]bool),
	}
	for i, fn := range funcs {
		ff := r.byFile[fn.File]
		if ff == nil {
			ff = make(map[string][]int)
			r.byFile[fn.File] = ff
		}
		ff[fn.Name] = append(ff[fn.Name], i)
		r.byName[fn.Name] = append(r.byName[fn.Name], i)
	}
	for _, p := range parts {
		if p.module != "" {
			r.modules[p.module] = true
		}
	}
	return r
}

// resolve classifies one call site. A bare name resolves against the
// caller's own file and then through recorded imports; a dotted name
// resolves through self/this receivers, module aliases, and project
// module segments. What stays unknown becomes external when dotted,
// unresolved when bare.
func (r *resolver) resolve(file string, imp fileImports, rc rawCall) Call {
	call := Call{
		CallerID:      rc.callerID,
		Line:          rc.line,
		IsConditional: rc.conditional,
		IsLoop:        rc.loop,
	}

	segs, ok := calleeSegments(rc.callee)
	if !ok || len(segs) == 0 {
		text := strings.Join(strings.Fields(rc.callee), "")
		if strings.Contains(text, ".") {
			return placeholderCall(call, CallExternal, text)
		}
		return placeholderCall(call, CallUnresolved, text)
	}

	if len(segs) == 1 {
		name := segs[0]
		if fn := r.inFile(file, name); fn != nil {
			return directCall(call, fn)
		}
		if ref, found := imp.symbols[name]; found {
			if fn := r.inModule(ref[0], ref[1]); fn != nil {
				return directCall(call, fn)
			}
			if !r.moduleKnown(ref[0]) {
				return placeholderCall(call, CallExternal, ref[0]+"."+ref[1])
			}
		}
		return placeholderCall(call, CallUnresolved, name)
	}

	head, last := segs[0], segs[len(segs)-1]
	dotted := strings.Join(segs, ".")

	if head == "self" || head == "this" || head == "cls" {
		if fn := r.inFile(file, last); fn != nil {
			return directCall(call, fn)
		}
		return placeholderCall(call, CallUnresolved, dotted)
	}

	if spec, found := imp.modules[head]; found {
		target := spec
		if len(segs) > 2 {
			target = spec + "." + strings.Join(segs[1:len(segs)-1], ".")
		}
		if fn := r.inModule(target, last); fn != nil {
			return directCall(call, fn)
		}
		if r.moduleKnown(target) {
			return placeholderCall(call, CallUnresolved, dotted)
		}
		return placeholderCall(call, CallExternal, dotted)
	}

	// Same-package static calls need no import in several of the
	// supported languages, so a head that names a project module still
	// resolves.
	if fn := r.inSegment(head, last); fn != nil {
		return directCall(call, fn)
	}
	return placeholderCall(call, CallExternal, dotted)
}

func directCall(call Call, fn *Function) Call {
	call.CallType = CallDirect
	call.CalleeID = fn.ID
	return call
}

func placeholderCall(call Call, kind, text string) Call {
	call.CallType = kind
	call.CalleeID = kind + ":" + text
	return call
}

func (r *resolver) inFile(file, name string) *Function {
	if idx := r.byFile[file][name]; len(idx) > 0 {
		return &r.funcs[idx[0]]
	}
	return nil
}

func (r *resolver) inModule(spec, name string) *Function {
	spec = cleanImportPath(spec)
	for _, i := range r.byName[name] {
		if moduleMatches(r.funcs[i].Module, spec) {
			return &r.funcs[i]
		}
	}
	// An import can name a package directory while modules carry the
	// file segment, so retry against each module's parent.
	for _, i := range r.byName[name] {
		if parent := parentModule(r.funcs[i].Module); moduleMatches(parent, spec) {
			return &r.funcs[i]
		}
	}
	return nil
}

func parentModule(module string) string {
	if i := strings.LastIndex(module, "."); i > 0 {
		return module[:i]
	}
	return ""
}

func (r *resolver) inSegment(seg, name string) *Function {
	for _, i := range r.byName[name] {
		if moduleHasSegment(r.funcs[i].Module, seg) {
			return &r.funcs[i]
		}
	}
	return nil
}

func (r *resolver) moduleKnown(spec string) bool {
	spec = cleanImportPath(spec)
	if spec == "" {
		return false
	}
	if r.modules[spec] {
		return true
	}
	for m := range r.modules {
		if moduleMatches(m, spec) || moduleMatches(parentModule(m), spec) {
			return true
		}
	}
	return false
}

// moduleMatches reports whether a declared module satisfies an import
// specifier. Either side may carry extra leading path segments, so a
// dotted-suffix match is accepted in both directions.
func moduleMatches(module, spec string) bool {
	if module == "" || spec == "" {
		return false
	}
	return module == spec ||
		strings.HasSuffix(module, "."+spec) ||
		strings.HasSuffix(spec, "."+module)
}

func moduleHasSegment(module, seg string) bool {
	return module == seg ||
		strings.HasPrefix(module, seg+".") ||
		strings.HasSuffix(module, "."+seg) ||
		strings.Contains(module, "."+seg+".")
}

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// calleeSegments splits a dotted callee into identifier segments.
// Optional-chaining operators count as plain dots. A callee that is not
// a pure identifier chain, a call on a call result for instance, yields
// ok false.
func calleeSegments(callee string) ([]string, bool) {
	s := strings.NewReplacer("?.", ".", "!.", ".").Replace(callee)
	fields := strings.Split(s, ".")
	segs := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if !identRe.MatchString(f) {
			return nil, false
		}
		segs = append(segs, f)
	}
	return segs, true
}

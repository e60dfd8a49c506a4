package flow

import (
	"context"
	"regexp"
	"strings"

	"codeatlas/analysis"
	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// typescriptStrategy finds function declarations, arrow bindings and
// class methods by declaration shape, then scans each body for calls
// and branches. Structure is matched on the masked view; names and
// conditions are read back from the literal view at the same offsets.
type typescriptStrategy struct{}

func (typescriptStrategy) name() string { return "typescript" }
func (typescriptStrategy) extensions() []string {
	return []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}
}

func (typescriptStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	out := fileEntities{file: f.Rel, module: analysis.ModuleName(f.Rel), imports: newFileImports()}
	src := textutil.NewSource(string(content), textutil.FamilyCurly)
	tsImports(src, &out.imports)
	collectCurly(&out, src, tsDecls(src), curlyConfig{keywords: cKeywords})
	return out, nil
}

var (
	tsClassRe     = regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(?:default[ \t]+)?(?:abstract[ \t]+)?class[ \t]+([A-Za-z_$][\w$]*)`)
	tsFuncRe      = regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(?:default[ \t]+)?(async[ \t]+)?function\s*\*?\s*([A-Za-z_$][\w$]*)\s*\(`)
	tsArrowRe     = regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(?:const|let|var)[ \t]+([A-Za-z_$][\w$]*)(?:[ \t]*:[^=\n]*)?[ \t]*=[ \t]*(async[ \t]+)?`)
	tsMethodRe    = regexp.MustCompile(`(?m)^[ \t]*(?:(?:public|private|protected|readonly|static|override|abstract)[ \t]+)*(async[ \t]+)?(?:get[ \t]+|set[ \t]+)?\*?[ \t]*([A-Za-z_$][\w$]*)\s*\(`)
	tsPropArrowRe = regexp.MustCompile(`(?m)^[ \t]*(?:(?:public|private|protected|readonly|static)[ \t]+)*([A-Za-z_$][\w$]*)[ \t]*=[ \t]*(async[ \t]+)?`)
)

func tsDecls(src textutil.Source) []curlyDecl {
	masked := src.Masked
	var decls []curlyDecl

	for _, m := range tsFuncRe.FindAllStringSubmatchIndex(masked, -1) {
		open := m[1] - 1
		close := matchParen(masked, open, len(masked))
		if close < 0 {
			continue
		}
		_, bodyStart, bodyEnd := textutil.ExtractBlockBody(masked, close+1)
		if bodyStart < 0 {
			continue
		}
		decls = append(decls, curlyDecl{
			name:       src.MaskedGroup(m, 2),
			params:     tsParamNames(masked[open+1 : close]),
			decorators: decoratorsAbove(src.Lit, m[0]),
			isAsync:    m[2] >= 0,
			headStart:  m[0],
			bodyStart:  bodyStart,
			bodyEnd:    bodyEnd,
		})
	}

	for _, m := range tsArrowRe.FindAllStringSubmatchIndex(masked, -1) {
		params, bodyStart, bodyEnd, ok := arrowSpanAfter(src, m[1])
		if !ok {
			continue
		}
		decls = append(decls, curlyDecl{
			name:       src.MaskedGroup(m, 1),
			params:     params,
			decorators: decoratorsAbove(src.Lit, m[0]),
			isAsync:    m[4] >= 0,
			headStart:  m[0],
			bodyStart:  bodyStart,
			bodyEnd:    bodyEnd,
		})
	}

	for _, cm := range tsClassRe.FindAllStringSubmatchIndex(masked, -1) {
		_, bs, be := textutil.ExtractBlockBody(masked, cm[1])
		if bs < 0 {
			continue
		}
		decls = append(decls, tsClassMembers(src, bs, be)...)
	}

	return decls
}

// tsClassMembers collects methods and arrow-bound properties declared
// directly in a class body, skipping anything nested deeper.
func tsClassMembers(src textutil.Source, bs, be int) []curlyDecl {
	masked := src.Masked
	body := masked[bs:be]
	var decls []curlyDecl

	for _, m := range tsMethodRe.FindAllStringSubmatchIndex(body, -1) {
		if depthFrom(body, 0, m[0]) != 0 {
			continue
		}
		name := body[m[4]:m[5]]
		if reservedCalls[name] {
			continue
		}
		open := bs + m[1] - 1
		close := matchParen(masked, open, be)
		if close < 0 {
			continue
		}
		// a signature ending in ; has no body to scan
		stop := close + 1
		for stop < be && masked[stop] != '{' && masked[stop] != ';' && masked[stop] != '}' {
			stop++
		}
		bodyStart, bodyEnd := -1, -1
		if stop < be && masked[stop] == '{' {
			_, bodyStart, bodyEnd = textutil.ExtractBlockBody(masked, stop)
		}
		decls = append(decls, curlyDecl{
			name:       name,
			params:     tsParamNames(masked[open+1 : close]),
			decorators: decoratorsAbove(src.Lit, bs+m[0]),
			isAsync:    m[2] >= 0,
			isMethod:   true,
			headStart:  bs + m[0],
			bodyStart:  bodyStart,
			bodyEnd:    bodyEnd,
		})
	}

	for _, m := range tsPropArrowRe.FindAllStringSubmatchIndex(body, -1) {
		if depthFrom(body, 0, m[0]) != 0 {
			continue
		}
		params, bodyStart, bodyEnd, ok := arrowSpanAfter(src, bs+m[1])
		if !ok {
			continue
		}
		decls = append(decls, curlyDecl{
			name:       body[m[2]:m[3]],
			params:     params,
			decorators: decoratorsAbove(src.Lit, bs+m[0]),
			isAsync:    m[4] >= 0,
			isMethod:   true,
			headStart:  bs + m[0],
			bodyStart:  bodyStart,
			bodyEnd:    bodyEnd,
		})
	}

	return decls
}

// arrowSpanAfter checks that pos starts an arrow function and returns
// its parameters and body bounds. An expression body runs to the end of
// its statement.
func arrowSpanAfter(src textutil.Source, pos int) (params []string, bodyStart, bodyEnd int, ok bool) {
	masked := src.Masked
	end := len(masked)
	j := skipWS(masked, pos, end)
	var after int
	switch {
	case j < end && masked[j] == '(':
		close := matchParen(masked, j, end)
		if close < 0 {
			return nil, -1, -1, false
		}
		params = tsParamNames(masked[j+1 : close])
		after = close + 1
	case j < end && isIdentStart(masked[j]):
		k := j
		for k < end && isIdentChar(masked[k]) {
			k++
		}
		params = []string{masked[j:k]}
		after = k
	default:
		return nil, -1, -1, false
	}

	arrow := strings.Index(masked[after:], "=>")
	semi := strings.IndexByte(masked[after:], ';')
	if arrow < 0 || (semi >= 0 && semi < arrow) {
		return nil, -1, -1, false
	}
	j = skipWS(masked, after+arrow+2, end)
	if j < end && masked[j] == '{' {
		_, bodyStart, bodyEnd = textutil.ExtractBlockBody(masked, j)
		if bodyStart < 0 {
			return nil, -1, -1, false
		}
		return params, bodyStart, bodyEnd, true
	}
	return params, j, statementEnd(masked, j, end), true
}

// statementEnd finds where an expression statement ends: the first
// semicolon or newline outside any nesting.
func statementEnd(masked string, from, end int) int {
	depth := 0
	for i := from; i < end; i++ {
		switch masked[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				return i
			}
			depth--
		case ';', '\n':
			if depth == 0 {
				return i
			}
		}
	}
	return end
}

func tsParamNames(list string) []string {
	var names []string
	for _, p := range splitParams(list) {
		p = stripParamDecorators(strings.TrimPrefix(p, "..."))
		if i := strings.IndexAny(p, ":=?"); i >= 0 {
			p = p[:i]
		}
		if f := strings.Fields(p); len(f) > 0 {
			p = f[len(f)-1]
		} else {
			continue
		}
		names = append(names, p)
	}
	return names
}

var (
	tsImportNamedRe   = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+(?:type[ \t]+)?(?:[A-Za-z_$][\w$]*\s*,\s*)?\{([^}]*)\}\s*from\s*['"]([^'"]+)['"]`)
	tsImportDefaultRe = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+(?:type[ \t]+)?([A-Za-z_$][\w$]*)\s*(?:,\s*\{[^}]*\})?\s*from\s*['"]([^'"]+)['"]`)
	tsImportStarRe    = regexp.MustCompile(`(?m)^[ \t]*import\s*\*\s*as[ \t]+([A-Za-z_$][\w$]*)[ \t]+from\s*['"]([^'"]+)['"]`)
	tsRequireRe       = regexp.MustCompile(`(?:const|let|var)[ \t]+([A-Za-z_$][\w$]*)\s*=\s*require\s*\(\s*['"]([^'"]+)['"]\s*\)`)
	tsRequireNamedRe  = regexp.MustCompile(`(?:const|let|var)[ \t]+\{([^}]*)\}\s*=\s*require\s*\(\s*['"]([^'"]+)['"]\s*\)`)
)

// tsImports records ES module and CommonJS imports. A default or whole
// module binding registers under both readings because the local name
// may be used bare or as a namespace.
func tsImports(src textutil.Source, imp *fileImports) {
	for _, m := range tsImportNamedRe.FindAllStringSubmatch(src.Lit, -1) {
		tsNamedSpecs(m[1], m[2], imp, " as ")
	}
	for _, m := range tsImportDefaultRe.FindAllStringSubmatch(src.Lit, -1) {
		imp.addModule(m[1], m[2])
		imp.addSymbol(m[1], m[2], m[1])
	}
	for _, m := range tsImportStarRe.FindAllStringSubmatch(src.Lit, -1) {
		imp.addModule(m[1], m[2])
	}
	for _, m := range tsRequireRe.FindAllStringSubmatch(src.Lit, -1) {
		imp.addModule(m[1], m[2])
		imp.addSymbol(m[1], m[2], m[1])
	}
	for _, m := range tsRequireNamedRe.FindAllStringSubmatch(src.Lit, -1) {
		tsNamedSpecs(m[1], m[2], imp, ":")
	}
}

func tsNamedSpecs(list, spec string, imp *fileImports, renameSep string) {
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		orig, local := item, item
		if i := strings.Index(item, renameSep); i >= 0 {
			orig = strings.TrimSpace(item[:i])
			local = strings.TrimSpace(item[i+len(renameSep):])
		}
		orig = strings.TrimSpace(strings.TrimPrefix(orig, "type "))
		imp.addSymbol(local, spec, orig)
	}
}

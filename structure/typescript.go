package structure

import (
	"context"
	"regexp"
	"strings"

	"codeatlas/analysis"
	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// typescriptStrategy matches class and interface declarations on the
// masked source and scans their brace-bounded bodies for members.
// Arrow-function properties count as methods.
type typescriptStrategy struct{}

func (typescriptStrategy) name() string { return "typescript" }
func (typescriptStrategy) extensions() []string {
	return []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}
}

var (
	tsClassDeclRe = regexp.MustCompile(`(?m)^[ \t]*(?:export\s+)?(?:default\s+)?(abstract\s+)?class\s+(\w+)(?:<[^>{]*>)?(?:\s+extends\s+([\w.$]+(?:<[^>{]*>)?))?(?:\s+implements\s+([^{]+?))?\s*\{`)
	tsInterfaceRe = regexp.MustCompile(`(?m)^[ \t]*(?:export\s+)?(?:default\s+)?interface\s+(\w+)(?:<[^>{]*>)?(?:\s+extends\s+([^{]+?))?\s*\{`)

	tsMethodRe = regexp.MustCompile(`(?m)^[ \t]*((?:(?:public|private|protected|readonly|static|abstract|async|override)\s+)*)(?:get\s+|set\s+)?(#?\w+)\s*(?:<[^>;{}]*>)?\s*\(`)
	tsPropRe   = regexp.MustCompile(`(?m)^[ \t]*((?:(?:public|private|protected|readonly|static|abstract|declare|override)\s+)*)(#?\w+)(\?)?\s*(?::\s*([^;=\n]+?))?\s*(=|;|$)`)
)

func (typescriptStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	src := textutil.NewSource(string(content), textutil.FamilyCurly)
	out := fileEntities{file: f.Rel, module: analysis.ModuleName(f.Rel)}

	tsImports(src, &out)

	for _, m := range tsClassDeclRe.FindAllStringSubmatchIndex(src.Masked, -1) {
		name := src.Group(m, 2)
		line := src.Line(m[0])
		cl := Class{
			ID:         entityID(out.module, name, line),
			Name:       name,
			Module:     out.module,
			File:       out.file,
			Line:       line,
			IsAbstract: m[2] >= 0,
			Decorators: decoratorsAbove(src.Lit, m[0]),
		}
		if base := src.Group(m, 3); base != "" {
			cl.BaseClasses = append(cl.BaseClasses, strings.TrimSpace(stripTypeArgs(base)))
		}
		cl.BaseClasses = append(cl.BaseClasses, baseList(src.Group(m, 4))...)

		body, bodyLo, _ := textutil.ExtractBlockBody(src.Masked, m[1]-1)
		if bodyLo >= 0 {
			tsMembers(src, &cl, body, bodyLo)
		}
		out.classes = append(out.classes, cl)
	}

	for _, m := range tsInterfaceRe.FindAllStringSubmatchIndex(src.Masked, -1) {
		name := src.Group(m, 1)
		line := src.Line(m[0])
		cl := Class{
			ID:          entityID(out.module, name, line),
			Name:        name,
			Module:      out.module,
			File:        out.file,
			Line:        line,
			IsInterface: true,
			Decorators:  decoratorsAbove(src.Lit, m[0]),
			BaseClasses: baseList(src.Group(m, 2)),
		}
		body, bodyLo, _ := textutil.ExtractBlockBody(src.Masked, m[1]-1)
		if bodyLo >= 0 {
			tsMembers(src, &cl, body, bodyLo)
		}
		out.classes = append(out.classes, cl)
	}

	return out, nil
}

func tsMembers(src textutil.Source, cl *Class, body string, bodyLo int) {
	claimed := map[int]bool{}
	for _, mm := range tsMethodRe.FindAllStringSubmatchIndex(body, -1) {
		if depthFrom(body, 0, mm[0]) != 0 {
			continue
		}
		name := body[mm[4]:mm[5]]
		mods := body[mm[2]:mm[3]]
		params := []string{}
		open := mm[1] - 1
		if end := matchParen(body, open); end > open {
			params = tsParamNames(src.Raw[bodyLo+open+1 : bodyLo+end])
		}
		claimed[mm[0]] = true
		cl.Methods = append(cl.Methods, Method{
			Name:       name,
			Line:       src.Line(bodyLo + mm[4]),
			Parameters: params,
			IsStatic:   strings.Contains(mods, "static"),
			IsPrivate:  tsPrivate(mods, name),
		})
	}

	for _, mm := range tsPropRe.FindAllStringSubmatchIndex(body, -1) {
		if depthFrom(body, 0, mm[0]) != 0 || claimed[mm[0]] {
			continue
		}
		name := body[mm[4]:mm[5]]
		if tsStmtKeywords[name] {
			continue
		}
		mods := body[mm[2]:mm[3]]
		line := src.Line(bodyLo + mm[4])

		// an initializer holding an arrow function is a method in
		// everything but spelling
		if body[mm[10]:mm[11]] == "=" {
			rest := restOfLine(body, mm[11])
			if arrow := strings.Index(rest, "=>"); arrow >= 0 {
				params := []string{}
				if po := strings.IndexByte(rest[:arrow], '('); po >= 0 {
					open := mm[11] + po
					if end := matchParen(body, open); end > open {
						params = tsParamNames(src.Raw[bodyLo+open+1 : bodyLo+end])
					}
				}
				cl.Methods = append(cl.Methods, Method{
					Name:       name,
					Line:       line,
					Parameters: params,
					IsStatic:   strings.Contains(mods, "static"),
					IsPrivate:  tsPrivate(mods, name),
				})
				continue
			}
		}

		typ := ""
		if mm[8] >= 0 {
			typ = strings.TrimSpace(src.Raw[bodyLo+mm[8] : bodyLo+mm[9]])
		}
		cl.Properties = append(cl.Properties, Property{Name: name, Type: typ, Line: line})
	}
}

func tsPrivate(mods, name string) bool {
	return strings.Contains(mods, "private") ||
		strings.HasPrefix(name, "#") || strings.HasPrefix(name, "_")
}

// tsStmtKeywords are line-leading words that can survive the member
// patterns but never name a member.
var tsStmtKeywords = map[string]bool{
	"if": true, "else": true, "for": true, "while": true, "do": true,
	"switch": true, "case": true, "break": true, "continue": true,
	"return": true, "throw": true, "try": true, "catch": true,
	"finally": true, "new": true, "typeof": true, "await": true,
	"const": true, "let": true, "var": true, "function": true,
	"import": true, "export": true, "class": true, "extends": true,
	"super": true, "this": true, "yield": true, "delete": true,
}

var (
	tsImportFromRe = regexp.MustCompile(`(?m)^[ \t]*import\s+(?:type\s+)?([^;'"]+?)\s+from\s+['"]([^'"]+)['"]`)
	tsImportBareRe = regexp.MustCompile(`(?m)^[ \t]*import\s+['"]([^'"]+)['"]`)
	tsRequireRe    = regexp.MustCompile(`(?m)^[ \t]*(?:const|let|var)\s+([\w$]+|\{[^}]*\})\s*=\s*require\s*\(\s*['"]([^'"]+)['"]`)
)

func tsImports(src textutil.Source, out *fileEntities) {
	add := func(source string, names []string, at int) {
		if source == "" {
			return
		}
		out.imports = append(out.imports, Import{
			Module: out.module,
			Source: source,
			Names:  names,
			Line:   src.Line(at),
		})
	}
	for _, m := range tsImportFromRe.FindAllStringSubmatchIndex(src.Lit, -1) {
		add(src.Group(m, 2), tsImportNames(src.Group(m, 1)), m[0])
	}
	for _, m := range tsImportBareRe.FindAllStringSubmatchIndex(src.Lit, -1) {
		add(src.Group(m, 1), nil, m[0])
	}
	for _, m := range tsRequireRe.FindAllStringSubmatchIndex(src.Lit, -1) {
		add(src.Group(m, 2), tsImportNames(src.Group(m, 1)), m[0])
	}
}

// tsImportNames parses an import clause into the exported names it
// binds: the default import, then the members of a braced list. A
// namespace import binds no exported name.
func tsImportNames(clause string) []string {
	names := make([]string, 0, 2)
	add := func(tok string) {
		tok = strings.TrimSpace(tok)
		if i := strings.Index(tok, " as "); i >= 0 {
			tok = strings.TrimSpace(tok[:i])
		}
		if i := strings.IndexByte(tok, ':'); i >= 0 {
			tok = strings.TrimSpace(tok[:i])
		}
		tok = strings.TrimPrefix(tok, "type ")
		if tok != "" && tok != "*" {
			names = append(names, tok)
		}
	}

	braced := ""
	if open := strings.IndexByte(clause, '{'); open >= 0 {
		if end := strings.IndexByte(clause, '}'); end > open {
			braced = clause[open+1 : end]
		}
		clause = clause[:open]
	}
	for _, tok := range strings.Split(clause, ",") {
		add(tok)
	}
	for _, tok := range strings.Split(braced, ",") {
		add(tok)
	}
	return names
}

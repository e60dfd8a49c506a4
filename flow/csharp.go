package flow

import (
	"context"
	"regexp"
	"strings"

	"codeatlas/analysis"
	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// csharpStrategy finds methods and constructors inside type bodies.
// Attribute lines above a declaration become its decorators, and both
// block and expression bodies are scanned for calls.
type csharpStrategy struct{}

func (csharpStrategy) name() string { return "csharp" }
func (csharpStrategy) extensions() []string {
	return []string{".cs"}
}

// foreach is the only loop keyword the shared C-family set lacks.
var csKeywords = func() map[string]string {
	m := make(map[string]string, len(cKeywords)+1)
	for k, v := range cKeywords {
		m[k] = v
	}
	m["foreach"] = FlowForLoop
	return m
}()

func (csharpStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	out := fileEntities{file: f.Rel, module: analysis.ModuleName(f.Rel), imports: newFileImports()}
	src := textutil.NewSource(string(content), textutil.FamilyCurly)
	csImports(src, &out.imports)
	collectCurly(&out, src, csDecls(src), curlyConfig{keywords: csKeywords})
	return out, nil
}

var (
	csClassRe = regexp.MustCompile(`(?m)^[ \t]*(?:(?:public|private|protected|internal|static|sealed|abstract|partial|readonly)[ \t]+)*(?:class|struct|record|interface)[ \t]+([A-Za-z_][\w]*)`)

	csMethodRe = regexp.MustCompile(`(?m)^[ \t]*((?:(?:public|private|protected|internal|static|virtual|override|sealed|abstract|async|extern|unsafe|partial|new|readonly)[ \t]+)*)([A-Za-z_][\w]*(?:\s*<[^;{}]*?>)?(?:\[\s*,?\s*\])*\??)[ \t]+([A-Za-z_][\w]*)\s*(?:<[^;{}]*?>\s*)?\(`)

	csCtorRe = regexp.MustCompile(`(?m)^[ \t]*(?:(?:public|private|protected|internal|static)[ \t]+)*([A-Z][\w]*)\s*\(`)

	csUsingAliasRe = regexp.MustCompile(`(?m)^[ \t]*(?:global[ \t]+)?using[ \t]+([A-Za-z_]\w*)[ \t]*=[ \t]*([\w.]+)[ \t]*;`)
)

func csDecls(src textutil.Source) []curlyDecl {
	masked := src.Masked
	var decls []curlyDecl
	for _, cm := range csClassRe.FindAllStringSubmatchIndex(masked, -1) {
		// a bodiless record declaration ends at the semicolon
		stop := cm[1]
		for stop < len(masked) && masked[stop] != '{' && masked[stop] != ';' {
			stop++
		}
		if stop >= len(masked) || masked[stop] != '{' {
			continue
		}
		_, bs, be := textutil.ExtractBlockBody(masked, stop)
		if bs < 0 {
			continue
		}
		decls = append(decls, csMembers(src, src.MaskedGroup(cm, 1), bs, be)...)
	}
	return decls
}

func csMembers(src textutil.Source, className string, bs, be int) []curlyDecl {
	masked := src.Masked
	body := masked[bs:be]
	var decls []curlyDecl

	add := func(name, mods string, m []int, headEnd int) {
		open := bs + headEnd - 1
		close := matchParen(masked, open, be)
		if close < 0 {
			return
		}
		stop := close + 1
		for stop < be && masked[stop] != '{' && masked[stop] != ';' && masked[stop] != '=' {
			stop++
		}
		bodyStart, bodyEnd := -1, -1
		switch {
		case stop < be && masked[stop] == '{':
			_, bodyStart, bodyEnd = textutil.ExtractBlockBody(masked, stop)
		case stop+1 < be && masked[stop] == '=' && masked[stop+1] == '>':
			// expression body runs to the closing semicolon
			bodyStart = skipWS(masked, stop+2, be)
			bodyEnd = statementEnd(masked, bodyStart, be)
		}
		decls = append(decls, curlyDecl{
			name:       name,
			params:     csParamNames(masked[open+1 : close]),
			decorators: attributesAbove(src.Lit, bs+m[0]),
			isAsync:    strings.Contains(mods, "async"),
			isMethod:   true,
			headStart:  bs + m[0],
			bodyStart:  bodyStart,
			bodyEnd:    bodyEnd,
		})
	}

	for _, m := range csMethodRe.FindAllStringSubmatchIndex(body, -1) {
		if depthFrom(body, 0, m[0]) != 0 {
			continue
		}
		name := body[m[6]:m[7]]
		if reservedCalls[name] {
			continue
		}
		add(name, body[m[2]:m[3]], m, m[1])
	}

	for _, m := range csCtorRe.FindAllStringSubmatchIndex(body, -1) {
		if depthFrom(body, 0, m[0]) != 0 {
			continue
		}
		if body[m[2]:m[3]] != className {
			continue
		}
		add(className, "", m, m[1])
	}

	return decls
}

func csParamNames(list string) []string {
	var names []string
	for _, p := range splitParams(list) {
		if strings.HasPrefix(p, "[") {
			if i := strings.Index(p, "]"); i >= 0 {
				p = strings.TrimSpace(p[i+1:])
			}
		}
		if i := strings.IndexByte(p, '='); i >= 0 {
			p = p[:i]
		}
		if f := strings.Fields(p); len(f) > 0 {
			names = append(names, f[len(f)-1])
		}
	}
	return names
}

// csImports records using aliases. Plain using directives carry no
// local name; those calls resolve through namespace segments instead.
func csImports(src textutil.Source, imp *fileImports) {
	for _, m := range csUsingAliasRe.FindAllStringSubmatch(src.Lit, -1) {
		imp.addModule(m[1], m[2])
	}
}

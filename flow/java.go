package flow

import (
	"context"
	"regexp"
	"strings"

	"codeatlas/analysis"
	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// javaStrategy finds methods and constructors inside class bodies by
// declaration shape. Annotations on the preceding lines become the
// function's decorators, which is where request-mapping entry points
// come from.
type javaStrategy struct{}

func (javaStrategy) name() string { return "java" }
func (javaStrategy) extensions() []string {
	return []string{".java"}
}

func (javaStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	out := fileEntities{file: f.Rel, module: analysis.ModuleName(f.Rel), imports: newFileImports()}
	src := textutil.NewSource(string(content), textutil.FamilyCurly)
	javaImports(src, &out.imports)
	collectCurly(&out, src, javaDecls(src), curlyConfig{keywords: cKeywords})
	return out, nil
}

var (
	javaClassRe = regexp.MustCompile(`(?m)^[ \t]*(?:@[\w.$]+(?:\([^()]*\))?[ \t]+)*(?:(?:public|private|protected|static|final|abstract|sealed|strictfp)[ \t]+)*(?:class|interface|enum|record)[ \t]+([A-Za-z_$][\w$]*)`)

	javaMethodRe = regexp.MustCompile(`(?m)^[ \t]*(?:@[\w.$]+(?:\([^()]*\))?[ \t]+)*((?:(?:public|private|protected|static|final|abstract|synchronized|native|default|strictfp)[ \t]+)*)(?:<[^;{}]*?>[ \t]*)?([A-Za-z_$][\w$]*(?:\s*<[^;{}]*?>)?(?:\[\s*\])*)[ \t]+([A-Za-z_$][\w$]*)\s*\(`)

	javaCtorRe = regexp.MustCompile(`(?m)^[ \t]*(?:@[\w.$]+(?:\([^()]*\))?[ \t]+)*(?:(?:public|private|protected)[ \t]+)?([A-Z][\w$]*)\s*\(`)

	javaImportRe = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+(static[ \t]+)?([\w.]+?)(\.\*)?[ \t]*;`)
)

func javaDecls(src textutil.Source) []curlyDecl {
	var decls []curlyDecl
	for _, cm := range javaClassRe.FindAllStringSubmatchIndex(src.Masked, -1) {
		className := src.MaskedGroup(cm, 1)
		_, bs, be := textutil.ExtractBlockBody(src.Masked, cm[1])
		if bs < 0 {
			continue
		}
		decls = append(decls, javaMembers(src, className, bs, be)...)
	}
	return decls
}

func javaMembers(src textutil.Source, className string, bs, be int) []curlyDecl {
	masked := src.Masked
	body := masked[bs:be]
	var decls []curlyDecl

	add := func(name string, m []int, headEnd int) {
		open := bs + headEnd - 1
		close := matchParen(masked, open, be)
		if close < 0 {
			return
		}
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
			params:     javaParamNames(masked[open+1 : close]),
			decorators: decoratorsAbove(src.Lit, bs+m[0]),
			isMethod:   true,
			headStart:  bs + m[0],
			bodyStart:  bodyStart,
			bodyEnd:    bodyEnd,
		})
	}

	for _, m := range javaMethodRe.FindAllStringSubmatchIndex(body, -1) {
		if depthFrom(body, 0, m[0]) != 0 {
			continue
		}
		name := body[m[6]:m[7]]
		if reservedCalls[name] {
			continue
		}
		add(name, m, m[1])
	}

	// a constructor has no return type, only the class's own name
	for _, m := range javaCtorRe.FindAllStringSubmatchIndex(body, -1) {
		if depthFrom(body, 0, m[0]) != 0 {
			continue
		}
		if body[m[2]:m[3]] != className {
			continue
		}
		add(className, m, m[1])
	}

	return decls
}

func javaParamNames(list string) []string {
	var names []string
	for _, p := range splitParams(list) {
		p = strings.TrimPrefix(stripParamDecorators(p), "final ")
		if f := strings.Fields(p); len(f) > 0 {
			names = append(names, f[len(f)-1])
		}
	}
	return names
}

// javaImports maps imported class names to their packages. A static
// import binds the member itself.
func javaImports(src textutil.Source, imp *fileImports) {
	for _, m := range javaImportRe.FindAllStringSubmatch(src.Lit, -1) {
		if m[3] != "" {
			continue
		}
		path := m[2]
		last := path
		head := ""
		if i := strings.LastIndex(path, "."); i >= 0 {
			last = path[i+1:]
			head = path[:i]
		}
		if m[1] != "" {
			imp.addSymbol(last, head, last)
			continue
		}
		imp.addModule(last, path)
	}
}

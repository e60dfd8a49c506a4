package structure

import (
	"context"
	"regexp"
	"strings"

	"codeatlas/analysis"
	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// javaStrategy reads type declarations and their brace-bounded members.
// Annotations on the lines above a declaration become its decorators.
type javaStrategy struct{}

func (javaStrategy) name() string         { return "java" }
func (javaStrategy) extensions() []string { return []string{".java"} }

var (
	javaTypeRe   = regexp.MustCompile(`(?m)^[ \t]*((?:(?:public|protected|private|static|final|abstract|sealed|strictfp)\s+)*)(class|interface|enum|record)\s+(\w+)(?:<[^>{]*>)?(?:\s*\(([^)]*)\))?(?:\s+extends\s+([^{]+?))?(?:\s+implements\s+([^{]+?))?(?:\s+permits\s+[^{]+?)?\s*\{`)
	javaCtorRe   = regexp.MustCompile(`(?m)^[ \t]*((?:(?:public|private|protected)\s+)+)(\w+)\s*\(`)
	javaMethodRe = regexp.MustCompile(`(?m)^[ \t]*((?:(?:public|private|protected|static|final|abstract|synchronized|native|default)\s+)*)(?:<[^>{;]*>\s*)?[\w.<>\[\],? ]+?\s+(\w+)\s*\(`)
	javaFieldRe  = regexp.MustCompile(`(?m)^[ \t]*((?:(?:public|private|protected|static|final|transient|volatile)\s+)*)([\w.<>\[\],? ]+?)\s+(\w+)\s*(=|;)`)
	javaImportRe = regexp.MustCompile(`(?m)^[ \t]*import\s+(static\s+)?([\w.]+?)(\.\*)?\s*;`)
)

func (javaStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	src := textutil.NewSource(string(content), textutil.FamilyCurly)
	out := fileEntities{file: f.Rel, module: analysis.ModuleName(f.Rel)}

	javaImports(src, &out)

	for _, m := range javaTypeRe.FindAllStringSubmatchIndex(src.Masked, -1) {
		mods := src.MaskedGroup(m, 1)
		kind := src.MaskedGroup(m, 2)
		name := src.Group(m, 3)
		line := src.Line(m[0])
		cl := Class{
			ID:          entityID(out.module, name, line),
			Name:        name,
			Module:      out.module,
			File:        out.file,
			Line:        line,
			IsAbstract:  strings.Contains(mods, "abstract"),
			IsInterface: kind == "interface",
			Decorators:  decoratorsAbove(src.Lit, m[0]),
		}
		cl.BaseClasses = append(cl.BaseClasses, baseList(src.Group(m, 5))...)
		cl.BaseClasses = append(cl.BaseClasses, baseList(src.Group(m, 6))...)

		// record components double as properties
		for _, comp := range splitParams(src.Group(m, 4)) {
			f := strings.Fields(stripParamDecorators(comp))
			if len(f) >= 2 {
				cl.Properties = append(cl.Properties, Property{
					Name: f[len(f)-1],
					Type: strings.Join(f[:len(f)-1], " "),
					Line: line,
				})
			}
		}

		body, bodyLo, _ := textutil.ExtractBlockBody(src.Masked, m[1]-1)
		if bodyLo >= 0 {
			javaMembers(src, &cl, kind, name, body, bodyLo)
		}
		out.classes = append(out.classes, cl)
	}
	return out, nil
}

func javaMembers(src textutil.Source, cl *Class, kind, className, body string, bodyLo int) {
	claimed := map[int]bool{}
	method := func(mm []int, name, mods string) {
		params := []string{}
		open := mm[1] - 1
		if end := matchParen(body, open); end > open {
			params = javaParamNames(src.Raw[bodyLo+open+1 : bodyLo+end])
		}
		claimed[mm[0]] = true
		cl.Methods = append(cl.Methods, Method{
			Name:       name,
			Line:       src.Line(bodyLo + mm[0]),
			Parameters: params,
			IsStatic:   strings.Contains(mods, "static"),
			IsPrivate:  strings.Contains(mods, "private"),
		})
	}

	for _, mm := range javaCtorRe.FindAllStringSubmatchIndex(body, -1) {
		if depthFrom(body, 0, mm[0]) != 0 || body[mm[4]:mm[5]] != className {
			continue
		}
		method(mm, className, body[mm[2]:mm[3]])
	}
	for _, mm := range javaMethodRe.FindAllStringSubmatchIndex(body, -1) {
		if depthFrom(body, 0, mm[0]) != 0 || claimed[mm[0]] {
			continue
		}
		method(mm, body[mm[4]:mm[5]], body[mm[2]:mm[3]])
	}

	// enum bodies lead with their constant list, which reads like fields
	if kind == "enum" {
		return
	}
	for _, mm := range javaFieldRe.FindAllStringSubmatchIndex(body, -1) {
		if depthFrom(body, 0, mm[0]) != 0 || claimed[mm[0]] {
			continue
		}
		typ := strings.TrimSpace(body[mm[4]:mm[5]])
		if typ == "" || strings.HasPrefix(typ, "class") || strings.HasPrefix(typ, "interface") {
			continue
		}
		cl.Properties = append(cl.Properties, Property{
			Name: body[mm[6]:mm[7]],
			Type: typ,
			Line: src.Line(bodyLo + mm[6]),
		})
	}
}

// javaImports records one entry per import statement; a wildcard import
// binds no single name.
func javaImports(src textutil.Source, out *fileEntities) {
	for _, m := range javaImportRe.FindAllStringSubmatchIndex(src.Lit, -1) {
		source := src.Group(m, 2)
		var names []string
		if m[6] < 0 {
			if i := strings.LastIndexByte(source, '.'); i > 0 {
				names = []string{source[i+1:]}
				source = source[:i]
			}
		}
		out.imports = append(out.imports, Import{
			Module: out.module,
			Source: source,
			Names:  names,
			Line:   src.Line(m[0]),
		})
	}
}

package structure

import (
	"context"
	"regexp"
	"strings"

	"codeatlas/analysis"
	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// csharpStrategy reads type declarations and their brace-bounded
// members. Attributes on the lines above a declaration become its
// decorators; classic interface members carry no modifiers so they get
// a bare scan of their own.
type csharpStrategy struct{}

func (csharpStrategy) name() string         { return "csharp" }
func (csharpStrategy) extensions() []string { return []string{".cs"} }

var (
	csTypeRe        = regexp.MustCompile(`(?m)^[ \t]*((?:(?:public|private|protected|internal|static|sealed|abstract|partial|readonly|ref)\s+)*)(record\s+struct|record\s+class|class|interface|struct|record|enum)\s+(\w+)(?:<[^>{]*>)?(?:\s*\(([^)]*)\))?(?:\s*:\s*([^{;]+?))?\s*(?:where[^{;]*)?(\{|;)`)
	csCtorRe        = regexp.MustCompile(`(?m)^[ \t]*((?:(?:public|private|protected|internal|static)\s+)+)(\w+)\s*\(`)
	csMethodRe      = regexp.MustCompile(`(?m)^[ \t]*((?:(?:public|private|protected|internal|static|virtual|override|sealed|async|abstract|new|partial|extern)\s+)+)[\w.<>\[\],? ]+?\s+(\w+)\s*(?:<[^>(]*>)?\s*\(`)
	csPropRe        = regexp.MustCompile(`(?m)^[ \t]*((?:(?:public|private|protected|internal|static|virtual|override|readonly|required|abstract)\s+)+)([\w.<>\[\],? ]+?)\s+(\w+)\s*(\{|=>)`)
	csFieldRe       = regexp.MustCompile(`(?m)^[ \t]*((?:(?:public|private|protected|internal|static|readonly|const|volatile)\s+)+)([\w.<>\[\],? ]+?)\s+(\w+)\s*(=|;)`)
	csIfaceMethodRe = regexp.MustCompile(`(?m)^[ \t]*[\w.<>\[\],?]+\s+(\w+)\s*(?:<[^>(]*>)?\s*\(`)
	csIfacePropRe   = regexp.MustCompile(`(?m)^[ \t]*([\w.<>\[\],? ]+?)\s+(\w+)\s*\{`)
	csUsingRe       = regexp.MustCompile(`(?m)^[ \t]*(?:global\s+)?using\s+(?:static\s+)?(?:(\w+)\s*=\s*)?([\w.]+)\s*;`)
)

func (csharpStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	src := textutil.NewSource(string(content), textutil.FamilyCurly)
	out := fileEntities{file: f.Rel, module: analysis.ModuleName(f.Rel)}

	csImports(src, &out)

	for _, m := range csTypeRe.FindAllStringSubmatchIndex(src.Masked, -1) {
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
			Decorators:  attributesAbove(src.Lit, m[0]),
			BaseClasses: baseList(src.Group(m, 5)),
		}

		// record primary-constructor parameters double as properties
		for _, comp := range splitParams(src.Group(m, 4)) {
			f := strings.Fields(comp)
			if len(f) >= 2 {
				cl.Properties = append(cl.Properties, Property{
					Name: f[len(f)-1],
					Type: strings.Join(f[:len(f)-1], " "),
					Line: line,
				})
			}
		}

		// a semicolon ends a body-less record declaration
		if src.MaskedGroup(m, 6) == "{" {
			body, bodyLo, _ := textutil.ExtractBlockBody(src.Masked, m[1]-1)
			if bodyLo >= 0 {
				csMembers(src, &cl, kind, name, body, bodyLo)
			}
		}
		out.classes = append(out.classes, cl)
	}
	return out, nil
}

func csMembers(src textutil.Source, cl *Class, kind, className, body string, bodyLo int) {
	if kind == "enum" {
		return
	}
	claimed := map[int]bool{}
	method := func(at int, name, mods string, open int) {
		params := []string{}
		if end := matchParen(body, open); end > open {
			params = csParamNames(src.Raw[bodyLo+open+1 : bodyLo+end])
		}
		claimed[at] = true
		cl.Methods = append(cl.Methods, Method{
			Name:       name,
			Line:       src.Line(bodyLo + at),
			Parameters: params,
			IsStatic:   strings.Contains(mods, "static"),
			IsPrivate:  strings.Contains(mods, "private"),
		})
	}

	if kind == "interface" {
		for _, mm := range csIfaceMethodRe.FindAllStringSubmatchIndex(body, -1) {
			if depthFrom(body, 0, mm[0]) != 0 {
				continue
			}
			method(mm[0], body[mm[2]:mm[3]], "", mm[1]-1)
		}
		for _, mm := range csIfacePropRe.FindAllStringSubmatchIndex(body, -1) {
			if depthFrom(body, 0, mm[0]) != 0 || claimed[mm[0]] {
				continue
			}
			cl.Properties = append(cl.Properties, Property{
				Name: body[mm[4]:mm[5]],
				Type: strings.TrimSpace(body[mm[2]:mm[3]]),
				Line: src.Line(bodyLo + mm[4]),
			})
		}
		return
	}

	for _, mm := range csCtorRe.FindAllStringSubmatchIndex(body, -1) {
		if depthFrom(body, 0, mm[0]) != 0 || body[mm[4]:mm[5]] != className {
			continue
		}
		method(mm[0], className, body[mm[2]:mm[3]], mm[1]-1)
	}
	for _, mm := range csMethodRe.FindAllStringSubmatchIndex(body, -1) {
		if depthFrom(body, 0, mm[0]) != 0 || claimed[mm[0]] {
			continue
		}
		method(mm[0], body[mm[4]:mm[5]], body[mm[2]:mm[3]], mm[1]-1)
	}
	for _, mm := range csPropRe.FindAllStringSubmatchIndex(body, -1) {
		if depthFrom(body, 0, mm[0]) != 0 || claimed[mm[0]] {
			continue
		}
		claimed[mm[0]] = true
		cl.Properties = append(cl.Properties, Property{
			Name: body[mm[6]:mm[7]],
			Type: strings.TrimSpace(body[mm[4]:mm[5]]),
			Line: src.Line(bodyLo + mm[6]),
		})
	}
	for _, mm := range csFieldRe.FindAllStringSubmatchIndex(body, -1) {
		if depthFrom(body, 0, mm[0]) != 0 || claimed[mm[0]] {
			continue
		}
		cl.Properties = append(cl.Properties, Property{
			Name: body[mm[6]:mm[7]],
			Type: strings.TrimSpace(body[mm[4]:mm[5]]),
			Line: src.Line(bodyLo + mm[6]),
		})
	}
}

// csImports records using directives; an alias binds its local name.
func csImports(src textutil.Source, out *fileEntities) {
	for _, m := range csUsingRe.FindAllStringSubmatchIndex(src.Lit, -1) {
		var names []string
		if alias := src.Group(m, 1); alias != "" {
			names = []string{alias}
		}
		out.imports = append(out.imports, Import{
			Module: out.module,
			Source: src.Group(m, 2),
			Names:  names,
			Line:   src.Line(m[0]),
		})
	}
}

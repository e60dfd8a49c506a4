package routes

import (
	"context"
	"regexp"
	"strings"

	"codeatlas/analysis"
	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// javaStrategy reads Spring MVC controllers. A @RestController or
// @Controller class becomes a blueprint whose prefix comes from its
// class-level @RequestMapping; the mapping annotations on its methods
// become routes.
type javaStrategy struct{}

func (javaStrategy) name() string { return "java" }
func (javaStrategy) extensions() []string {
	return []string{".java"}
}

var (
	springClassRe  = regexp.MustCompile(`(?m)^[ \t]*(?:(?:public|final|abstract)[ \t]+)*class[ \t]+([A-Za-z_$][\w$]*)`)
	springMethodRe = regexp.MustCompile(`(?m)^[ \t]*(?:@[\w.$]+(?:\([^()]*\))?[ \t]+)*((?:(?:public|private|protected|static|final|abstract|synchronized)[ \t]+)*)(?:<[^;{}]*?>[ \t]*)?[A-Za-z_$][\w$]*(?:\s*<[^;{}]*?>)?(?:\[\s*\])*[ \t]+([A-Za-z_$][\w$]*)\s*\(`)
	springInlineRe = regexp.MustCompile(`@[\w.$]+(?:\([^()]*\))?`)
	requestMethRe  = regexp.MustCompile(`RequestMethod\.(\w+)`)
)

// springVerbs maps the shortcut mapping annotations to HTTP methods.
var springVerbs = map[string]string{
	"GetMapping":    "GET",
	"PostMapping":   "POST",
	"PutMapping":    "PUT",
	"PatchMapping":  "PATCH",
	"DeleteMapping": "DELETE",
}

func (javaStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	out := fileEntities{file: f.Rel, module: analysis.ModuleName(f.Rel)}
	src := textutil.NewSource(string(content), textutil.FamilyCurly)

	for _, cm := range springClassRe.FindAllStringSubmatchIndex(src.Masked, -1) {
		className := src.Masked[cm[2]:cm[3]]
		classDecs := decoratorsAbove(src.Lit, cm[0])

		controller := false
		prefix := ""
		var classMarkers []string
		for _, dec := range classDecs {
			switch markerHead(dec) {
			case "RestController", "Controller":
				controller = true
			case "RequestMapping":
				prefix = ensureSlash(firstQuotedArg(dec))
			default:
				classMarkers = append(classMarkers, dec)
			}
		}
		if !controller {
			continue
		}

		line := src.Line(cm[0])
		out.blueprints = append(out.blueprints, blueprintDecl{
			bp: Blueprint{
				ID:        entityID(out.module, className, line),
				Name:      className,
				URLPrefix: prefix,
				File:      out.file,
				Line:      line,
			},
			local: className,
		})

		body, bodyLo, _ := textutil.ExtractBlockBody(src.Masked, cm[1])
		if bodyLo < 0 {
			continue
		}
		collectSpringRoutes(src, &out, className, classMarkers, body, bodyLo)
	}
	return out, nil
}

func collectSpringRoutes(src textutil.Source, out *fileEntities, className string, classMarkers []string, body string, bodyLo int) {
	for _, mm := range springMethodRe.FindAllStringSubmatchIndex(body, -1) {
		if depthFrom(body, 0, mm[0]) != 0 {
			continue
		}
		start := bodyLo + mm[0]
		handler := body[mm[4]:mm[5]]

		// Annotations sit on the lines above or inline before the
		// modifiers; both spellings appear in controller code.
		decs := decoratorsAbove(src.Lit, start)
		head := strings.TrimSpace(src.Lit[start : bodyLo+mm[2]])
		for _, inline := range springInlineRe.FindAllString(head, -1) {
			decs = append(decs, strings.TrimPrefix(inline, "@"))
		}

		var pattern string
		var methods []string
		var markers []string
		mapped := false
		for _, dec := range decs {
			if verb, ok := springVerbs[markerHead(dec)]; ok {
				mapped = true
				pattern = ensureSlash(firstQuotedArg(dec))
				methods = []string{verb}
				continue
			}
			if markerHead(dec) == "RequestMapping" {
				mapped = true
				pattern = ensureSlash(firstQuotedArg(dec))
				methods = requestMethods(dec)
				continue
			}
			markers = append(markers, dec)
		}
		if !mapped {
			continue
		}

		line := src.Line(start)
		out.routes = append(out.routes, routeDecl{
			route: Route{
				ID:          entityID(out.module, handler, line),
				URLPattern:  pattern,
				Methods:     methods,
				HandlerName: handler,
				File:        out.file,
				Line:        line,
				PathParams:  braceParams(pattern),
				Security:    securityFrom(append(markers, classMarkers...)),
			},
			group: className,
		})
	}
}

// requestMethods reads method = RequestMethod.X from a @RequestMapping;
// Spring matches every method when the attribute is absent, which is
// reported as GET here to keep statistics meaningful.
func requestMethods(dec string) []string {
	var methods []string
	for _, m := range requestMethRe.FindAllStringSubmatch(dec, -1) {
		methods = append(methods, strings.ToUpper(m[1]))
	}
	if len(methods) == 0 {
		return []string{"GET"}
	}
	return methods
}

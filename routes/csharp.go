package routes

import (
	"context"
	"regexp"
	"strings"

	"codeatlas/analysis"
	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// csharpStrategy reads ASP.NET attribute routing. A controller class's
// [Route] attribute is the blueprint prefix, with the [controller]
// token substituted the way the framework does it; [HttpX] attributes
// on its methods become routes. [AllowAnonymous] on a method wins over
// a class-level [Authorize].
type csharpStrategy struct{}

func (csharpStrategy) name() string { return "csharp" }
func (csharpStrategy) extensions() []string {
	return []string{".cs"}
}

var (
	aspClassRe  = regexp.MustCompile(`(?m)^[ \t]*(?:(?:public|internal|sealed|abstract|partial)[ \t]+)*class[ \t]+([A-Za-z_][\w]*)`)
	aspMethodRe = regexp.MustCompile(`(?m)^[ \t]*((?:(?:public|private|protected|internal|static|virtual|override|sealed|async|new|partial)[ \t]+)+)[A-Za-z_][\w]*(?:\s*<[^;{}]*?>)?(?:\[\s*\])?\??[ \t]+([A-Za-z_][\w]*)\s*\(`)
)

// aspVerbs maps [HttpX] attributes to HTTP methods.
var aspVerbs = map[string]string{
	"HttpGet":     "GET",
	"HttpPost":    "POST",
	"HttpPut":     "PUT",
	"HttpPatch":   "PATCH",
	"HttpDelete":  "DELETE",
	"HttpHead":    "HEAD",
	"HttpOptions": "OPTIONS",
}

func (csharpStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	out := fileEntities{file: f.Rel, module: analysis.ModuleName(f.Rel)}
	src := textutil.NewSource(string(content), textutil.FamilyCurly)

	for _, cm := range aspClassRe.FindAllStringSubmatchIndex(src.Masked, -1) {
		className := src.Masked[cm[2]:cm[3]]
		classAttrs := attributesAbove(src.Lit, cm[0])

		controller := strings.HasSuffix(className, "Controller")
		prefix := ""
		var classMarkers []string
		for _, attr := range classAttrs {
			switch markerHead(attr) {
			case "ApiController":
				controller = true
			case "Route":
				prefix = ensureSlash(controllerToken(firstQuotedArg(attr), className))
			default:
				classMarkers = append(classMarkers, attr)
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
		collectAspRoutes(src, &out, className, classMarkers, body, bodyLo)
	}
	return out, nil
}

func collectAspRoutes(src textutil.Source, out *fileEntities, className string, classMarkers []string, body string, bodyLo int) {
	for _, mm := range aspMethodRe.FindAllStringSubmatchIndex(body, -1) {
		if depthFrom(body, 0, mm[0]) != 0 {
			continue
		}
		start := bodyLo + mm[0]
		handler := body[mm[4]:mm[5]]
		attrs := attributesAbove(src.Lit, start)
		if len(attrs) == 0 {
			continue
		}

		verb := ""
		pattern := ""
		routeAttr := ""
		anonymous := false
		var markers []string
		for _, attr := range attrs {
			head := markerHead(attr)
			if v, ok := aspVerbs[head]; ok {
				verb = v
				if arg := firstQuotedArg(attr); arg != "" {
					pattern = ensureSlash(controllerToken(arg, className))
				}
				continue
			}
			switch head {
			case "Route":
				routeAttr = ensureSlash(controllerToken(firstQuotedArg(attr), className))
			case "AllowAnonymous":
				anonymous = true
			default:
				markers = append(markers, attr)
			}
		}
		if verb == "" {
			continue
		}
		if pattern == "" {
			pattern = routeAttr
		}

		sec := securityFrom(append(markers, classMarkers...))
		if anonymous {
			sec = Security{}
		}

		line := src.Line(start)
		out.routes = append(out.routes, routeDecl{
			route: Route{
				ID:          entityID(out.module, handler, line),
				URLPattern:  pattern,
				Methods:     []string{verb},
				HandlerName: handler,
				File:        out.file,
				Line:        line,
				PathParams:  braceParams(pattern),
				Security:    sec,
			},
			group: className,
		})
	}
}

// controllerToken substitutes the [controller] placeholder with the
// class name minus its Controller suffix, lowercased, matching the
// framework's default token replacement.
func controllerToken(pattern, className string) string {
	if !strings.Contains(pattern, "[controller]") {
		return pattern
	}
	name := strings.ToLower(strings.TrimSuffix(className, "Controller"))
	return strings.ReplaceAll(pattern, "[controller]", name)
}

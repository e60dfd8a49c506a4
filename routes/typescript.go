package routes

import (
	"context"
	"regexp"
	"strings"

	"codeatlas/analysis"
	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// typescriptStrategy covers the two registration styles of the
// JS/TS ecosystem: Express chains (app.get("/x", mw, handler)) and
// NestJS controller classes with verb decorators. Express routers
// mounted with app.use("/prefix", router) in the same file pick up
// their prefix there.
type typescriptStrategy struct{}

func (typescriptStrategy) name() string { return "typescript" }
func (typescriptStrategy) extensions() []string {
	return []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}
}

var (
	tsRouterDeclRe = regexp.MustCompile(`(?m)^[ \t]*(?:export\s+)?(?:const|let|var)\s+(\w+)\s*=\s*(?:\w+\.)?Router\s*\(`)
	tsClassRe      = regexp.MustCompile(`(?m)^[ \t]*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(\w+)`)
	tsNestMethodRe = regexp.MustCompile(`(?m)^[ \t]*(?:public\s+|private\s+|protected\s+)?(?:static\s+)?(?:async\s+)?(\w+)\s*\(`)
	tsExpressRe    = regexp.MustCompile(`(\w+)\.(get|post|put|patch|delete|head|options|all|use)\s*\(`)
	tsIdentRe      = regexp.MustCompile(`^[\w.$]+$`)
)

// nestVerbs maps NestJS method decorators to HTTP methods.
var nestVerbs = map[string]string{
	"Get":     "GET",
	"Post":    "POST",
	"Put":     "PUT",
	"Patch":   "PATCH",
	"Delete":  "DELETE",
	"Head":    "HEAD",
	"Options": "OPTIONS",
	"All":     "ALL",
}

func (typescriptStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	out := fileEntities{file: f.Rel, module: analysis.ModuleName(f.Rel)}
	src := textutil.NewSource(string(content), textutil.FamilyCurly)

	collectExpressRouters(src, &out)
	collectNestControllers(src, &out)
	collectExpressRoutes(src, &out)
	return out, nil
}

// collectExpressRouters records `const r = express.Router()` style
// declarations as blueprints with an empty prefix.
func collectExpressRouters(src textutil.Source, out *fileEntities) {
	for _, m := range tsRouterDeclRe.FindAllStringSubmatchIndex(src.Masked, -1) {
		local := src.Masked[m[2]:m[3]]
		line := src.Line(m[0])
		out.blueprints = append(out.blueprints, blueprintDecl{
			bp: Blueprint{
				ID:   entityID(out.module, local, line),
				Name: local,
				File: out.file,
				Line: line,
			},
			local: local,
		})
	}
}

// collectNestControllers reads @Controller classes: the class becomes a
// blueprint, its decorated methods become routes, and guard decorators
// at either level mark the routes as protected.
func collectNestControllers(src textutil.Source, out *fileEntities) {
	for _, m := range tsClassRe.FindAllStringSubmatchIndex(src.Masked, -1) {
		className := src.Masked[m[2]:m[3]]
		decs := decoratorsAbove(src.Lit, m[0])

		controller := false
		prefix := ""
		var classMarkers []string
		for _, dec := range decs {
			if markerHead(dec) == "Controller" {
				controller = true
				prefix = ensureSlash(firstQuotedArg(dec))
				continue
			}
			classMarkers = append(classMarkers, dec)
		}
		if !controller {
			continue
		}

		line := src.Line(m[0])
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

		body, bodyLo, _ := textutil.ExtractBlockBody(src.Masked, m[1])
		if bodyLo < 0 {
			continue
		}
		for _, mm := range tsNestMethodRe.FindAllStringSubmatchIndex(body, -1) {
			start := bodyLo + mm[0]
			methodDecs := decoratorsAbove(src.Lit, start)
			if len(methodDecs) == 0 {
				continue
			}
			handler := body[mm[2]:mm[3]]
			methodLine := src.Line(start)

			// Decorators sit on the contiguous lines directly above
			// the method, so their index gives their line back.
			type registration struct {
				verb    string
				pattern string
				line    int
			}
			var regs []registration
			var markers []string
			for i, dec := range methodDecs {
				verb, ok := nestVerbs[markerHead(dec)]
				if !ok {
					markers = append(markers, dec)
					continue
				}
				regs = append(regs, registration{
					verb:    verb,
					pattern: ensureSlash(firstQuotedArg(dec)),
					line:    methodLine - len(methodDecs) + i,
				})
			}
			if len(regs) == 0 {
				continue
			}
			sec := securityFrom(append(markers, classMarkers...))
			for _, reg := range regs {
				out.routes = append(out.routes, routeDecl{
					route: Route{
						ID:          entityID(out.module, handler, reg.line),
						URLPattern:  reg.pattern,
						Methods:     []string{reg.verb},
						HandlerName: handler,
						File:        out.file,
						Line:        reg.line,
						PathParams:  colonParams(reg.pattern),
						Security:    sec,
					},
					group: className,
				})
			}
		}
	}
}

// collectExpressRoutes reads receiver.verb("/path", mw..., handler)
// registrations and same-file app.use mounts.
func collectExpressRoutes(src textutil.Source, out *fileEntities) {
	for _, m := range tsExpressRe.FindAllStringSubmatchIndex(src.Masked, -1) {
		receiver := src.Masked[m[2]:m[3]]
		if receiver == "this" || receiver == "super" {
			continue
		}
		if m[0] > 0 && src.Masked[m[0]-1] == '.' {
			continue
		}
		verb := src.Masked[m[4]:m[5]]
		open := m[1] - 1
		end := matchParen(src.Masked, open)
		if end < 0 {
			continue
		}
		args := splitArgs(src.Raw[open+1 : end])
		if len(args) < 2 || !quoted(args[0]) {
			continue
		}

		if verb == "use" {
			mountRouter(out, stripQuotes(args[0]), args[1:])
			continue
		}

		pattern := stripQuotes(args[0])
		if pattern != "*" && !strings.HasPrefix(pattern, "/") {
			continue
		}
		handler := "anonymous"
		if last := args[len(args)-1]; tsIdentRe.MatchString(last) {
			handler = last
		}
		line := src.Line(m[0])
		out.routes = append(out.routes, routeDecl{
			route: Route{
				ID:          entityID(out.module, handler, line),
				URLPattern:  pattern,
				Methods:     []string{strings.ToUpper(verb)},
				HandlerName: handler,
				File:        out.file,
				Line:        line,
				PathParams:  colonParams(pattern),
				Security:    securityFrom(args[1 : len(args)-1]),
			},
			group: receiver,
		})
	}
}

// mountRouter assigns a prefix to routers mounted under it in the same
// file.
func mountRouter(out *fileEntities, prefix string, args []string) {
	for _, a := range args {
		if !tsIdentRe.MatchString(a) {
			continue
		}
		for i := range out.blueprints {
			if out.blueprints[i].local == a {
				out.blueprints[i].bp.URLPrefix = prefix
			}
		}
	}
}

func quoted(s string) bool {
	return len(s) >= 2 && (s[0] == '\'' || s[0] == '"' || s[0] == '`')
}

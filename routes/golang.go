package routes

import (
	"context"
	"regexp"
	"strings"

	"codeatlas/analysis"
	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// golangStrategy reads Gin and Echo registrations, which share the same
// shape: groups declared from an engine or parent group, verb methods
// taking a path, optional middleware, and a handler last. Middleware
// passed to the group declaration or added with Use applies to every
// route registered on that receiver.
type golangStrategy struct{}

func (golangStrategy) name() string { return "golang" }
func (golangStrategy) extensions() []string {
	return []string{".go"}
}

var (
	goGroupRe = regexp.MustCompile(`(?m)^[ \t]*(\w+)\s*:?=\s*(\w+)\.Group\s*\(`)
	goVerbRe  = regexp.MustCompile(`(\w+)\.(GET|POST|PUT|PATCH|DELETE|HEAD|OPTIONS)\s*\(`)
	goUseRe   = regexp.MustCompile(`(?m)(\w+)\.Use\s*\(`)
)

type goGroup struct {
	prefix  string
	markers []string
}

func (golangStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	out := fileEntities{file: f.Rel, module: analysis.ModuleName(f.Rel)}
	src := textutil.NewSource(string(content), textutil.FamilyCurly)

	groups := collectGoGroups(src, &out)
	collectGoMiddleware(src, groups)
	collectGoRoutes(src, &out, groups)
	return out, nil
}

// collectGoGroups records group declarations in file order, so a child
// group sees its parent's composed prefix and inherited middleware.
func collectGoGroups(src textutil.Source, out *fileEntities) map[string]*goGroup {
	groups := make(map[string]*goGroup)
	for _, m := range goGroupRe.FindAllStringSubmatchIndex(src.Masked, -1) {
		local := src.Masked[m[2]:m[3]]
		parent := src.Masked[m[4]:m[5]]
		open := m[1] - 1
		end := matchParen(src.Masked, open)
		if end < 0 {
			continue
		}
		args := splitArgs(src.Raw[open+1 : end])
		if len(args) == 0 || !quoted(args[0]) {
			continue
		}

		g := &goGroup{prefix: stripQuotes(args[0])}
		g.markers = append(g.markers, args[1:]...)
		if p, ok := groups[parent]; ok {
			g.prefix = p.prefix + g.prefix
			g.markers = append(g.markers, p.markers...)
		}
		groups[local] = g

		line := src.Line(m[0])
		out.blueprints = append(out.blueprints, blueprintDecl{
			bp: Blueprint{
				ID:        entityID(out.module, local, line),
				Name:      local,
				URLPrefix: g.prefix,
				File:      out.file,
				Line:      line,
			},
			local: local,
		})
	}
	return groups
}

// collectGoMiddleware folds receiver.Use(mw) calls into the receiver's
// marker list. Engine receivers get an entry too, so globally installed
// auth middleware still marks ungrouped routes.
func collectGoMiddleware(src textutil.Source, groups map[string]*goGroup) {
	for _, m := range goUseRe.FindAllStringSubmatchIndex(src.Masked, -1) {
		receiver := src.Masked[m[2]:m[3]]
		open := m[1] - 1
		end := matchParen(src.Masked, open)
		if end < 0 {
			continue
		}
		g, ok := groups[receiver]
		if !ok {
			g = &goGroup{}
			groups[receiver] = g
		}
		g.markers = append(g.markers, splitArgs(src.Raw[open+1:end])...)
	}
}

func collectGoRoutes(src textutil.Source, out *fileEntities, groups map[string]*goGroup) {
	for _, m := range goVerbRe.FindAllStringSubmatchIndex(src.Masked, -1) {
		if m[0] > 0 && src.Masked[m[0]-1] == '.' {
			continue
		}
		receiver := src.Masked[m[2]:m[3]]
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
		pattern := stripQuotes(args[0])
		if !strings.HasPrefix(pattern, "/") {
			continue
		}

		markers := append([]string(nil), args[1:len(args)-1]...)
		if g, ok := groups[receiver]; ok {
			markers = append(markers, g.markers...)
		}

		handler := args[len(args)-1]
		line := src.Line(m[0])
		out.routes = append(out.routes, routeDecl{
			route: Route{
				ID:          entityID(out.module, handler, line),
				URLPattern:  pattern,
				Methods:     []string{verb},
				HandlerName: handler,
				File:        out.file,
				Line:        line,
				PathParams:  colonParams(pattern),
				Security:    securityFrom(markers),
			},
			group: receiver,
		})
	}
}

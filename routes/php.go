package routes

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"codeatlas/analysis"
	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// phpStrategy reads the Laravel Route facade. Verb calls become routes,
// prefix()->group(...) and group([...]) blocks become blueprints that
// claim the routes registered inside their braces, and middleware from
// either the chain or the group array marks routes as protected.
type phpStrategy struct{}

func (phpStrategy) name() string { return "laravel" }
func (phpStrategy) extensions() []string {
	return []string{".php"}
}

var phpRouteRe = regexp.MustCompile(`Route::`)

// phpVerbs are the facade methods that register a single route.
var phpVerbs = map[string]bool{
	"get":     true,
	"post":    true,
	"put":     true,
	"patch":   true,
	"delete":  true,
	"options": true,
}

// chainSeg is one call in a Route:: method chain.
type chainSeg struct {
	name  string
	open  int
	close int
}

func (phpStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	out := fileEntities{file: f.Rel, module: analysis.ModuleName(f.Rel)}
	src := textutil.NewSource(string(content), textutil.FamilyPHP)

	type phpGroup struct {
		lo, hi  int
		local   string
		segment string
		prefix  string
		name    string
		markers []string
		line    int
	}
	var groupSpans []*phpGroup

	type phpRoute struct {
		at    int
		route Route
	}
	var rawRoutes []phpRoute

	for _, loc := range phpRouteRe.FindAllStringIndex(src.Masked, -1) {
		chain := phpChain(src.Masked, loc[1])
		if len(chain) == 0 {
			continue
		}
		line := src.Line(loc[0])

		var markers []string
		prefix := ""
		groupAt := -1
		for i, seg := range chain {
			switch seg.name {
			case "prefix":
				prefix = stripQuotes(firstArg(src, seg))
			case "middleware":
				markers = append(markers, middlewareArgs(src, seg)...)
			case "group":
				groupAt = i
			}
		}

		if groupAt >= 0 {
			seg := chain[groupAt]
			args := splitArgs(src.Raw[seg.open+1 : seg.close])
			if len(args) > 0 && strings.HasPrefix(args[0], "[") {
				prefix, markers = phpGroupArray(args[0], prefix, markers)
			}
			_, lo, hi := textutil.ExtractBlockBody(src.Masked, seg.open)
			if lo < 0 {
				continue
			}
			name := strings.Trim(prefix, "/")
			if name == "" {
				name = "group"
			}
			groupSpans = append(groupSpans, &phpGroup{
				lo:      lo,
				hi:      hi,
				local:   fmt.Sprintf("grp@%d", line),
				segment: ensureSlash(prefix),
				name:    name,
				markers: markers,
				line:    line,
			})
			continue
		}

		verbSeg := chain[0]
		if !phpVerbs[verbSeg.name] && verbSeg.name != "match" {
			continue
		}
		args := splitArgs(src.Raw[verbSeg.open+1 : verbSeg.close])

		var methods []string
		if verbSeg.name == "match" {
			if len(args) < 2 {
				continue
			}
			methods = phpMethodList(args[0])
			args = args[1:]
		} else {
			methods = []string{strings.ToUpper(verbSeg.name)}
		}
		if len(args) == 0 || !quoted(args[0]) {
			continue
		}
		pattern := ensureSlash(stripQuotes(args[0]))
		handler := "closure"
		if len(args) > 1 {
			handler = phpHandler(args[1])
		}

		rawRoutes = append(rawRoutes, phpRoute{
			at: loc[0],
			route: Route{
				ID:          entityID(out.module, handler, line),
				URLPattern:  pattern,
				Methods:     methods,
				HandlerName: handler,
				File:        out.file,
				Line:        line,
				PathParams:  braceParams(pattern),
				Security:    securityFrom(markers),
			},
		})
	}

	// Compose nested groups, outermost first, then hand each route to
	// the innermost group whose braces contain it.
	sort.SliceStable(groupSpans, func(i, j int) bool { return groupSpans[i].lo < groupSpans[j].lo })
	for i, g := range groupSpans {
		g.prefix = g.segment
		for j := i - 1; j >= 0; j-- {
			outer := groupSpans[j]
			if g.lo >= outer.lo && g.hi <= outer.hi {
				g.prefix = outer.prefix + g.segment
				g.markers = append(g.markers, outer.markers...)
				break
			}
		}
		out.blueprints = append(out.blueprints, blueprintDecl{
			bp: Blueprint{
				ID:        entityID(out.module, g.name, g.line),
				Name:      g.name,
				URLPrefix: g.prefix,
				File:      out.file,
				Line:      g.line,
			},
			local: g.local,
		})
	}

	for _, rr := range rawRoutes {
		group := ""
		for i := len(groupSpans) - 1; i >= 0; i-- {
			g := groupSpans[i]
			if rr.at >= g.lo && rr.at < g.hi {
				group = g.local
				if !rr.route.Security.RequiresAuth {
					rr.route.Security = securityFrom(g.markers)
				}
				break
			}
		}
		out.routes = append(out.routes, routeDecl{route: rr.route, group: group})
	}
	return out, nil
}

// phpChain reads name(...)->name(...)-> segments starting right after
// Route::.
func phpChain(masked string, at int) []chainSeg {
	var chain []chainSeg
	i := at
	for {
		start := i
		for i < len(masked) && (isWordByte(masked[i])) {
			i++
		}
		if i == start {
			return chain
		}
		name := masked[start:i]
		for i < len(masked) && (masked[i] == ' ' || masked[i] == '\t' || masked[i] == '\n' || masked[i] == '\r') {
			i++
		}
		if i >= len(masked) || masked[i] != '(' {
			return chain
		}
		end := matchParen(masked, i)
		if end < 0 {
			return chain
		}
		chain = append(chain, chainSeg{name: name, open: i, close: end})
		i = end + 1
		for i < len(masked) && (masked[i] == ' ' || masked[i] == '\t' || masked[i] == '\n' || masked[i] == '\r') {
			i++
		}
		if i+1 >= len(masked) || masked[i] != '-' || masked[i+1] != '>' {
			return chain
		}
		i += 2
		for i < len(masked) && (masked[i] == ' ' || masked[i] == '\t' || masked[i] == '\n' || masked[i] == '\r') {
			i++
		}
	}
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func firstArg(src textutil.Source, seg chainSeg) string {
	args := splitArgs(src.Raw[seg.open+1 : seg.close])
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// middlewareArgs flattens middleware('auth') and middleware(['a','b'])
// spellings.
func middlewareArgs(src textutil.Source, seg chainSeg) []string {
	var out []string
	for _, a := range splitArgs(src.Raw[seg.open+1 : seg.close]) {
		if strings.HasPrefix(a, "[") && strings.HasSuffix(a, "]") {
			for _, inner := range splitArgs(a[1 : len(a)-1]) {
				out = append(out, stripQuotes(inner))
			}
			continue
		}
		out = append(out, stripQuotes(a))
	}
	return out
}

// phpGroupArray reads the prefix and middleware keys of a group's
// attribute array.
func phpGroupArray(arr, prefix string, markers []string) (string, []string) {
	arr = strings.TrimSuffix(strings.TrimPrefix(arr, "["), "]")
	for _, entry := range splitArgs(arr) {
		key, value, found := strings.Cut(entry, "=>")
		if !found {
			continue
		}
		key = stripQuotes(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "prefix":
			prefix = stripQuotes(value)
		case "middleware":
			if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
				for _, inner := range splitArgs(value[1 : len(value)-1]) {
					markers = append(markers, stripQuotes(inner))
				}
			} else {
				markers = append(markers, stripQuotes(value))
			}
		}
	}
	return prefix, markers
}

func phpMethodList(arr string) []string {
	arr = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(arr), "["), "]")
	var methods []string
	for _, m := range splitArgs(arr) {
		if quoted(m) {
			methods = append(methods, strings.ToUpper(stripQuotes(m)))
		}
	}
	return methods
}

// phpHandler renders the handler argument: [Controller::class, 'show']
// and 'Controller@show' spellings normalize to Controller@show, and
// closures report as closure.
func phpHandler(arg string) string {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "function") || strings.HasPrefix(arg, "fn") || strings.HasPrefix(arg, "static function") {
		return "closure"
	}
	if strings.HasPrefix(arg, "[") && strings.HasSuffix(arg, "]") {
		parts := splitArgs(arg[1 : len(arg)-1])
		if len(parts) == 2 {
			return phpClassName(parts[0]) + "@" + stripQuotes(parts[1])
		}
		if len(parts) == 1 {
			return phpClassName(parts[0])
		}
		return "closure"
	}
	if quoted(arg) {
		target := stripQuotes(arg)
		if i := strings.LastIndexByte(target, '\\'); i >= 0 {
			target = target[i+1:]
		}
		return target
	}
	return phpClassName(arg)
}

func phpClassName(expr string) string {
	expr = strings.TrimSuffix(strings.TrimSpace(expr), "::class")
	if i := strings.LastIndexByte(expr, '\\'); i >= 0 {
		expr = expr[i+1:]
	}
	return expr
}

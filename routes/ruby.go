package routes

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"codeatlas/analysis"
	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// rubyStrategy reads the Rails routing DSL. Only routes.rb files are
// considered; the rest of the tree never declares routes. namespace
// blocks become blueprints, scope blocks fold their prefix into the
// contained patterns, and resources lines expand into the standard
// seven member and collection routes.
type rubyStrategy struct{}

func (rubyStrategy) name() string { return "rails" }
func (rubyStrategy) extensions() []string {
	return []string{".rb"}
}

var (
	railsDoRe    = regexp.MustCompile(`(?:^|\s)do(?:\s*\|[^|]*\|)?$`)
	railsVerbRe  = regexp.MustCompile(`^(get|post|put|patch|delete)\s+(.+)$`)
	railsToRe    = regexp.MustCompile(`to:\s*(['"])([^'"]*)['"]`)
	railsBlockRe = regexp.MustCompile(`^(namespace|scope|resources)\s+(.+?)(?:\sdo)?$`)
)

// railsActions is the expansion of a resources line, in the order the
// router generates them.
var railsActions = []struct {
	action  string
	suffix  string
	methods []string
}{
	{"index", "", []string{"GET"}},
	{"new", "/new", []string{"GET"}},
	{"create", "", []string{"POST"}},
	{"show", "/:id", []string{"GET"}},
	{"edit", "/:id/edit", []string{"GET"}},
	{"update", "/:id", []string{"PATCH", "PUT"}},
	{"destroy", "/:id", []string{"DELETE"}},
}

func (rubyStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	out := fileEntities{file: f.Rel, module: analysis.ModuleName(f.Rel)}
	if filepath.Base(f.Rel) != "routes.rb" {
		return out, nil
	}
	src := textutil.NewSource(string(content), textutil.FamilyRuby)
	w := &railsWalker{out: &out}

	maskedLines := strings.Split(src.Masked, "\n")
	litLines := strings.Split(src.Lit, "\n")
	for i, masked := range maskedLines {
		w.line(strings.TrimSpace(masked), strings.TrimSpace(litLines[i]), i+1)
	}
	return out, nil
}

// railsFrame is one do...end level. Namespaces and scopes carry the URL
// segment they add; every other block nests without one.
type railsFrame struct {
	kind    string
	segment string
	local   string
}

type railsWalker struct {
	out   *fileEntities
	stack []railsFrame
}

func (w *railsWalker) line(masked, lit string, line int) {
	if masked == "" {
		return
	}
	if masked == "end" || strings.HasPrefix(masked, "end ") {
		if n := len(w.stack); n > 0 {
			w.stack = w.stack[:n-1]
		}
		return
	}

	opens := railsDoRe.MatchString(masked)
	frame := railsFrame{kind: "plain"}

	if m := railsBlockRe.FindStringSubmatch(strings.TrimSuffix(lit, " do")); m != nil {
		args := splitArgs(m[2])
		name := ""
		if len(args) > 0 {
			name = symbolOrString(args[0])
		}
		switch m[1] {
		case "namespace":
			frame = railsFrame{kind: "namespace", segment: ensureSlash(name), local: fmt.Sprintf("ns@%d", line)}
			w.declareNamespace(name, frame, line)
		case "scope":
			frame = railsFrame{kind: "scope", segment: ensureSlash(name)}
		case "resources":
			w.resources(name, args[1:], line)
		}
	} else if m := railsVerbRe.FindStringSubmatch(lit); m != nil {
		w.verb(m[1], m[2], line)
	} else if strings.HasPrefix(lit, "root ") {
		w.root(lit, line)
	}

	if opens {
		w.stack = append(w.stack, frame)
	}
}

// declareNamespace records the namespace as a blueprint whose prefix
// composes every enclosing namespace and scope segment.
func (w *railsWalker) declareNamespace(name string, frame railsFrame, line int) {
	prefix := ""
	for _, fr := range w.stack {
		prefix += fr.segment
	}
	prefix += frame.segment
	w.out.blueprints = append(w.out.blueprints, blueprintDecl{
		bp: Blueprint{
			ID:        entityID(w.out.module, name, line),
			Name:      name,
			URLPrefix: prefix,
			File:      w.out.file,
			Line:      line,
		},
		local: frame.local,
	})
}

// enclosing resolves where a route lands: the innermost namespace is
// its group, and scope segments inside that namespace prepend to its
// pattern.
func (w *railsWalker) enclosing() (group, scopePrefix string) {
	for i := len(w.stack) - 1; i >= 0; i-- {
		if w.stack[i].kind == "namespace" {
			group = w.stack[i].local
			for _, fr := range w.stack[i+1:] {
				scopePrefix += fr.segment
			}
			return group, scopePrefix
		}
	}
	for _, fr := range w.stack {
		scopePrefix += fr.segment
	}
	return "", scopePrefix
}

func (w *railsWalker) verb(verb, rest string, line int) {
	args := splitArgs(rest)
	if len(args) == 0 {
		return
	}
	path := ensureSlash(symbolOrString(args[0]))
	handler := railsHandler(rest, path)

	group, scopePrefix := w.enclosing()
	pattern := scopePrefix + path
	w.out.routes = append(w.out.routes, routeDecl{
		route: Route{
			ID:          entityID(w.out.module, handler, line),
			URLPattern:  pattern,
			Methods:     []string{strings.ToUpper(verb)},
			HandlerName: handler,
			File:        w.out.file,
			Line:        line,
			PathParams:  colonParams(pattern),
		},
		group: group,
	})
}

func (w *railsWalker) root(lit string, line int) {
	handler := ""
	if m := railsToRe.FindStringSubmatch(lit); m != nil {
		handler = m[2]
	} else if args := splitArgs(strings.TrimPrefix(lit, "root")); len(args) > 0 && quoted(strings.TrimSpace(args[0])) {
		handler = stripQuotes(args[0])
	}
	if handler == "" {
		return
	}
	group, scopePrefix := w.enclosing()
	pattern := scopePrefix + "/"
	w.out.routes = append(w.out.routes, routeDecl{
		route: Route{
			ID:          entityID(w.out.module, handler, line),
			URLPattern:  pattern,
			Methods:     []string{"GET"},
			HandlerName: handler,
			File:        w.out.file,
			Line:        line,
		},
		group: group,
	})
}

// resources expands the conventional CRUD set, honoring only: and
// except: filters.
func (w *railsWalker) resources(name string, opts []string, line int) {
	if name == "" {
		return
	}
	allowed := actionFilter(opts)
	group, scopePrefix := w.enclosing()
	base := scopePrefix + ensureSlash(name)

	for _, a := range railsActions {
		if !allowed[a.action] {
			continue
		}
		pattern := base + a.suffix
		handler := name + "#" + a.action
		w.out.routes = append(w.out.routes, routeDecl{
			route: Route{
				ID:          entityID(w.out.module, handler, line),
				URLPattern:  pattern,
				Methods:     append([]string(nil), a.methods...),
				HandlerName: handler,
				File:        w.out.file,
				Line:        line,
				PathParams:  colonParams(pattern),
			},
			group: group,
		})
	}
}

// actionFilter turns only:/except: options into the allowed action set.
func actionFilter(opts []string) map[string]bool {
	allowed := make(map[string]bool, len(railsActions))
	for _, a := range railsActions {
		allowed[a.action] = true
	}
	for _, opt := range opts {
		key, list, found := strings.Cut(opt, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key != "only" && key != "except" {
			continue
		}
		listed := make(map[string]bool)
		for _, s := range strings.FieldsFunc(list, func(r rune) bool {
			return r == '[' || r == ']' || r == ',' || r == ' ' || r == ':'
		}) {
			listed[s] = true
		}
		for _, a := range railsActions {
			if key == "only" {
				allowed[a.action] = listed[a.action]
			} else if listed[a.action] {
				allowed[a.action] = false
			}
		}
	}
	return allowed
}

// railsHandler resolves the controller#action target: an explicit to:
// option wins, otherwise the path itself names it the way the router's
// shorthand does.
func railsHandler(rest, path string) string {
	if m := railsToRe.FindStringSubmatch(rest); m != nil {
		return m[2]
	}
	trimmed := strings.Trim(path, "/")
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i] + "#" + trimmed[i+1:]
	}
	return trimmed
}

// symbolOrString reads :users or 'users' or "/users" spellings.
func symbolOrString(arg string) string {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, ":") {
		return arg[1:]
	}
	if quoted(arg) {
		return stripQuotes(arg)
	}
	return ""
}

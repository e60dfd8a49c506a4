package routes

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"codeatlas/analysis"
	"codeatlas/detect"
	"codeatlas/internal/crawler"
)

const analysisType = "api_routes"

// fileEntities is what one file contributes before the second pass.
// Routes reference their group by the local name used at the
// registration site; blueprint linking happens after the barrier.
type fileEntities struct {
	file       string
	module     string
	blueprints []blueprintDecl
	routes     []routeDecl
}

// blueprintDecl pairs a blueprint with the local name routes in the
// same file register under: the variable holding a Flask blueprint or
// Gin group, the controller class name for annotation frameworks.
type blueprintDecl struct {
	bp    Blueprint
	local string
}

// routeDecl is one route before group resolution.
type routeDecl struct {
	route Route
	group string
}

type strategy interface {
	name() string
	extensions() []string
	extract(ctx context.Context, f crawler.File, src []byte) (fileEntities, error)
}

func strategyFor(m detect.Match) strategy {
	switch m.Language {
	case detect.LangPython:
		return pythonStrategy{}
	case detect.LangTypeScript:
		return typescriptStrategy{}
	case detect.LangJava:
		return javaStrategy{}
	case detect.LangCSharp:
		return csharpStrategy{}
	case detect.LangRuby:
		return rubyStrategy{}
	case detect.LangGo:
		return golangStrategy{}
	case detect.LangPHP:
		return phpStrategy{}
	}
	return nil
}

// Parse analyzes the project at root and returns its API surface.
// Per-file failures are collected into the result; only an unusable
// root, an unsupported project, or cancellation fail the call.
func Parse(ctx context.Context, root string, opts analysis.Options) (*Result, error) {
	ctx, cancel := opts.Context(ctx)
	defer cancel()
	log := opts.Log()

	matches, err := detect.Detect(root)
	if err != nil {
		return nil, fmt.Errorf("routes analysis: %w", err)
	}
	strat, match := pickStrategy(matches)
	if strat == nil {
		return nil, &analysis.UnsupportedProjectError{Root: root, Artifact: analysisType}
	}

	files, err := crawler.FindSourceFiles(root, strat.extensions(), opts.SkipDirs)
	if err != nil {
		return nil, fmt.Errorf("routes analysis: %w", err)
	}

	maxSize := opts.MaxFileSize()
	parts, parseErrs, err := analysis.RunFiles(ctx, files, opts.WorkerCount(), func(ctx context.Context, f crawler.File) (fileEntities, error) {
		src, readErr := crawler.ReadFileSafely(f.Path, maxSize)
		if readErr != nil {
			return fileEntities{}, readErr
		}
		return strat.extract(ctx, f, src)
	})
	if err != nil {
		return nil, fmt.Errorf("routes analysis: %w", err)
	}
	for _, pe := range parseErrs {
		log.Warn("route extraction failed", "strategy", strat.name(), "file", pe.FilePath, "error", pe.Message)
	}

	result := assemble(match, parts, parseErrs)
	log.Info("routes analysis complete",
		"root", root,
		"language", match.Language,
		"framework", match.Framework,
		"files", len(files),
		"blueprints", len(result.Blueprints),
		"routes", len(result.Routes),
		"failed_files", len(parseErrs))
	return result, nil
}

func pickStrategy(matches []detect.Match) (strategy, detect.Match) {
	for _, m := range matches {
		if s := strategyFor(m); s != nil {
			return s, m
		}
	}
	return nil, detect.Match{}
}

// assemble runs the second pass: routes join the blueprint they were
// registered on, full URLs are composed, and the method and security
// statistics are computed over the complete set.
func assemble(match detect.Match, parts []fileEntities, parseErrs []analysis.ParseError) *Result {
	blueprints := make([]Blueprint, 0)
	routes := make([]Route, 0)

	for _, p := range parts {
		locals := make(map[string]Blueprint)
		for _, bd := range p.blueprints {
			blueprints = append(blueprints, bd.bp)
			if _, taken := locals[bd.local]; bd.local != "" && !taken {
				locals[bd.local] = bd.bp
			}
		}
		for _, rd := range p.routes {
			r := rd.route
			if bp, ok := locals[rd.group]; ok {
				r.BlueprintID = bp.ID
				r.FullURL = bp.URLPrefix + r.URLPattern
			} else {
				r.FullURL = r.URLPattern
			}
			if r.Methods == nil {
				r.Methods = []string{}
			}
			if r.PathParams == nil {
				r.PathParams = []PathParam{}
			}
			if r.Security.AuthDecorators == nil {
				r.Security.AuthDecorators = []string{}
			}
			routes = append(routes, r)
		}
	}

	stats := Statistics{
		TotalRoutes:     len(routes),
		TotalBlueprints: len(blueprints),
		RoutesByMethod:  make(map[string]int),
	}
	for _, r := range routes {
		for _, m := range r.Methods {
			stats.RoutesByMethod[m]++
		}
		if r.Security.RequiresAuth {
			stats.ProtectedRoutes++
		} else {
			stats.UnprotectedRoutes++
		}
	}

	return &Result{
		AnalysisType: analysisType,
		Version:      analysis.Version,
		Language:     match.Language,
		Framework:    match.Framework,
		Blueprints:   blueprints,
		Routes:       routes,
		Statistics:   stats,
		ParseErrors:  parseErrs,
	}
}

// entityID builds the stable identity shared with the other artifact
// graphs: module:name:line, derived only from parsed content.
func entityID(module, name string, line int) string {
	return fmt.Sprintf("%s:%s:%d", module, name, line)
}

// authMarkers are decorator, attribute and middleware names that mark a
// handler as requiring authentication. Names containing "auth" count
// as well, which covers Authorize, PreAuthorize, login managers and
// most hand-rolled middleware.
var authMarkers = map[string]bool{
	"login_required":      true,
	"jwt_required":        true,
	"permission_required": true,
	"roles_required":      true,
	"useguards":           true,
	"secured":             true,
	"rolesallowed":        true,
}

// isAuthMarker reports whether a decorator or middleware name marks the
// route as protected. The comparison uses the last dotted segment with
// arguments stripped, case-insensitively.
func isAuthMarker(marker string) bool {
	name := markerName(marker)
	return authMarkers[name] || strings.Contains(name, "auth")
}

func markerName(marker string) string {
	if i := strings.IndexByte(marker, '('); i >= 0 {
		marker = marker[:i]
	}
	marker = strings.TrimSpace(marker)
	if i := strings.LastIndexByte(marker, '.'); i >= 0 {
		marker = marker[i+1:]
	}
	return strings.ToLower(marker)
}

// securityFrom filters the auth markers out of a handler's decorators
// or middleware chain.
func securityFrom(markers []string) Security {
	sec := Security{}
	for _, m := range markers {
		if isAuthMarker(m) {
			sec.RequiresAuth = true
			sec.AuthDecorators = append(sec.AuthDecorators, m)
		}
	}
	return sec
}

// ensureSlash normalizes the prefixes and patterns of frameworks that
// write them without a leading slash, so composed full URLs stay
// well-formed.
func ensureSlash(s string) string {
	if s == "" || strings.HasPrefix(s, "/") {
		return s
	}
	return "/" + s
}

var (
	colonParamRe = regexp.MustCompile(`[:*]([A-Za-z_]\w*)`)
	braceParamRe = regexp.MustCompile(`\{([A-Za-z_]\w*)(\?)?(?::([^{}]+))?\}`)
)

// colonParams reads :name placeholders, the style of Express, Rails,
// Gin and Echo. A *name wildcard becomes a path parameter.
func colonParams(pattern string) []PathParam {
	var params []PathParam
	for _, m := range colonParamRe.FindAllStringSubmatchIndex(pattern, -1) {
		typ := "string"
		if pattern[m[0]] == '*' {
			typ = "path"
		}
		params = append(params, PathParam{Name: pattern[m[2]:m[3]], Type: typ})
	}
	return params
}

// braceParams reads {name} placeholders, the style of Spring, Laravel
// and ASP.NET. An ASP.NET constraint like {id:int} supplies the type.
func braceParams(pattern string) []PathParam {
	var params []PathParam
	for _, m := range braceParamRe.FindAllStringSubmatch(pattern, -1) {
		typ := "string"
		if m[3] != "" {
			typ = m[3]
		}
		params = append(params, PathParam{Name: m[1], Type: typ})
	}
	return params
}

// stripQuotes removes one matching pair of ', " or ` delimiters.
func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	open := s[0]
	if (open == '\'' || open == '"' || open == '`') && s[len(s)-1] == open {
		return s[1 : len(s)-1]
	}
	return s
}

// splitArgs splits an argument list on commas outside any nesting or
// string literal.
func splitArgs(s string) []string {
	var parts []string
	depth := 0
	last := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// matchParen returns the offset of the parenthesis closing the one at
// open, or -1. The input must be masked so literal parentheses cannot
// unbalance the count.
func matchParen(masked string, open int) int {
	depth := 0
	for i := open; i < len(masked); i++ {
		switch masked[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// firstQuotedArg extracts the first string argument of a decorator or
// attribute written Name("value", ...) or Name(path = "value", ...).
func firstQuotedArg(dec string) string {
	open := strings.IndexByte(dec, '(')
	end := strings.LastIndexByte(dec, ')')
	if open < 0 || end <= open {
		return ""
	}
	for _, a := range splitArgs(dec[open+1 : end]) {
		if eq := strings.IndexByte(a, '='); eq >= 0 && !quoted(a) {
			a = strings.TrimSpace(a[eq+1:])
		}
		if strings.HasPrefix(a, "{") && strings.HasSuffix(a, "}") {
			if inner := splitArgs(a[1 : len(a)-1]); len(inner) > 0 {
				a = inner[0]
			}
		}
		if quoted(a) {
			return stripQuotes(a)
		}
	}
	return ""
}

// markerHead is a decorator's name without arguments or receiver,
// case preserved.
func markerHead(dec string) string {
	if i := strings.IndexByte(dec, '('); i >= 0 {
		dec = dec[:i]
	}
	dec = strings.TrimSpace(dec)
	if i := strings.LastIndexByte(dec, '.'); i >= 0 {
		dec = dec[i+1:]
	}
	return dec
}

var decoratorLineRe = regexp.MustCompile(`^@[\w.$]+(\(.*\))?$`)

// decoratorsAbove collects the @-decorator lines immediately preceding
// the declaration at start, in source order and without the @.
func decoratorsAbove(lit string, start int) []string {
	var decs []string
	lineStart := lineStartAt(lit, start)
	for lineStart > 0 {
		prevEnd := lineStart - 1
		prevStart := lineStartAt(lit, prevEnd)
		line := strings.TrimSpace(lit[prevStart:prevEnd])
		if !decoratorLineRe.MatchString(line) {
			break
		}
		decs = append([]string{strings.TrimPrefix(line, "@")}, decs...)
		lineStart = prevStart
	}
	return decs
}

// attributesAbove collects C#-style [Attr, Attr("x")] lines immediately
// preceding the declaration at start.
func attributesAbove(lit string, start int) []string {
	var attrs []string
	lineStart := lineStartAt(lit, start)
	for lineStart > 0 {
		prevEnd := lineStart - 1
		prevStart := lineStartAt(lit, prevEnd)
		line := strings.TrimSpace(lit[prevStart:prevEnd])
		if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "]") {
			break
		}
		attrs = append(splitArgs(line[1:len(line)-1]), attrs...)
		lineStart = prevStart
	}
	return attrs
}

func lineStartAt(s string, offset int) int {
	if offset > len(s) {
		offset = len(s)
	}
	for offset > 0 && s[offset-1] != '\n' {
		offset--
	}
	return offset
}

// depthFrom counts brace depth between two offsets of masked text.
func depthFrom(masked string, from, to int) int {
	depth := 0
	for i := from; i < to && i < len(masked); i++ {
		switch masked[i] {
		case '{':
			depth++
		case '}':
			depth--
		}
	}
	return depth
}

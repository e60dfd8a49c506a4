package flow

import (
	"context"
	"path"
	"regexp"
	"strings"

	"codeatlas/analysis"
	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// golangStrategy finds top-level func declarations, treating a receiver
// as the method marker. Headers are parenless, so conditions run from
// the keyword to the opening brace.
type golangStrategy struct{}

func (golangStrategy) name() string { return "golang" }
func (golangStrategy) extensions() []string {
	return []string{".go"}
}

func (golangStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	out := fileEntities{file: f.Rel, module: analysis.ModuleName(f.Rel), imports: newFileImports()}
	src := textutil.NewSource(string(content), textutil.FamilyCurly)
	goImports(src, &out.imports)
	collectCurly(&out, src, goDecls(src), curlyConfig{parenless: true, keywords: goKeywords})
	return out, nil
}

var (
	goFuncRe        = regexp.MustCompile(`(?m)^func[ \t]+(?:\(([^()]*)\)[ \t]*)?([A-Za-z_]\w*)(?:\[[^\[\]]*\])?[ \t]*\(`)
	goImportOneRe   = regexp.MustCompile(`(?m)^import[ \t]+(?:([A-Za-z_.]\w*)[ \t]+)?"([^"]+)"`)
	goImportBlockRe = regexp.MustCompile(`(?m)^import[ \t]*\(`)
	goImportLineRe  = regexp.MustCompile(`(?m)^[ \t]*(?:([A-Za-z_.]\w*)[ \t]+)?"([^"]+)"`)
)

func goDecls(src textutil.Source) []curlyDecl {
	masked := src.Masked
	var decls []curlyDecl
	for _, m := range goFuncRe.FindAllStringSubmatchIndex(masked, -1) {
		open := m[1] - 1
		close := matchParen(masked, open, len(masked))
		if close < 0 {
			continue
		}
		// the body brace sits on the signature line, after any return
		// values; a stop at the newline means a bodiless declaration
		stop := close + 1
		depth := 0
	scan:
		for stop < len(masked) {
			switch masked[stop] {
			case '(':
				depth++
			case ')':
				depth--
			case '{':
				if depth == 0 {
					break scan
				}
			case '\n':
				if depth == 0 {
					break scan
				}
			}
			stop++
		}
		bodyStart, bodyEnd := -1, -1
		if stop < len(masked) && masked[stop] == '{' {
			_, bodyStart, bodyEnd = textutil.ExtractBlockBody(masked, stop)
		}
		decls = append(decls, curlyDecl{
			name:      src.MaskedGroup(m, 2),
			params:    goParamNames(masked[open+1 : close]),
			isMethod:  m[2] >= 0,
			headStart: m[0],
			bodyStart: bodyStart,
			bodyEnd:   bodyEnd,
		})
	}
	return decls
}

// goParamNames keeps the name half of each name-type pair. A grouped
// pair like "a, b int" already splits into one name per entry.
func goParamNames(list string) []string {
	var names []string
	for _, p := range splitParams(list) {
		if f := strings.Fields(p); len(f) > 0 {
			names = append(names, f[0])
		}
	}
	return names
}

func goImports(src textutil.Source, imp *fileImports) {
	for _, m := range goImportOneRe.FindAllStringSubmatch(src.Lit, -1) {
		goAddImport(imp, m[1], m[2])
	}
	for _, m := range goImportBlockRe.FindAllStringIndex(src.Lit, -1) {
		open := m[1] - 1
		close := matchParen(src.Masked, open, len(src.Masked))
		if close < 0 {
			continue
		}
		for _, im := range goImportLineRe.FindAllStringSubmatch(src.Lit[open+1:close], -1) {
			goAddImport(imp, im[1], im[2])
		}
	}
}

func goAddImport(imp *fileImports, alias, spec string) {
	if alias == "_" || alias == "." {
		return
	}
	local := alias
	if local == "" {
		local = path.Base(spec)
		// module paths end in a version segment the package name skips
		if len(local) > 1 && local[0] == 'v' && isDigits(local[1:]) {
			local = path.Base(path.Dir(spec))
		}
	}
	imp.addModule(local, spec)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

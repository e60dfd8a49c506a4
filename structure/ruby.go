package structure

import (
	"context"
	"regexp"
	"strings"

	"codeatlas/analysis"
	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// rubyStrategy walks the file line by line keeping a stack of open
// class, module, def and do/end blocks. Modules count as interfaces
// when they declare members of their own; pure namespace wrappers are
// dropped.
type rubyStrategy struct{}

func (rubyStrategy) name() string         { return "ruby" }
func (rubyStrategy) extensions() []string { return []string{".rb"} }

var (
	rubyClassRe   = regexp.MustCompile(`^class\s+([A-Z]\w*(?:::[A-Z]\w*)*)(?:\s*<\s*(\S+))?`)
	rubyModuleRe  = regexp.MustCompile(`^module\s+([A-Z]\w*(?:::[A-Z]\w*)*)`)
	rubyDefRe     = regexp.MustCompile(`^def\s+(self\.)?([\w?!=\[\]<>+\-*/%]+)\s*(?:\(([^)]*)\))?`)
	rubyAttrRe    = regexp.MustCompile(`^attr_(accessor|reader|writer)\s+(.+)$`)
	rubyMixinRe   = regexp.MustCompile(`^(include|prepend|extend)\s+([A-Z][\w:]*)`)
	rubyVisSymRe  = regexp.MustCompile(`^(private|protected|public)\s+((?::[\w?!]+(?:\s*,\s*)?)+)$`)
	rubyRequireRe = regexp.MustCompile(`^require(_relative)?\s+['"]([^'"]+)['"]`)
	rubyIvarRe    = regexp.MustCompile(`^@(\w+)\s*(?:\|\|)?=[^=]`)
	rubyDoTailRe  = regexp.MustCompile(`(?:^|\s)do(?:\s*\|[^|]*\|)?$`)
	rubyBlockKwRe = regexp.MustCompile(`^(?:if|unless|while|until|case|begin|for)\b`)
)

type rubyDecl struct {
	cl         Class
	module     bool
	members    bool
	visPrivate bool
	dropped    bool
}

type rubyFrame struct {
	kind string // class, module, sclass, def, block
	decl int    // index into decls for class/module frames, else -1
	def  string // method name for def frames
}

type rubyWalker struct {
	src   textutil.Source
	out   *fileEntities
	decls []rubyDecl
	stack []rubyFrame
}

func (rubyStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	src := textutil.NewSource(string(content), textutil.FamilyRuby)
	out := fileEntities{file: f.Rel, module: analysis.ModuleName(f.Rel)}
	w := &rubyWalker{src: src, out: &out}

	masked := strings.Split(src.Masked, "\n")
	lit := strings.Split(src.Lit, "\n")
	for i, raw := range masked {
		w.line(strings.TrimSpace(raw), strings.TrimSpace(lit[i]), i+1)
	}

	for _, d := range w.decls {
		if d.dropped {
			continue
		}
		out.classes = append(out.classes, d.cl)
	}
	return out, nil
}

func (w *rubyWalker) line(line, litLine string, n int) {
	switch {
	case line == "":
		return
	case line == "end" || (strings.HasPrefix(line, "end") && !isIdentChar(line[3])):
		w.pop()
		return
	case strings.HasPrefix(line, "class <<"):
		w.push(rubyFrame{kind: "sclass", decl: -1})
		return
	}

	if m := rubyRequireRe.FindStringSubmatch(litLine); m != nil {
		source := m[2]
		if m[1] == "_relative" {
			source = "./" + strings.TrimPrefix(source, "./")
		}
		w.out.imports = append(w.out.imports, Import{Module: w.out.module, Source: source, Line: n})
		return
	}

	if m := rubyClassRe.FindStringSubmatch(line); m != nil {
		w.open(m[1], m[2], false, n)
		return
	}
	if m := rubyModuleRe.FindStringSubmatch(line); m != nil {
		w.open(m[1], "", true, n)
		return
	}

	if w.defLine(line, n) {
		return
	}

	if d := w.owner(); d != nil {
		switch line {
		case "private", "protected":
			d.visPrivate = true
			return
		case "public":
			d.visPrivate = false
			return
		}
		if m := rubyVisSymRe.FindStringSubmatch(line); m != nil && m[1] != "public" {
			w.markPrivate(d, m[2])
			return
		}
		if m := rubyAttrRe.FindStringSubmatch(line); m != nil {
			d.members = true
			for _, sym := range splitArgs(m[2]) {
				name := strings.TrimPrefix(strings.TrimSpace(sym), ":")
				if name != "" {
					d.cl.Properties = append(d.cl.Properties, Property{Name: name, Line: n})
				}
			}
			return
		}
		if m := rubyMixinRe.FindStringSubmatch(line); m != nil {
			d.members = true
			if m[1] != "extend" {
				d.cl.BaseClasses = append(d.cl.BaseClasses, strings.ReplaceAll(m[2], "::", "."))
			}
			return
		}
		if m := rubyIvarRe.FindStringSubmatch(line); m != nil && w.inInitialize() {
			w.addIvar(d, m[1], n)
		}
	}

	// plain statements may still open a do/end or keyword block
	if rubyBlockKwRe.MatchString(line) || rubyDoTailRe.MatchString(line) {
		w.push(rubyFrame{kind: "block", decl: -1})
	}
}

func (w *rubyWalker) open(name, base string, module bool, n int) {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		name = name[i+2:]
	}
	d := rubyDecl{module: module}
	d.cl = Class{
		ID:          entityID(w.out.module, name, n),
		Name:        name,
		Module:      w.out.module,
		File:        w.out.file,
		Line:        n,
		IsInterface: module,
	}
	if base != "" {
		d.cl.BaseClasses = append(d.cl.BaseClasses, strings.ReplaceAll(base, "::", "."))
	}
	w.decls = append(w.decls, d)
	kind := "class"
	if module {
		kind = "module"
	}
	w.push(rubyFrame{kind: kind, decl: len(w.decls) - 1})
}

func (w *rubyWalker) defLine(line string, n int) bool {
	private := false
	if rest, ok := strings.CutPrefix(line, "private "); ok && strings.HasPrefix(rest, "def ") {
		line, private = rest, true
	}
	m := rubyDefRe.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	rest := strings.TrimSpace(line[len(m[0]):])
	endless := strings.HasPrefix(rest, "=") && !strings.HasPrefix(rest, "==")
	inline := strings.HasSuffix(line, " end") || strings.Contains(line, "; end")

	if d := w.owner(); d != nil {
		d.members = true
		d.cl.Methods = append(d.cl.Methods, Method{
			Name:       m[2],
			Line:       n,
			Parameters: rubyParamNames(m[3]),
			IsStatic:   m[1] != "" || w.inSingleton(),
			IsPrivate:  private || d.visPrivate,
		})
	}
	if !endless && !inline {
		w.push(rubyFrame{kind: "def", decl: -1, def: m[2]})
	}
	return true
}

// owner finds the innermost class or module the current line belongs to.
func (w *rubyWalker) owner() *rubyDecl {
	for i := len(w.stack) - 1; i >= 0; i-- {
		if d := w.stack[i].decl; d >= 0 {
			return &w.decls[d]
		}
	}
	return nil
}

func (w *rubyWalker) inSingleton() bool {
	for i := len(w.stack) - 1; i >= 0; i-- {
		switch w.stack[i].kind {
		case "sclass":
			return true
		case "class", "module":
			return false
		}
	}
	return false
}

func (w *rubyWalker) inInitialize() bool {
	for i := len(w.stack) - 1; i >= 0; i-- {
		switch w.stack[i].kind {
		case "def":
			return w.stack[i].def == "initialize"
		case "class", "module":
			return false
		}
	}
	return false
}

func (w *rubyWalker) addIvar(d *rubyDecl, name string, n int) {
	for _, p := range d.cl.Properties {
		if p.Name == name {
			return
		}
	}
	d.cl.Properties = append(d.cl.Properties, Property{Name: name, Line: n})
}

func (w *rubyWalker) markPrivate(d *rubyDecl, syms string) {
	for _, sym := range splitArgs(syms) {
		name := strings.TrimPrefix(strings.TrimSpace(sym), ":")
		for i := range d.cl.Methods {
			if d.cl.Methods[i].Name == name {
				d.cl.Methods[i].IsPrivate = true
			}
		}
	}
}

func (w *rubyWalker) push(f rubyFrame) {
	w.stack = append(w.stack, f)
}

func (w *rubyWalker) pop() {
	if len(w.stack) == 0 {
		return
	}
	top := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	if top.decl >= 0 {
		d := &w.decls[top.decl]
		if d.module && !d.members {
			d.dropped = true
		}
	}
}

func rubyParamNames(list string) []string {
	var names []string
	for _, p := range splitArgs(list) {
		p = strings.TrimLeft(strings.TrimSpace(p), "*&")
		if i := strings.IndexAny(p, ":="); i >= 0 {
			p = p[:i]
		}
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

package structure

import (
	"context"
	"regexp"
	"strings"

	"codeatlas/analysis"
	"codeatlas/internal/crawler"
	"codeatlas/internal/textutil"
)

// abapStrategy reads CLASS ... DEFINITION and INTERFACE blocks.
// Implementation blocks carry no declarations and are skipped. ABAP is
// case-insensitive, so every pattern matches that way and names are
// recorded lowercased.
type abapStrategy struct{}

func (abapStrategy) name() string { return "abap" }
func (abapStrategy) extensions() []string {
	return []string{".abap"}
}

var (
	abapClassDefRe  = regexp.MustCompile(`(?i)^class\s+([\w/]+)\s+definition\b(.*)$`)
	abapClassImplRe = regexp.MustCompile(`(?i)^class\s+[\w/]+\s+implementation\b`)
	abapIfaceDefRe  = regexp.MustCompile(`(?i)^interface\s+([\w/]+)`)
	abapEndRe       = regexp.MustCompile(`(?i)^(endclass|endinterface)\b`)
	abapSectionRe   = regexp.MustCompile(`(?i)^(public|protected|private)\s+section\b`)
	abapInheritRe   = regexp.MustCompile(`(?i)\binheriting\s+from\s+([\w/]+)`)
	abapDeferredRe  = regexp.MustCompile(`(?i)\b(deferred|load)\b`)
	abapAbstractRe  = regexp.MustCompile(`(?i)\babstract\b`)
	abapMethodsRe   = regexp.MustCompile(`(?i)^(class-)?methods\b:?\s*(.*)$`)
	abapDataRe      = regexp.MustCompile(`(?i)^(class-)?data\b:?\s*(.*)$`)
	abapIfacesRe    = regexp.MustCompile(`(?i)^interfaces\b:?\s*(.*)$`)
	abapNameRe      = regexp.MustCompile(`^[\w/~]+`)
	abapDataItemRe  = regexp.MustCompile(`(?i)^([\w/]+)(?:\(\d+\))?\s+(?:type|like)\s+(?:(?:standard|sorted|hashed)\s+table\s+of\s+)?(?:ref\s+to\s+)?([\w/=>]+)`)
	abapParamRe     = regexp.MustCompile(`(?i)\b([\w/]+)\s+type\b`)
	abapReturnRe    = regexp.MustCompile(`(?i)\breturning\b`)
)

// abapSigWords are the clause keywords a method signature continues
// with. A chained piece starting with one of them belongs to the method
// declared before it, not to a new declaration.
var abapSigWords = map[string]bool{
	"importing":  true,
	"exporting":  true,
	"changing":   true,
	"returning":  true,
	"raising":    true,
	"exceptions": true,
	"value":      true,
}

func (abapStrategy) extract(_ context.Context, f crawler.File, content []byte) (fileEntities, error) {
	lit := textutil.RemoveComments(string(content), textutil.FamilyABAP)
	lines := strings.Split(lit, "\n")

	out := fileEntities{file: f.Rel, module: analysis.ModuleName(f.Rel)}

	// cur is the open definition block. A definition header may run
	// over several lines until its closing period, inHeader covers
	// that stretch. chainKind carries a colon-chained statement onto
	// its continuation lines.
	var cur *Class
	inHeader := false
	skipImpl := false
	private := false
	chainKind := ""
	chainStatic := false

	item := func(piece, kind string, static bool, lineNo int) {
		piece = strings.TrimSpace(strings.TrimRight(piece, ".,"))
		if piece == "" {
			return
		}
		switch kind {
		case "methods":
			name := abapNameRe.FindString(piece)
			if name == "" {
				return
			}
			low := strings.ToLower(name)
			clause := piece[len(name):]
			if loc := abapReturnRe.FindStringIndex(clause); loc != nil {
				clause = clause[:loc[0]]
			}
			var params []string
			for _, pm := range abapParamRe.FindAllStringSubmatch(clause, -1) {
				params = append(params, strings.ToLower(pm[1]))
			}
			if abapSigWords[low] {
				if low != "returning" && len(cur.Methods) > 0 {
					last := &cur.Methods[len(cur.Methods)-1]
					last.Parameters = append(last.Parameters, params...)
				}
				return
			}
			// a bare "name TYPE ..." piece is a wrapped parameter line
			if abapDataItemRe.MatchString(piece) {
				if len(cur.Methods) > 0 {
					last := &cur.Methods[len(cur.Methods)-1]
					last.Parameters = append(last.Parameters, low)
				}
				return
			}
			cur.Methods = append(cur.Methods, Method{
				Name:       low,
				Line:       lineNo,
				Parameters: params,
				IsStatic:   static,
				IsPrivate:  private,
			})
		case "data":
			if m := abapDataItemRe.FindStringSubmatch(piece); m != nil {
				cur.Properties = append(cur.Properties, Property{
					Name: strings.ToLower(m[1]),
					Type: strings.ToLower(m[2]),
					Line: lineNo,
				})
			}
		case "interfaces":
			if name := abapNameRe.FindString(piece); name != "" {
				cur.BaseClasses = append(cur.BaseClasses, strings.ToLower(name))
			}
		}
	}
	items := func(text, kind string, static bool, lineNo int) {
		for _, piece := range strings.Split(text, ",") {
			item(piece, kind, static, lineNo)
		}
		chainKind, chainStatic = "", false
		if !strings.Contains(text, ".") {
			chainKind, chainStatic = kind, static
		}
	}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		lineNo := i + 1
		if line == "" {
			continue
		}

		if skipImpl {
			if abapEndRe.MatchString(line) {
				skipImpl = false
			}
			continue
		}

		if inHeader {
			if m := abapInheritRe.FindStringSubmatch(line); m != nil {
				cur.BaseClasses = append(cur.BaseClasses, strings.ToLower(m[1]))
			}
			if abapAbstractRe.MatchString(line) {
				cur.IsAbstract = true
			}
			if strings.Contains(line, ".") {
				inHeader = false
			}
			continue
		}

		if cur != nil {
			switch {
			case abapEndRe.MatchString(line):
				out.classes = append(out.classes, *cur)
				cur = nil
				chainKind = ""
			case abapSectionRe.MatchString(line):
				m := abapSectionRe.FindStringSubmatch(line)
				private = strings.EqualFold(m[1], "private")
				chainKind = ""
			case abapMethodsRe.MatchString(line):
				m := abapMethodsRe.FindStringSubmatch(line)
				items(m[2], "methods", m[1] != "", lineNo)
			case abapDataRe.MatchString(line):
				m := abapDataRe.FindStringSubmatch(line)
				items(m[2], "data", m[1] != "", lineNo)
			case abapIfacesRe.MatchString(line):
				m := abapIfacesRe.FindStringSubmatch(line)
				items(m[1], "interfaces", false, lineNo)
			case chainKind != "":
				items(line, chainKind, chainStatic, lineNo)
			}
			continue
		}

		if abapClassImplRe.MatchString(line) {
			skipImpl = true
			continue
		}
		if m := abapClassDefRe.FindStringSubmatch(line); m != nil {
			// forward declarations carry no body of their own
			if abapDeferredRe.MatchString(m[2]) {
				continue
			}
			name := strings.ToLower(m[1])
			cur = &Class{
				ID:     entityID(out.module, name, lineNo),
				Name:   name,
				Module: out.module,
				File:   out.file,
				Line:   lineNo,
			}
			private = false
			if im := abapInheritRe.FindStringSubmatch(m[2]); im != nil {
				cur.BaseClasses = append(cur.BaseClasses, strings.ToLower(im[1]))
			}
			cur.IsAbstract = abapAbstractRe.MatchString(m[2])
			inHeader = !strings.Contains(m[2], ".")
			continue
		}
		if m := abapIfaceDefRe.FindStringSubmatch(line); m != nil {
			if abapDeferredRe.MatchString(line[len(m[0]):]) {
				continue
			}
			name := strings.ToLower(m[1])
			cur = &Class{
				ID:          entityID(out.module, name, lineNo),
				Name:        name,
				Module:      out.module,
				File:        out.file,
				Line:        lineNo,
				IsInterface: true,
			}
			private = false
		}
	}
	if cur != nil {
		out.classes = append(out.classes, *cur)
	}
	return out, nil
}

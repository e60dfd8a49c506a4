package flow

import (
	"regexp"
	"sort"
	"strings"

	"codeatlas/internal/textutil"
)

// curlyDecl is one function or method a strategy found, before its body
// is scanned. bodyStart/bodyEnd bound the body interior in the masked
// text; a bodiless declaration carries -1.
type curlyDecl struct {
	name       string
	params     []string
	decorators []string
	isAsync    bool
	isMethod   bool
	headStart  int
	bodyStart  int
	bodyEnd    int
}

// curlyConfig tunes the body scanner for one language. parenless means
// Go-style headers where the condition runs to the opening brace.
type curlyConfig struct {
	parenless bool
	keywords  map[string]string
}

// cKeywords covers the if/for/while/try family shared by TypeScript,
// Java and C#. Mapped to "" the keyword is tracked for brace depth but
// produces no flow node.
var cKeywords = map[string]string{
	"if":     FlowIfElse,
	"for":    FlowForLoop,
	"while":  FlowWhileLoop,
	"do":     FlowWhileLoop,
	"try":    FlowTryExcept,
	"switch": "",
}

var goKeywords = map[string]string{
	"if":     FlowIfElse,
	"for":    FlowForLoop,
	"switch": "",
	"select": "",
}

// reservedCalls are words whose trailing parenthesis is syntax, not a
// call site.
var reservedCalls = map[string]bool{
	"if": true, "else": true, "for": true, "foreach": true,
	"while": true, "do": true, "switch": true, "select": true,
	"case": true, "default": true, "try": true, "catch": true,
	"finally": true, "return": true, "new": true, "throw": true,
	"throws": true, "typeof": true, "instanceof": true, "await": true,
	"yield": true, "delete": true, "void": true, "in": true, "of": true,
	"function": true, "func": true, "var": true, "let": true,
	"const": true, "using": true, "lock": true, "fixed": true,
	"super": true, "this": true, "go": true, "defer": true,
	"nameof": true, "sizeof": true, "synchronized": true, "assert": true,
}

// collectCurly turns the declarations a strategy found into the file's
// functions and scans every body for calls, branches and decision
// points. Nested declaration spans are skipped during a scan so their
// contents stay attributed to the inner function alone.
func collectCurly(out *fileEntities, src textutil.Source, decls []curlyDecl, cfg curlyConfig) {
	sort.SliceStable(decls, func(i, j int) bool { return decls[i].headStart < decls[j].headStart })
	kept := decls[:0]
	lastStart := -1
	for _, d := range decls {
		if d.headStart == lastStart {
			continue
		}
		lastStart = d.headStart
		kept = append(kept, d)
	}
	decls = kept

	base := len(out.functions)
	for _, d := range decls {
		line := src.Line(d.headStart)
		endLine := line
		if d.bodyEnd > 0 {
			endLine = src.Line(d.bodyEnd)
		}
		out.functions = append(out.functions, Function{
			ID:         functionID(out.module, d.name, line),
			Name:       d.name,
			Module:     out.module,
			File:       out.file,
			LineStart:  line,
			LineEnd:    endLine,
			Parameters: d.params,
			Decorators: d.decorators,
			Complexity: 1,
			IsAsync:    d.isAsync,
			IsMethod:   d.isMethod,
		})
	}

	for i, d := range decls {
		if d.bodyStart < 0 || d.bodyEnd <= d.bodyStart {
			continue
		}
		s := &bodyScanner{
			src:      src,
			out:      out,
			cfg:      cfg,
			fnIdx:    base + i,
			holes:    nestedSpans(decls, i),
			chain:    make(map[int]int),
			tryChain: make(map[int]int),
		}
		s.run(d.bodyStart, d.bodyEnd)
	}
}

// nestedSpans lists the head-to-body spans of declarations contained in
// declaration i's body, so the outer scan can jump over them.
func nestedSpans(decls []curlyDecl, i int) [][2]int {
	d := decls[i]
	var spans [][2]int
	for j, o := range decls {
		if j == i || o.bodyEnd < 0 {
			continue
		}
		if o.headStart >= d.bodyStart && o.bodyEnd <= d.bodyEnd {
			spans = append(spans, [2]int{o.headStart, o.bodyEnd + 1})
		}
	}
	return spans
}

// flowCtxEntry is one open construct influencing the calls beneath it:
// either a braced block (depth set) or a single statement (from/until).
type flowCtxEntry struct {
	flowType string
	arm      string
	depth    int
	from     int
	until    int
}

// bodyScanner walks one masked function body character by character,
// tracking brace depth and the stack of open control constructs so each
// call site knows whether it is conditional or looped.
type bodyScanner struct {
	src      textutil.Source
	out      *fileEntities
	cfg      curlyConfig
	fnIdx    int
	holes    [][2]int
	hole     int
	depth    int
	blocks   []flowCtxEntry
	singles  []flowCtxEntry
	pending  *flowCtxEntry
	chain    map[int]int
	tryChain map[int]int
	elseIf   bool
}

func (s *bodyScanner) run(start, end int) {
	masked := s.src.Masked
	i := start
	for i < end {
		if s.hole < len(s.holes) {
			h := s.holes[s.hole]
			if i >= h[1] {
				s.hole++
				continue
			}
			if i >= h[0] {
				i = h[1]
				s.hole++
				continue
			}
		}
		c := masked[i]
		switch {
		case c == '{':
			s.open()
			i++
		case c == '}':
			s.close()
			i++
		case c == '&' && i+1 < end && masked[i+1] == '&':
			s.bump()
			i += 2
		case c == '|' && i+1 < end && masked[i+1] == '|':
			s.bump()
			i += 2
		case isIdentStart(c):
			i = s.word(i, end)
		default:
			i++
		}
	}
}

func (s *bodyScanner) open() {
	s.depth++
	e := flowCtxEntry{depth: s.depth}
	if s.pending != nil {
		e.flowType = s.pending.flowType
		e.arm = s.pending.arm
		s.pending = nil
	}
	s.blocks = append(s.blocks, e)
}

func (s *bodyScanner) close() {
	for len(s.blocks) > 0 && s.blocks[len(s.blocks)-1].depth == s.depth {
		s.blocks = s.blocks[:len(s.blocks)-1]
	}
	delete(s.chain, s.depth)
	delete(s.tryChain, s.depth)
	if s.depth > 0 {
		s.depth--
	}
}

func (s *bodyScanner) bump() {
	s.out.functions[s.fnIdx].Complexity++
}

// flags reports the call context at offset i from the open constructs.
func (s *bodyScanner) flags(i int) (conditional, loop bool) {
	for len(s.singles) > 0 && s.singles[len(s.singles)-1].until <= i {
		s.singles = s.singles[:len(s.singles)-1]
	}
	apply := func(e flowCtxEntry) {
		switch e.flowType {
		case FlowIfElse:
			conditional = true
		case FlowForLoop, FlowWhileLoop:
			loop = true
		case FlowTryExcept:
			if e.arm == "catch" {
				conditional = true
			}
		}
	}
	for _, e := range s.blocks {
		apply(e)
	}
	for _, e := range s.singles {
		if e.from <= i {
			apply(e)
		}
	}
	return conditional, loop
}

func (s *bodyScanner) word(i, end int) int {
	masked := s.src.Masked
	j := i
	for j < end && isIdentChar(masked[j]) {
		j++
	}
	w := masked[i:j]
	if _, ok := s.cfg.keywords[w]; (ok || w == "else" || s.isTryArm(w)) && !precededByDot(masked, i) {
		return s.control(w, i, j, end)
	}
	return s.maybeCall(i, j, end)
}

func (s *bodyScanner) isTryArm(w string) bool {
	if _, hasTry := s.cfg.keywords["try"]; !hasTry {
		return false
	}
	return w == "catch" || w == "finally"
}

func (s *bodyScanner) control(word string, start, wordEnd, end int) int {
	masked := s.src.Masked
	switch word {
	case "else":
		j := skipWS(masked, wordEnd, end)
		if strings.HasPrefix(masked[j:], "if") && !isIdentChar(byteAt(masked, j+2)) {
			s.elseIf = true
			return wordEnd
		}
		if idx, ok := s.chain[s.depth]; ok {
			s.appendBranch(idx, "else")
		}
		s.arm(FlowIfElse, "else", wordEnd, end)
		return wordEnd

	case "if":
		condStart, condEnd, tail := s.header(wordEnd, end)
		s.bump()
		if idx, ok := s.chain[s.depth]; ok && s.elseIf {
			s.appendBranch(idx, "elif")
			s.arm(FlowIfElse, "elif", tail, end)
		} else {
			s.chain[s.depth] = s.node(FlowIfElse, s.condition(condStart, condEnd), []string{"if"}, start)
			s.arm(FlowIfElse, "if", tail, end)
		}
		s.elseIf = false
		if condStart >= 0 {
			return condStart
		}
		return wordEnd

	case "for", "foreach", "while":
		condStart, condEnd, tail := s.header(wordEnd, end)
		if word == "while" {
			// the closing half of a do-while carries no block
			if j := skipWS(masked, tail, end); j < end && masked[j] == ';' {
				return tail
			}
		}
		s.bump()
		flowType := s.cfg.keywords[word]
		s.node(flowType, s.condition(condStart, condEnd), []string{"body"}, start)
		s.arm(flowType, "body", tail, end)
		if condStart >= 0 {
			return condStart
		}
		return wordEnd

	case "do":
		s.bump()
		s.node(FlowWhileLoop, "", []string{"body"}, start)
		s.arm(FlowWhileLoop, "body", wordEnd, end)
		return wordEnd

	case "try":
		s.tryChain[s.depth] = s.node(FlowTryExcept, "", nil, start)
		s.arm(FlowTryExcept, "try", wordEnd, end)
		return wordEnd

	case "catch":
		s.bump()
		condStart, condEnd, tail := s.header(wordEnd, end)
		label := "catch"
		if condEnd > condStart {
			if fields := strings.Fields(s.src.Lit[condStart:condEnd]); len(fields) >= 2 {
				label = fields[0]
			}
		}
		if idx, ok := s.tryChain[s.depth]; ok {
			s.appendBranch(idx, label)
		}
		s.arm(FlowTryExcept, "catch", tail, end)
		return tail

	case "finally":
		if idx, ok := s.tryChain[s.depth]; ok {
			s.appendBranch(idx, "finally")
		}
		s.arm(FlowTryExcept, "finally", wordEnd, end)
		return wordEnd
	}

	// switch and select only matter for brace bookkeeping
	return wordEnd
}

// header locates the parenthesized or parenless construct header after
// a keyword. tail is where the lookahead for the block begins.
func (s *bodyScanner) header(from, end int) (condStart, condEnd, tail int) {
	masked := s.src.Masked
	if s.cfg.parenless {
		brace := from
		for brace < end && masked[brace] != '{' && masked[brace] != '}' {
			brace++
		}
		if brace >= end || masked[brace] != '{' {
			return -1, -1, from
		}
		return from, brace, brace
	}
	j := skipWS(masked, from, end)
	if j < end && masked[j] == '(' {
		if close := matchParen(masked, j, end); close > 0 {
			return j + 1, close, close + 1
		}
	}
	return -1, -1, from
}

func (s *bodyScanner) condition(condStart, condEnd int) string {
	if condStart < 0 || condEnd <= condStart {
		return ""
	}
	return condense(s.src.Lit[condStart:condEnd])
}

// arm opens the context for a construct's block or single statement.
func (s *bodyScanner) arm(flowType, arm string, from, end int) {
	masked := s.src.Masked
	j := skipWS(masked, from, end)
	if j >= end {
		return
	}
	switch masked[j] {
	case '{':
		s.pending = &flowCtxEntry{flowType: flowType, arm: arm}
	case ';', '}':
		return
	default:
		until := j
		for until < end && masked[until] != ';' && masked[until] != '}' {
			until++
		}
		s.singles = append(s.singles, flowCtxEntry{flowType: flowType, arm: arm, from: j, until: until})
	}
}

func (s *bodyScanner) node(flowType, condition string, branches []string, at int) int {
	s.out.flows = append(s.out.flows, ControlFlowNode{
		ParentFunctionID: s.out.functions[s.fnIdx].ID,
		FlowType:         flowType,
		Condition:        condition,
		Line:             s.src.Line(at),
		Branches:         branches,
	})
	return len(s.out.flows) - 1
}

func (s *bodyScanner) appendBranch(idx int, label string) {
	s.out.flows[idx].Branches = append(s.out.flows[idx].Branches, label)
}

// maybeCall reads an identifier chain and records a call when it ends
// at an opening parenthesis.
func (s *bodyScanner) maybeCall(i, firstEnd, end int) int {
	masked := s.src.Masked
	k := firstEnd
	for {
		j := skipWS(masked, k, end)
		if j < end && masked[j] == '?' && j+1 < end && masked[j+1] == '.' {
			j += 2
		} else if j < end && masked[j] == '.' {
			j++
		} else {
			break
		}
		j = skipWS(masked, j, end)
		if j >= end || !isIdentStart(masked[j]) {
			return k
		}
		for j < end && isIdentChar(masked[j]) {
			j++
		}
		k = j
	}

	p := skipWS(masked, k, end)
	if p >= end || masked[p] != '(' {
		return k
	}
	chain := masked[i:k]
	if !strings.ContainsAny(chain, ".?") && reservedCalls[chain] {
		return k
	}
	conditional, loop := s.flags(i)
	s.out.calls = append(s.out.calls, rawCall{
		callerID:    s.out.functions[s.fnIdx].ID,
		callee:      chain,
		line:        s.src.Line(i),
		conditional: conditional,
		loop:        loop,
	})
	return p
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func byteAt(s string, i int) byte {
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}

func skipWS(s string, i, end int) int {
	for i < end {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			i++
		default:
			return i
		}
	}
	return i
}

func precededByDot(s string, i int) bool {
	for i--; i >= 0; i-- {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		case '.':
			return true
		default:
			return false
		}
	}
	return false
}

// matchParen returns the offset of the parenthesis closing the one at
// open, or -1. The input must be masked so literal parentheses cannot
// unbalance the count.
func matchParen(masked string, open, end int) int {
	depth := 0
	for i := open; i < end; i++ {
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

// splitParams splits a parameter list on commas outside any nesting.
func splitParams(s string) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
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

// stripParamDecorators drops leading @Annotation(...) markers from a
// single parameter declaration.
func stripParamDecorators(p string) string {
	for strings.HasPrefix(p, "@") {
		i := 1
		for i < len(p) && (isIdentChar(p[i]) || p[i] == '.') {
			i++
		}
		if i < len(p) && p[i] == '(' {
			depth := 0
			for ; i < len(p); i++ {
				if p[i] == '(' {
					depth++
				} else if p[i] == ')' {
					depth--
					if depth == 0 {
						i++
						break
					}
				}
			}
		}
		p = strings.TrimSpace(p[i:])
	}
	return p
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

// attributesAbove collects C#-style [Attr, Attr(...)] lines immediately
// preceding the declaration at start.
func attributesAbove(lit string, start int) []string {
	var decs []string
	lineStart := lineStartAt(lit, start)
	for lineStart > 0 {
		prevEnd := lineStart - 1
		prevStart := lineStartAt(lit, prevEnd)
		line := strings.TrimSpace(lit[prevStart:prevEnd])
		if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "]") {
			break
		}
		var group []string
		for _, attr := range splitParams(line[1 : len(line)-1]) {
			group = append(group, attr)
		}
		decs = append(group, decs...)
		lineStart = prevStart
	}
	return decs
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

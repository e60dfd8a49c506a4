package structure

import (
	"regexp"
	"strings"
)

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

func restOfLine(s string, from int) string {
	if end := strings.IndexByte(s[from:], '\n'); end >= 0 {
		return s[from : from+end]
	}
	return s[from:]
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

func isIdentChar(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func tsParamNames(list string) []string {
	var names []string
	for _, p := range splitParams(list) {
		p = stripParamDecorators(strings.TrimPrefix(p, "..."))
		if i := strings.IndexAny(p, ":=?"); i >= 0 {
			p = p[:i]
		}
		if f := strings.Fields(p); len(f) > 0 {
			p = f[len(f)-1]
		} else {
			continue
		}
		names = append(names, p)
	}
	return names
}

func javaParamNames(list string) []string {
	var names []string
	for _, p := range splitParams(list) {
		p = strings.TrimPrefix(stripParamDecorators(p), "final ")
		if f := strings.Fields(p); len(f) > 0 {
			names = append(names, f[len(f)-1])
		}
	}
	return names
}

func csParamNames(list string) []string {
	var names []string
	for _, p := range splitParams(list) {
		if strings.HasPrefix(p, "[") {
			if i := strings.Index(p, "]"); i >= 0 {
				p = strings.TrimSpace(p[i+1:])
			}
		}
		if i := strings.IndexByte(p, '='); i >= 0 {
			p = p[:i]
		}
		if f := strings.Fields(p); len(f) > 0 {
			names = append(names, f[len(f)-1])
		}
	}
	return names
}

// baseList splits an extends or implements clause into its entries,
// dropping generic arguments.
func baseList(list string) []string {
	var out []string
	for _, b := range splitTypeArgs(list) {
		b = strings.TrimSpace(stripTypeArgs(b))
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}

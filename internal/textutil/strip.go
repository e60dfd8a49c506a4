// Package textutil provides comment and string-literal scrubbing for
// source text ahead of regex-based structural matching. All transforms
// replace spans with whitespace of identical length so byte offsets,
// column positions and line numbers survive unchanged.
package textutil

import "strings"

// Family selects the comment and string syntax of a language group.
type Family int

const (
	// FamilyCurly covers Java, C#, TypeScript, JavaScript and Go:
	// // and /* */ comments; ', " and ` string delimiters.
	FamilyCurly Family = iota
	// FamilyPython covers Python: # comments; ', ", ''' and """ strings.
	FamilyPython
	// FamilyRuby covers Ruby: # comments; ' and " strings.
	FamilyRuby
	// FamilyPHP covers PHP: //, # and /* */ comments; ' and " strings.
	FamilyPHP
	// FamilyABAP covers ABAP: " inline comments, * full-line comments,
	// ' strings with '' escaping. Source is case-insensitive.
	FamilyABAP
	// FamilyPrisma covers the Prisma schema DSL: // comments, " strings.
	FamilyPrisma
)

// MaskStrings blanks the interior of every string literal, keeping the
// delimiters and all newlines in place. Masking must run before
// StripComments: a comment marker inside a string literal (a URL with
// //, a format string with #) would otherwise truncate the value.
func MaskStrings(content string, family Family) string {
	switch family {
	case FamilyPython:
		return maskWith(content, []delimiter{
			{open: `"""`, multiline: true, escape: true},
			{open: `'''`, multiline: true, escape: true},
			{open: `"`, escape: true},
			{open: `'`, escape: true},
		})
	case FamilyCurly:
		return maskWith(content, []delimiter{
			{open: "`", multiline: true},
			{open: `"`, escape: true},
			{open: `'`, escape: true},
		})
	case FamilyRuby, FamilyPHP:
		return maskWith(content, []delimiter{
			{open: `"`, escape: true},
			{open: `'`, escape: true},
		})
	case FamilyABAP:
		return maskWith(content, []delimiter{
			{open: `'`, doubled: true},
		})
	case FamilyPrisma:
		return maskWith(content, []delimiter{
			{open: `"`, escape: true},
		})
	}
	return content
}

// StripComments blanks comment spans, preserving newlines. It assumes
// string literals were already masked by MaskStrings; running it on raw
// content corrupts any string value containing a comment marker.
func StripComments(content string, family Family) string {
	return blankSpans(content, commentSpans(content, family))
}

// Scrub applies MaskStrings then StripComments in the required order.
// The result is safe input for structural regexes; literal values must
// still be read from the original content at the matched offsets.
func Scrub(content string, family Family) string {
	masked := MaskStrings(content, family)
	return blankSpans(masked, commentSpans(masked, family))
}

// RemoveComments blanks comment spans while leaving string literals
// readable: spans are located on a masked copy, then blanked on the
// original. The result is what line-oriented strategies match against
// when they need literal values (URLs, table names) with comments gone.
func RemoveComments(content string, family Family) string {
	masked := MaskStrings(content, family)
	return blankSpans(content, commentSpans(masked, family))
}

// commentSpans locates comment byte ranges. content must already have
// its string literals masked.
func commentSpans(content string, family Family) [][2]int {
	switch family {
	case FamilyPython, FamilyRuby:
		return mixedCommentSpans(content, []string{"#"}, false)
	case FamilyCurly:
		return mixedCommentSpans(content, []string{"//"}, true)
	case FamilyPHP:
		return mixedCommentSpans(content, []string{"//", "#"}, true)
	case FamilyPrisma:
		return mixedCommentSpans(content, []string{"//"}, false)
	case FamilyABAP:
		return abapCommentSpans(content)
	}
	return nil
}

type delimiter struct {
	open      string
	multiline bool // newlines allowed inside the literal
	escape    bool // backslash escapes the next character
	doubled   bool // doubling the delimiter escapes it (ABAP '')
}

func maskWith(content string, delims []delimiter) string {
	out := []byte(content)
	i := 0
	for i < len(out) {
		d, ok := matchDelimiter(content, i, delims)
		if !ok {
			i++
			continue
		}
		i = maskLiteral(out, content, i, d)
	}
	return string(out)
}

func matchDelimiter(content string, i int, delims []delimiter) (delimiter, bool) {
	for _, d := range delims {
		if strings.HasPrefix(content[i:], d.open) {
			return d, true
		}
	}
	return delimiter{}, false
}

// maskLiteral blanks one literal starting at the opening delimiter and
// returns the offset just past its closing delimiter. An unterminated
// single-line literal is masked to the end of its line, a multi-line
// one to the end of the content.
func maskLiteral(out []byte, content string, start int, d delimiter) int {
	i := start + len(d.open)
	for i < len(content) {
		c := content[i]
		if d.escape && c == '\\' && i+1 < len(content) {
			out[i], out[i+1] = ' ', ' '
			i += 2
			continue
		}
		if strings.HasPrefix(content[i:], d.open) {
			if d.doubled && strings.HasPrefix(content[i+len(d.open):], d.open) {
				blank(out, i, i+2*len(d.open))
				i += 2 * len(d.open)
				continue
			}
			return i + len(d.open)
		}
		if c == '\n' {
			if !d.multiline {
				return i
			}
			i++
			continue
		}
		out[i] = ' '
		i++
	}
	return i
}

// mixedCommentSpans finds line and block comments in a single scan, so
// a // inside /* */ (or a /* after //) never opens a phantom span.
func mixedCommentSpans(content string, lineMarkers []string, blocks bool) [][2]int {
	var spans [][2]int
	i := 0
	for i < len(content) {
		if blocks && strings.HasPrefix(content[i:], "/*") {
			end := strings.Index(content[i+2:], "*/")
			stop := len(content)
			if end >= 0 {
				stop = i + 2 + end + 2
			}
			spans = append(spans, [2]int{i, stop})
			i = stop
			continue
		}
		if hasAnyPrefix(content[i:], lineMarkers) {
			start := i
			for i < len(content) && content[i] != '\n' {
				i++
			}
			spans = append(spans, [2]int{start, i})
			continue
		}
		i++
	}
	return spans
}

func hasAnyPrefix(s string, markers []string) bool {
	for _, m := range markers {
		if strings.HasPrefix(s, m) {
			return true
		}
	}
	return false
}

// abapCommentSpans finds * full-line comments (asterisk in column one
// exactly) and " comments running to end of line.
func abapCommentSpans(content string) [][2]int {
	var spans [][2]int
	for i := 0; i < len(content); i++ {
		columnOne := i == 0 || content[i-1] == '\n'
		if (columnOne && content[i] == '*') || content[i] == '"' {
			start := i
			for i < len(content) && content[i] != '\n' {
				i++
			}
			spans = append(spans, [2]int{start, i})
		}
	}
	return spans
}

func blankSpans(content string, spans [][2]int) string {
	if len(spans) == 0 {
		return content
	}
	out := []byte(content)
	for _, span := range spans {
		blank(out, span[0], span[1])
	}
	return string(out)
}

func blank(out []byte, from, to int) {
	for j := from; j < to && j < len(out); j++ {
		if out[j] != '\n' && out[j] != '\r' {
			out[j] = ' '
		}
	}
}

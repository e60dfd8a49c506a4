package textutil

// Source bundles the two projections regex strategies work with. All
// three strings are the same length, so an offset found in one indexes
// the same character in the others.
type Source struct {
	Raw    string // untouched content
	Lit    string // comments blanked, string literals readable
	Masked string // comments blanked and string interiors masked
}

func NewSource(content string, family Family) Source {
	masked := MaskStrings(content, family)
	spans := commentSpans(masked, family)
	return Source{
		Raw:    content,
		Lit:    blankSpans(content, spans),
		Masked: blankSpans(masked, spans),
	}
}

// Line is the 1-based line number at offset.
func (s Source) Line(offset int) int {
	return LineAt(s.Masked, offset)
}

// Group extracts capture group n of a FindStringSubmatchIndex result
// from the literal view, empty when the group did not participate.
func (s Source) Group(idx []int, n int) string {
	start, end := idx[2*n], idx[2*n+1]
	if start < 0 {
		return ""
	}
	return s.Lit[start:end]
}

// MaskedGroup is Group read from the masked view, for captures that
// must not leak string contents.
func (s Source) MaskedGroup(idx []int, n int) string {
	start, end := idx[2*n], idx[2*n+1]
	if start < 0 {
		return ""
	}
	return s.Masked[start:end]
}

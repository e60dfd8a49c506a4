package textutil

// ExtractBlockBody returns the text between the first { at or after
// start and its matching }, along with the body's start and end offsets
// in content. It expects masked content (see MaskStrings) so braces
// inside string literals never unbalance the count. When no opening or
// matching closing brace exists it returns ("", -1, -1).
func ExtractBlockBody(content string, start int) (string, int, int) {
	if start < 0 {
		start = 0
	}
	open := -1
	for i := start; i < len(content); i++ {
		if content[i] == '{' {
			open = i
			break
		}
	}
	if open == -1 {
		return "", -1, -1
	}

	depth := 0
	for i := open; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[open+1 : i], open + 1, i
			}
		}
	}
	return "", -1, -1
}

// LineAt returns the 1-based line number containing the byte offset.
func LineAt(content string, offset int) int {
	if offset > len(content) {
		offset = len(content)
	}
	line := 1
	for i := 0; i < offset; i++ {
		if content[i] == '\n' {
			line++
		}
	}
	return line
}

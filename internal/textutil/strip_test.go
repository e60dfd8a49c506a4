package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskStrings(t *testing.T) {
	t.Run("URL inside a string survives comment stripping", func(t *testing.T) {
		src := `$url = "https://example.com/docs"; # trailing`
		scrubbed := Scrub(src, FamilyPHP)

		assert.NotContains(t, scrubbed, "example.com", "string interior should be blanked")
		assert.NotContains(t, scrubbed, "trailing", "comment should be blanked")
		assert.Equal(t, len(src), len(scrubbed), "length must be preserved")

		// The // in the URL must not have been treated as a comment:
		// the assignment's terminating quote and semicolon survive.
		assert.Contains(t, scrubbed, `";`)
	})

	t.Run("hash inside Python string is not a comment", func(t *testing.T) {
		src := "color = '#ff00ff'  # magenta"
		scrubbed := Scrub(src, FamilyPython)
		assert.NotContains(t, scrubbed, "ff00ff")
		assert.NotContains(t, scrubbed, "magenta")
		assert.Contains(t, scrubbed, "color = '")
	})

	t.Run("escaped quote does not end the literal", func(t *testing.T) {
		src := `s = "he said \"hi\" loudly"; x = 1`
		masked := MaskStrings(src, FamilyCurly)
		assert.Contains(t, masked, "x = 1")
		assert.NotContains(t, masked, "loudly")
	})

	t.Run("triple-quoted string keeps line count", func(t *testing.T) {
		src := "doc = \"\"\"line one\nline two # not a comment\n\"\"\"\nx = 1"
		scrubbed := Scrub(src, FamilyPython)
		assert.Equal(t, strings.Count(src, "\n"), strings.Count(scrubbed, "\n"))
		assert.Contains(t, scrubbed, "x = 1")
		assert.NotContains(t, scrubbed, "line two")
	})

	t.Run("ABAP doubled quote escaping", func(t *testing.T) {
		src := "DATA msg TYPE string VALUE 'it''s here'. \" comment"
		scrubbed := Scrub(src, FamilyABAP)
		assert.NotContains(t, scrubbed, "here")
		assert.NotContains(t, scrubbed, "comment")
		assert.Contains(t, scrubbed, "DATA msg TYPE string VALUE")
	})

	t.Run("unterminated string masks only its own line", func(t *testing.T) {
		src := "name = 'oops\nnext_line = 2"
		masked := MaskStrings(src, FamilyPython)
		assert.Contains(t, masked, "next_line = 2")
	})
}

func TestStripComments(t *testing.T) {
	t.Run("line marker inside block comment", func(t *testing.T) {
		src := "/* see https://x.io // docs */\nint x = 5;"
		scrubbed := Scrub(src, FamilyCurly)
		assert.Contains(t, scrubbed, "int x = 5;")
		assert.NotContains(t, scrubbed, "docs")
	})

	t.Run("block opener inside line comment", func(t *testing.T) {
		src := "// TODO handle /* weird\nvar a = 1;\n/* real */\nvar b = 2;"
		scrubbed := Scrub(src, FamilyCurly)
		assert.Contains(t, scrubbed, "var a = 1;")
		assert.Contains(t, scrubbed, "var b = 2;")
		assert.NotContains(t, scrubbed, "real")
	})

	t.Run("ABAP full-line asterisk comment", func(t *testing.T) {
		src := "* generated section\nDATA x TYPE i.\n  * not column one, kept"
		scrubbed := Scrub(src, FamilyABAP)
		assert.NotContains(t, scrubbed, "generated")
		assert.Contains(t, scrubbed, "DATA x TYPE i.")
		assert.Contains(t, scrubbed, "not column one")
	})

	t.Run("offsets are stable", func(t *testing.T) {
		src := "a = 1 # c\nb = 'x' # d\nc = 3"
		scrubbed := Scrub(src, FamilyPython)
		require.Equal(t, len(src), len(scrubbed))
		assert.Equal(t, strings.Index(src, "b ="), strings.Index(scrubbed, "b ="))
		assert.Equal(t, strings.Index(src, "c = 3"), strings.Index(scrubbed, "c = 3"))
	})
}

func TestRemoveComments(t *testing.T) {
	t.Run("keeps string values while dropping comments", func(t *testing.T) {
		src := "$url = \"https://api.example.com/v1\"; // base\n# note\n$x = 1;"
		out := RemoveComments(src, FamilyPHP)
		assert.Contains(t, out, `"https://api.example.com/v1"`)
		assert.Contains(t, out, "$x = 1;")
		assert.NotContains(t, out, "base")
		assert.NotContains(t, out, "note")
		assert.Equal(t, len(src), len(out))
	})

	t.Run("prisma map value survives", func(t *testing.T) {
		src := "model User {\n  id Int @id // primary\n  @@map(\"app_users\")\n}"
		out := RemoveComments(src, FamilyPrisma)
		assert.Contains(t, out, `@@map("app_users")`)
		assert.NotContains(t, out, "primary")
	})

	t.Run("comment marker inside string does not truncate", func(t *testing.T) {
		src := `r.GET("/api//health", handler) // probe`
		out := RemoveComments(src, FamilyCurly)
		assert.Contains(t, out, `"/api//health"`)
		assert.NotContains(t, out, "probe")
	})
}

func TestExtractBlockBody(t *testing.T) {
	t.Run("nested braces", func(t *testing.T) {
		src := `class A { void m() { if (x) { y(); } } int z; }`
		body, start, end := ExtractBlockBody(src, 0)
		require.NotEqual(t, -1, start)
		assert.Equal(t, `}`, string(src[end]))
		assert.Contains(t, body, "int z;")
		assert.Contains(t, body, "void m()")
	})

	t.Run("no opening brace", func(t *testing.T) {
		body, start, end := ExtractBlockBody("no braces here", 0)
		assert.Empty(t, body)
		assert.Equal(t, -1, start)
		assert.Equal(t, -1, end)
	})

	t.Run("unbalanced braces", func(t *testing.T) {
		_, start, end := ExtractBlockBody("func { if { }", 0)
		assert.Equal(t, -1, start)
		assert.Equal(t, -1, end)
	})

	t.Run("inner block from offset", func(t *testing.T) {
		src := `outer { inner { x } }`
		idx := strings.Index(src, "inner")
		body, _, _ := ExtractBlockBody(src, idx)
		assert.Equal(t, " x ", body)
	})
}

func TestLineAt(t *testing.T) {
	src := "one\ntwo\nthree"
	assert.Equal(t, 1, LineAt(src, 0))
	assert.Equal(t, 2, LineAt(src, 4))
	assert.Equal(t, 3, LineAt(src, len(src)))
}

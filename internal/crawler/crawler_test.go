package crawler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func relPaths(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Rel
	}
	return out
}

func TestFindSourceFiles(t *testing.T) {
	t.Run("returns matching files in sorted order", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "zebra.py", "")
		writeFile(t, root, "app/models.py", "")
		writeFile(t, root, "app/views.py", "")
		writeFile(t, root, "readme.md", "")

		files, err := FindSourceFiles(root, []string{".py"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"app/models.py", "app/views.py", "zebra.py"}, relPaths(files))
	})

	t.Run("prunes vendor and cache directories", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "main.py", "")
		writeFile(t, root, "node_modules/pkg/index.py", "")
		writeFile(t, root, ".venv/lib/site.py", "")
		writeFile(t, root, "__pycache__/main.py", "")
		writeFile(t, root, "src/vendor/dep.py", "")

		files, err := FindSourceFiles(root, []string{".py"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"main.py"}, relPaths(files))
	})

	t.Run("applies extra skip globs to directory names", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "keep/a.py", "")
		writeFile(t, root, "generated_pb/a.py", "")
		writeFile(t, root, "generated_api/b.py", "")

		files, err := FindSourceFiles(root, []string{".py"}, []string{"generated_*"})
		require.NoError(t, err)
		assert.Equal(t, []string{"keep/a.py"}, relPaths(files))
	})

	t.Run("rejects invalid skip pattern", func(t *testing.T) {
		root := t.TempDir()
		_, err := FindSourceFiles(root, []string{".py"}, []string{"[unclosed"})
		assert.Error(t, err)
	})

	t.Run("matches extensions case-insensitively", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "Report.ABAP", "")
		writeFile(t, root, "other.abap", "")

		files, err := FindSourceFiles(root, []string{".abap"}, nil)
		require.NoError(t, err)
		assert.Len(t, files, 2)
	})

	t.Run("identical results on repeated runs", func(t *testing.T) {
		root := t.TempDir()
		for _, rel := range []string{"b/x.ts", "a/y.ts", "c.ts", "a/a.ts"} {
			writeFile(t, root, rel, "")
		}

		first, err := FindSourceFiles(root, []string{".ts"}, nil)
		require.NoError(t, err)
		second, err := FindSourceFiles(root, []string{".ts"}, nil)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, []string{"a/a.ts", "a/y.ts", "b/x.ts", "c.ts"}, relPaths(first))
	})
}

func TestFindFilesKeepsNamedManifests(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module demo\n")
	writeFile(t, root, "Gemfile", "")
	writeFile(t, root, "api/Gemfile", "")
	writeFile(t, root, "node_modules/pkg/go.mod", "")
	writeFile(t, root, "main.go", "")

	files, err := FindFiles(root, nil, func(name string) bool {
		return name == "go.mod" || name == "Gemfile"
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Gemfile", "api/Gemfile", "go.mod"}, relPaths(files))
}

func TestReadFileSafely(t *testing.T) {
	t.Run("reads file under limit", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "small.py", "x = 1\n")

		data, err := ReadFileSafely(filepath.Join(root, "small.py"), 1024)
		require.NoError(t, err)
		assert.Equal(t, "x = 1\n", string(data))
	})

	t.Run("rejects file over limit", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "big.py", "0123456789")

		_, err := ReadFileSafely(filepath.Join(root, "big.py"), 5)
		assert.ErrorContains(t, err, "exceeds limit")
	})

	t.Run("zero limit disables the guard", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "any.py", "0123456789")

		data, err := ReadFileSafely(filepath.Join(root, "any.py"), 0)
		require.NoError(t, err)
		assert.Len(t, data, 10)
	})

	t.Run("missing file returns error", func(t *testing.T) {
		_, err := ReadFileSafely(filepath.Join(t.TempDir(), "absent.py"), 1024)
		assert.Error(t, err)
	})
}

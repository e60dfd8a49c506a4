package codeatlas

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacade(t *testing.T) {
	opts := Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	t.Run("detection and parsing share one entry point", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, "requirements.txt"), []byte("flask==3.0\n"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(root, "app.py"), []byte("class Store:\n    pass\n\n\nclass Cache(Store):\n    pass\n"), 0o644))

		matches, err := Detect(root)
		require.NoError(t, err)
		require.NotEmpty(t, matches)
		assert.Equal(t, "python", matches[0].Language)

		result, err := ParseStructure(context.Background(), root, opts)
		require.NoError(t, err)
		require.Len(t, result.Classes, 2)
		require.Len(t, result.Relationships, 1)
		assert.Equal(t, "inheritance", result.Relationships[0].Type)
	})

	t.Run("the typed error survives the facade", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/svc\n\ngo 1.22\n"), 0o644))

		_, err := ParseStructure(context.Background(), root, opts)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnsupportedProject))
		var typed *UnsupportedProjectError
		require.ErrorAs(t, err, &typed)
		assert.Equal(t, "code_structure", typed.Artifact)
	})
}

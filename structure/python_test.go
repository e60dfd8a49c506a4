package structure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPythonStructure(t *testing.T) {
	t.Run("a decorated class keeps its members and nested class", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "requests\n")
		writeFile(t, root, "svc.py", `import os.path
import numpy as np
from . import helpers
from .models import User as U, Role
from pkg.sub import *


@register
@admin.verify(strict=True)
class Service:
    registry = {}
    _cache: dict = None

    def __init__(self, conn):
        self.conn = conn
        self._open = True

    def _reconnect(self):
        pass

    def __repr__(self):
        return 'svc'

    @staticmethod
    def default():
        return Service(None)

    @classmethod
    def from_env(cls):
        return cls(os.environ)

    class Config:
        debug = False
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		require.Len(t, result.Classes, 2)

		svc := result.Classes[0]
		assert.Equal(t, "svc:Service:10", svc.ID)
		assert.Equal(t, []string{"register", "admin.verify(strict=True)"}, svc.Decorators)
		assert.Equal(t, []Property{
			{Name: "registry", Line: 11},
			{Name: "_cache", Type: "dict", Line: 12},
			{Name: "conn", Line: 15},
			{Name: "_open", Line: 16},
		}, svc.Properties)

		require.Len(t, svc.Methods, 5)
		assert.Equal(t, Method{Name: "__init__", Line: 14, Parameters: []string{"self", "conn"}}, svc.Methods[0])
		assert.Equal(t, Method{Name: "_reconnect", Line: 18, Parameters: []string{"self"}, IsPrivate: true}, svc.Methods[1])
		assert.Equal(t, Method{Name: "__repr__", Line: 21, Parameters: []string{"self"}}, svc.Methods[2])
		assert.Equal(t, Method{Name: "default", Line: 25, Parameters: []string{}, IsStatic: true}, svc.Methods[3])
		assert.Equal(t, Method{Name: "from_env", Line: 29, Parameters: []string{"cls"}, IsStatic: true}, svc.Methods[4])

		nested := result.Classes[1]
		assert.Equal(t, "svc:Config:32", nested.ID)
		assert.Equal(t, []Property{{Name: "debug", Line: 33}}, nested.Properties)
	})

	t.Run("every import form lands with its source and names", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "requests\n")
		writeFile(t, root, "svc.py", `import os.path
import numpy as np
from . import helpers
from .models import User as U, Role
from pkg.sub import *
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		assert.Equal(t, []Import{
			{Module: "svc", Source: "os.path", Names: []string{}, Line: 1},
			{Module: "svc", Source: "numpy", Names: []string{}, Line: 2},
			{Module: "svc", Source: ".", Names: []string{"helpers"}, Line: 3},
			{Module: "svc", Source: ".models", Names: []string{"User", "Role"}, Line: 4},
			{Module: "svc", Source: "pkg.sub", Names: []string{"*"}, Line: 5},
		}, result.Imports)
		assert.Equal(t, 5, result.Statistics.TotalImports)
	})

	t.Run("a metaclass declaration marks the class abstract", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "requests\n")
		writeFile(t, root, "legacy.py", `import abc


class Legacy(metaclass=abc.ABCMeta):
    pass
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		legacy := classNamed(t, result, "Legacy")
		assert.True(t, legacy.IsAbstract)
		assert.Empty(t, legacy.BaseClasses)
	})

	t.Run("classes built inside a factory function are still found", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "requests\n")
		writeFile(t, root, "factory.py", `def make_model(base):
    class Generated(base):
        pass

    return Generated
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		gen := classNamed(t, result, "Generated")
		assert.Equal(t, "factory:Generated:2", gen.ID)
		assert.Equal(t, []string{"base"}, gen.BaseClasses)
	})

	t.Run("module names follow the package layout", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "requests\n")
		writeFile(t, root, "pkg/__init__.py", "")
		writeFile(t, root, "pkg/models/user.py", "class User:\n    pass\n")

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		user := classNamed(t, result, "User")
		assert.Equal(t, "pkg.models.user", user.Module)
		assert.Equal(t, "pkg.models.user:User:1", user.ID)

		modules := make(map[string]string)
		for _, m := range result.Modules {
			modules[m.ID] = m.File
		}
		assert.Equal(t, "pkg/__init__.py", modules["pkg"])
		assert.Equal(t, "pkg/models/user.py", modules["pkg.models.user"])
	})
}

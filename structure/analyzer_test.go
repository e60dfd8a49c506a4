package structure

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeatlas/analysis"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func quietOpts() analysis.Options {
	return analysis.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func classNamed(t *testing.T, result *Result, name string) Class {
	t.Helper()
	for _, cl := range result.Classes {
		if cl.Name == name {
			return cl
		}
	}
	names := make([]string, 0, len(result.Classes))
	for _, cl := range result.Classes {
		names = append(names, cl.Name)
	}
	t.Fatalf("class %q not found, have %v", name, names)
	return Class{}
}

func TestParse(t *testing.T) {
	t.Run("sibling subclasses share their parent", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "requests==2.31.0\n")
		writeFile(t, root, "zoo.py", `class Animal:
    def speak(self):
        pass


class Dog(Animal):
    def speak(self):
        return 'woof'


class Cat(Animal):
    def speak(self):
        return 'meow'
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		assert.Equal(t, "code_structure", result.AnalysisType)
		assert.Equal(t, "1.0", result.Version)
		assert.Equal(t, "python", result.Language)
		assert.Empty(t, result.Framework)
		assert.Empty(t, result.ParseErrors)

		require.Len(t, result.Modules, 1)
		assert.Equal(t, Module{ID: "zoo", Name: "zoo", File: "zoo.py", ClassCount: 3}, result.Modules[0])

		require.Len(t, result.Classes, 3)
		dog := classNamed(t, result, "Dog")
		assert.Equal(t, "zoo:Dog:6", dog.ID)
		assert.Equal(t, []string{"Animal"}, dog.BaseClasses)
		require.Len(t, dog.Methods, 1)
		assert.Equal(t, "speak", dog.Methods[0].Name)
		assert.Equal(t, []string{"self"}, dog.Methods[0].Parameters)

		require.Len(t, result.Relationships, 2)
		assert.Equal(t, Relationship{SourceID: "zoo:Dog:6", TargetID: "zoo:Animal:1", Type: "inheritance"}, result.Relationships[0])
		assert.Equal(t, Relationship{SourceID: "zoo:Cat:11", TargetID: "zoo:Animal:1", Type: "inheritance"}, result.Relationships[1])

		assert.Equal(t, 1, result.Statistics.TotalModules)
		assert.Equal(t, 3, result.Statistics.TotalClasses)
		assert.Equal(t, 0, result.Statistics.TotalImports)
		assert.Equal(t, 2, result.Statistics.TotalRelationships)
		assert.Equal(t, 0, result.Statistics.AbstractClasses)
		assert.Equal(t, 0, result.Statistics.Interfaces)
		assert.Equal(t, 1.0, result.Statistics.AverageMethodsPerClass)
		assert.Equal(t, 1, result.Statistics.MaxInheritanceDepth)
	})

	t.Run("composition follows an annotated property through its wrapper", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "requests\n")
		writeFile(t, root, "cars.py", `from typing import Optional


class Engine:
    def __init__(self, horsepower):
        self.horsepower = horsepower


class Car:
    engine: Optional[Engine] = None

    def __init__(self):
        self.engine = Engine(90)
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		car := classNamed(t, result, "Car")
		assert.Equal(t, []Property{{Name: "engine", Type: "Optional[Engine]", Line: 10}}, car.Properties)

		engine := classNamed(t, result, "Engine")
		assert.Equal(t, []Property{{Name: "horsepower", Line: 6}}, engine.Properties)

		require.Len(t, result.Relationships, 1)
		assert.Equal(t, Relationship{SourceID: "cars:Car:9", TargetID: "cars:Engine:4", Type: "composition"}, result.Relationships[0])

		require.Len(t, result.Imports, 1)
		assert.Equal(t, Import{Module: "cars", Source: "typing", Names: []string{"Optional"}, Line: 1}, result.Imports[0])
		assert.Equal(t, 0, result.Statistics.MaxInheritanceDepth)
	})

	t.Run("abstract bases and protocols are counted apart", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "requests\n")
		writeFile(t, root, "stores.py", `from abc import ABC, abstractmethod
from typing import Protocol


class Store(ABC):
    @abstractmethod
    def save(self, record):
        ...


class Closer(Protocol):
    def close(self):
        ...


class MemoryStore(Store):
    def save(self, record):
        return record
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		store := classNamed(t, result, "Store")
		assert.True(t, store.IsAbstract)
		assert.False(t, store.IsInterface)
		assert.Equal(t, []string{"ABC"}, store.BaseClasses)

		closer := classNamed(t, result, "Closer")
		assert.True(t, closer.IsInterface)
		assert.False(t, closer.IsAbstract)

		require.Len(t, result.Relationships, 1)
		assert.Equal(t, Relationship{SourceID: "stores:MemoryStore:16", TargetID: "stores:Store:5", Type: "inheritance"}, result.Relationships[0])

		assert.Equal(t, 1, result.Statistics.AbstractClasses)
		assert.Equal(t, 1, result.Statistics.Interfaces)
	})

	t.Run("a four level chain is three edges deep", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "requests\n")
		writeFile(t, root, "chain.py", `class A:
    pass


class B(A):
    pass


class C(B):
    pass


class D(C):
    pass
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		assert.Len(t, result.Relationships, 3)
		assert.Equal(t, 3, result.Statistics.MaxInheritanceDepth)
	})

	t.Run("base classes resolve across files", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "requests\n")
		writeFile(t, root, "a.py", "class Base:\n    pass\n")
		writeFile(t, root, "b.py", "class Impl(Base):\n    pass\n")

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		require.Len(t, result.Relationships, 1)
		assert.Equal(t, Relationship{SourceID: "b:Impl:1", TargetID: "a:Base:1", Type: "inheritance"}, result.Relationships[0])
	})

	t.Run("a broken file degrades into parse errors", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "requests\n")
		writeFile(t, root, "bad.py", "class Broken(:\n")
		writeFile(t, root, "good.py", "class Ok:\n    pass\n")

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		require.Len(t, result.ParseErrors, 1)
		assert.Equal(t, "bad.py", result.ParseErrors[0].FilePath)
		require.Len(t, result.Classes, 1)
		assert.Equal(t, "good:Ok:1", result.Classes[0].ID)
	})

	t.Run("unsupported project is a typed error", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "go.mod", "module demo\n\ngo 1.22\n")

		result, err := Parse(context.Background(), root, quietOpts())
		assert.Nil(t, result)

		var unsupported *analysis.UnsupportedProjectError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, "code_structure", unsupported.Artifact)
		assert.ErrorIs(t, err, analysis.ErrUnsupportedProject)
	})

	t.Run("reruns are byte identical", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "requests\n")
		writeFile(t, root, "a.py", `class Base:
    tag: str = 'base'
`)
		writeFile(t, root, "b.py", `import a


class Impl(Base):
    def run(self):
        pass
`)

		first, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		second, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		a, err := json.Marshal(first)
		require.NoError(t, err)
		b, err := json.Marshal(second)
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
	})
}

// TestUnwrapType drives the full property type reduction the
// relationship pass uses.
func TestUnwrapType(t *testing.T) {
	cases := map[string]string{
		"Engine":                "Engine",
		"Optional[Engine]":      "Engine",
		"List[Optional[Wheel]]": "Wheel",
		"Dict[str, Engine]":     "Engine",
		"Wheel[]":               "Wheel",
		"Wheel[][]":             "Wheel",
		"Engine?":               "Engine",
		"Array<Wheel>":          "Wheel",
		"Promise<Array<Wheel>>": "Wheel",
		"Map<string, Engine>":   "Engine",
		"Engine | null":         "Engine",
		"Engine | undefined":    "Engine",
		`Optional["Engine"]`:    "Engine",
		"'Engine'":              "Engine",
		"List[Engine] | None":   "Engine",
		"models.Engine":         "Engine",
		"IReadOnlyList<Wheel>":  "Wheel",
		"Engine | Wheel":        "",
		"Custom<Engine>":        "",
		"":                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, simpleTypeName(unwrapType(in)), "type %q", in)
	}
}

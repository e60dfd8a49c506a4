package schema

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

func tableNamed(t *testing.T, result *Result, name string) Table {
	t.Helper()
	for _, tab := range result.Tables {
		if tab.Name == name {
			return tab
		}
	}
	names := make([]string, 0, len(result.Tables))
	for _, tab := range result.Tables {
		names = append(names, tab.Name)
	}
	t.Fatalf("table %q not found, have %v", name, names)
	return Table{}
}

func findColumn(t *testing.T, tab Table, name string) Column {
	t.Helper()
	for _, c := range tab.Columns {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("column %q not found in table %q, have %v", name, tab.Name, tab.Columns)
	return Column{}
}

func TestParse(t *testing.T) {
	t.Run("sqlalchemy model yields its declared table", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "sqlalchemy==2.0.25\n")
		writeFile(t, root, "models.py", `from sqlalchemy import Column, Integer, String
from sqlalchemy.orm import declarative_base

Base = declarative_base()


class User(Base):
    __tablename__ = "users"

    id = Column(Integer, primary_key=True)
    email = Column(String, unique=True)
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		assert.Equal(t, "database_schema", result.AnalysisType)
		assert.Equal(t, analysis.Version, result.Version)
		assert.Equal(t, "python", result.Language)
		assert.Equal(t, "sqlalchemy", result.Framework)
		require.Len(t, result.Tables, 1)

		users := result.Tables[0]
		assert.Equal(t, "users", users.Name)
		assert.Equal(t, "models.py", users.File)
		assert.Equal(t, 7, users.Line)
		require.Len(t, users.Columns, 2)

		id := findColumn(t, users, "id")
		assert.Equal(t, "Integer", id.Type)
		assert.True(t, id.PrimaryKey)
		assert.False(t, id.Nullable)

		email := findColumn(t, users, "email")
		assert.True(t, email.Unique)
		assert.True(t, email.Nullable)
		assert.False(t, email.PrimaryKey)

		assert.Empty(t, result.Relationships)
		assert.Empty(t, result.ParseErrors)
		assert.Equal(t, Statistics{
			TotalTables:          1,
			TotalColumns:         2,
			TablesWithPrimaryKey: 1,
		}, result.Statistics)
	})

	t.Run("foreign keys become relationships when the target is known", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "sqlalchemy\n")
		writeFile(t, root, "models.py", `from sqlalchemy import Column, ForeignKey, Integer
from database import Base


class Department(Base):
    __tablename__ = "departments"

    id = Column(Integer, primary_key=True)


class Employee(Base):
    __tablename__ = "employees"

    id = Column(Integer, primary_key=True)
    department_id = Column(Integer, ForeignKey("departments.id"))
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		employees := tableNamed(t, result, "employees")
		require.Len(t, employees.ForeignKeys, 1)
		assert.Equal(t, ForeignKey{
			Column:           "department_id",
			ReferencesTable:  "departments",
			ReferencesColumn: "id",
		}, employees.ForeignKeys[0])

		require.Len(t, result.Relationships, 1)
		assert.Equal(t, Relationship{
			FromTable: "employees",
			ToTable:   "departments",
			Type:      ManyToOne,
		}, result.Relationships[0])
	})

	t.Run("unique foreign key column reads as one to one", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "sqlalchemy\n")
		writeFile(t, root, "models.py", `from sqlalchemy import Column, ForeignKey, Integer
from database import Base


class User(Base):
    __tablename__ = "users"

    id = Column(Integer, primary_key=True)


class Profile(Base):
    __tablename__ = "profiles"

    id = Column(Integer, primary_key=True)
    user_id = Column(Integer, ForeignKey("users.id"), unique=True)
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		require.Len(t, result.Relationships, 1)
		assert.Equal(t, Relationship{
			FromTable: "profiles",
			ToTable:   "users",
			Type:      OneToOne,
		}, result.Relationships[0])
	})

	t.Run("foreign key to an unparsed table is omitted", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "sqlalchemy\n")
		writeFile(t, root, "models.py", `from sqlalchemy import Column, ForeignKey, Integer
from database import Base


class Order(Base):
    __tablename__ = "orders"

    id = Column(Integer, primary_key=True)
    customer_id = Column(Integer, ForeignKey("customers.id"))
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		// The column and its declared reference remain on the table;
		// only the graph edge is withheld.
		orders := tableNamed(t, result, "orders")
		require.Len(t, orders.ForeignKeys, 1)
		assert.Equal(t, "customers", orders.ForeignKeys[0].ReferencesTable)
		assert.Empty(t, result.Relationships)
		assert.Equal(t, 0, result.Statistics.TotalRelationships)
	})

	t.Run("parallel edges to one table collapse", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "sqlalchemy\n")
		writeFile(t, root, "models.py", `from sqlalchemy import Column, ForeignKey, Integer
from database import Base


class User(Base):
    __tablename__ = "users"

    id = Column(Integer, primary_key=True)


class Message(Base):
    __tablename__ = "messages"

    id = Column(Integer, primary_key=True)
    sender_id = Column(Integer, ForeignKey("users.id"))
    recipient_id = Column(Integer, ForeignKey("users.id"))
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		messages := tableNamed(t, result, "messages")
		assert.Len(t, messages.ForeignKeys, 2)
		require.Len(t, result.Relationships, 1)
		assert.Equal(t, Relationship{
			FromTable: "messages",
			ToTable:   "users",
			Type:      ManyToOne,
		}, result.Relationships[0])
	})

	t.Run("manifest without models yields an empty result", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "sqlalchemy\n")

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		data, err := json.Marshal(result)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"analysis_type": "database_schema",
			"version": "1.0",
			"language": "python",
			"framework": "sqlalchemy",
			"tables": [],
			"relationships": [],
			"statistics": {
				"total_tables": 0,
				"total_columns": 0,
				"total_relationships": 0,
				"tables_with_primary_key": 0
			},
			"parse_errors": []
		}`, string(data))
	})

	t.Run("unsupported project is an error not a result", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "README.md", "docs only\n")

		result, err := Parse(context.Background(), root, quietOpts())
		assert.Nil(t, result)

		var unsupported *analysis.UnsupportedProjectError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, "database_schema", unsupported.Artifact)
		assert.ErrorIs(t, err, analysis.ErrUnsupportedProject)
	})

	t.Run("syntax errors degrade into parse errors", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "sqlalchemy\n")
		writeFile(t, root, "broken.py", "class (((\n")
		writeFile(t, root, "models.py", `from sqlalchemy import Column, Integer
from database import Base


class Widget(Base):
    __tablename__ = "widgets"

    id = Column(Integer, primary_key=True)
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		require.Len(t, result.Tables, 1)
		assert.Equal(t, "widgets", result.Tables[0].Name)
		require.Len(t, result.ParseErrors, 1)
		assert.Equal(t, "broken.py", result.ParseErrors[0].FilePath)
		assert.Contains(t, result.ParseErrors[0].Message, "syntax")
	})

	t.Run("oversized files are skipped and reported", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "sqlalchemy\n")
		writeFile(t, root, "models.py", `from sqlalchemy import Column, Integer
from database import Base


class User(Base):
    __tablename__ = "users"

    id = Column(Integer, primary_key=True)
`)

		opts := quietOpts()
		opts.MaxFileSizeBytes = 32
		result, err := Parse(context.Background(), root, opts)
		require.NoError(t, err)

		assert.Empty(t, result.Tables)
		require.Len(t, result.ParseErrors, 1)
		assert.Equal(t, "models.py", result.ParseErrors[0].FilePath)
		assert.Contains(t, result.ParseErrors[0].Message, "exceeds limit")
	})

	t.Run("canceled context aborts without a partial result", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "sqlalchemy\n")
		writeFile(t, root, "models.py", "x = 1\n")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := Parse(ctx, root, quietOpts())
		assert.Nil(t, result)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("reruns produce identical results", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "requirements.txt", "sqlalchemy\n")
		writeFile(t, root, "a_models.py", `from sqlalchemy import Column, ForeignKey, Integer
from database import Base


class Team(Base):
    __tablename__ = "teams"

    id = Column(Integer, primary_key=True)
`)
		writeFile(t, root, "b_models.py", `from sqlalchemy import Column, ForeignKey, Integer
from database import Base


class Player(Base):
    __tablename__ = "players"

    id = Column(Integer, primary_key=True)
    team_id = Column(Integer, ForeignKey("teams.id"))
`)
		writeFile(t, root, "broken.py", "def oops(:\n")

		opts := quietOpts()
		opts.Workers = 4
		first, err := Parse(context.Background(), root, opts)
		require.NoError(t, err)
		second, err := Parse(context.Background(), root, opts)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})
}

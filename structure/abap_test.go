package structure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestABAPStructure(t *testing.T) {
	t.Run("definitions parse and implementations are skipped", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "zcl_order.abap", `CLASS zcl_base DEFINITION.
  PUBLIC SECTION.
    METHODS describe.
ENDCLASS.

CLASS zcl_order DEFINITION INHERITING FROM zcl_base ABSTRACT.
  PUBLIC SECTION.
    INTERFACES zif_printable.
    CLASS-METHODS create
      IMPORTING iv_id TYPE i.
    METHODS: get_total
      RETURNING VALUE(rv_total) TYPE p,
      add_line
        IMPORTING iv_sku TYPE string
                  iv_qty TYPE i.
    DATA mv_id TYPE i.
    DATA mo_customer TYPE REF TO zcl_customer.
  PRIVATE SECTION.
    METHODS validate.
    DATA mt_lines TYPE STANDARD TABLE OF ty_line.
ENDCLASS.

CLASS zcl_order IMPLEMENTATION.
  METHOD create.
  ENDMETHOD.
ENDCLASS.

INTERFACE zif_printable.
  METHODS print.
ENDINTERFACE.

CLASS zcl_customer DEFINITION.
  PUBLIC SECTION.
    DATA mv_name TYPE string.
ENDCLASS.
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		assert.Equal(t, "abap", result.Language)
		require.Len(t, result.Classes, 4)

		base := classNamed(t, result, "zcl_base")
		assert.Equal(t, "zcl_order:zcl_base:1", base.ID)
		require.Len(t, base.Methods, 1)
		assert.Equal(t, Method{Name: "describe", Line: 3, Parameters: []string{}}, base.Methods[0])

		order := classNamed(t, result, "zcl_order")
		assert.Equal(t, "zcl_order:zcl_order:6", order.ID)
		assert.True(t, order.IsAbstract)
		assert.Equal(t, []string{"zcl_base", "zif_printable"}, order.BaseClasses)
		assert.Equal(t, []Property{
			{Name: "mv_id", Type: "i", Line: 16},
			{Name: "mo_customer", Type: "zcl_customer", Line: 17},
			{Name: "mt_lines", Type: "ty_line", Line: 20},
		}, order.Properties)
		require.Len(t, order.Methods, 4)
		assert.Equal(t, Method{Name: "create", Line: 9, Parameters: []string{"iv_id"}, IsStatic: true}, order.Methods[0])
		assert.Equal(t, Method{Name: "get_total", Line: 11, Parameters: []string{}}, order.Methods[1])
		assert.Equal(t, Method{Name: "add_line", Line: 13, Parameters: []string{"iv_sku", "iv_qty"}}, order.Methods[2])
		assert.Equal(t, Method{Name: "validate", Line: 19, Parameters: []string{}, IsPrivate: true}, order.Methods[3])

		printable := classNamed(t, result, "zif_printable")
		assert.True(t, printable.IsInterface)
		require.Len(t, printable.Methods, 1)
		assert.Equal(t, Method{Name: "print", Line: 29, Parameters: []string{}}, printable.Methods[0])

		customer := classNamed(t, result, "zcl_customer")
		require.Len(t, result.Relationships, 3)
		assert.Equal(t, Relationship{SourceID: order.ID, TargetID: base.ID, Type: "inheritance"}, result.Relationships[0])
		assert.Equal(t, Relationship{SourceID: order.ID, TargetID: printable.ID, Type: "inheritance"}, result.Relationships[1])
		assert.Equal(t, Relationship{SourceID: order.ID, TargetID: customer.ID, Type: "composition"}, result.Relationships[2])

		assert.Equal(t, Statistics{
			TotalModules:           1,
			TotalClasses:           4,
			TotalRelationships:     3,
			AbstractClasses:        1,
			Interfaces:             1,
			AverageMethodsPerClass: 1.5,
			MaxInheritanceDepth:    1,
		}, result.Statistics)
	})

	t.Run("deferred declarations do not shadow the real one", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "zcl_late.abap", `CLASS zcl_late DEFINITION DEFERRED.
INTERFACE zif_late DEFERRED.

CLASS zcl_late DEFINITION.
  PUBLIC SECTION.
    METHODS run.
ENDCLASS.
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		require.Len(t, result.Classes, 1)
		assert.Equal(t, "zcl_late:zcl_late:4", result.Classes[0].ID)
		require.Len(t, result.Classes[0].Methods, 1)
		assert.Equal(t, "run", result.Classes[0].Methods[0].Name)
	})
}

package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestABAPStrategy(t *testing.T) {
	t.Run("ddl tables carry keys and foreign keys", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "ztables.abap", `define table zcustomer {
  key client      : abap.clnt not null;
  key customer_id : abap.numc(10) not null;
  name            : abap.char(40);
}

define table zbooking {
  key client      : abap.clnt not null;
  key booking_id  : abap.numc(8) not null;
  customer_id     : abap.numc(10)
    with foreign key zcustomer
    where customer_id = zcustomer.customer_id;
  price           : abap.curr(15,2);
  created_at      : abap.dats;
}
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		assert.Equal(t, "abap", result.Language)
		assert.Empty(t, result.Framework)

		customer := tableNamed(t, result, "zcustomer")
		client := findColumn(t, customer, "client")
		assert.True(t, client.PrimaryKey)
		assert.Equal(t, "abap.clnt", client.Type)
		assert.Equal(t, "abap.char(40)", findColumn(t, customer, "name").Type)

		booking := tableNamed(t, result, "zbooking")
		assert.Equal(t, "ztables.abap", booking.File)
		assert.Equal(t, 7, booking.Line)
		assert.True(t, findColumn(t, booking, "booking_id").PrimaryKey)
		assert.Equal(t, "abap.curr(15,2)", findColumn(t, booking, "price").Type)
		// The where clause arrives two lines after its field and still
		// names the right column pair.
		require.Len(t, booking.ForeignKeys, 1)
		assert.Equal(t, ForeignKey{
			Column:           "customer_id",
			ReferencesTable:  "zcustomer",
			ReferencesColumn: "customer_id",
		}, booking.ForeignKeys[0])

		require.Len(t, result.Relationships, 1)
		assert.Equal(t, Relationship{
			FromTable: "zbooking", ToTable: "zcustomer", Type: ManyToOne,
		}, result.Relationships[0])
	})

	t.Run("begin of blocks read as structures", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "zstructs.abap", `TYPES: BEGIN OF ty_address,
         street  TYPE c LENGTH 60,
         city    TYPE c LENGTH 40,
         zipcode TYPE n LENGTH 10,
       END OF ty_address.
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		address := tableNamed(t, result, "ty_address")
		require.Len(t, address.Columns, 3)
		street := findColumn(t, address, "street")
		assert.Equal(t, "c", street.Type)
		assert.True(t, street.Nullable)
		assert.Equal(t, "n", findColumn(t, address, "zipcode").Type)
		assert.Equal(t, 0, result.Statistics.TablesWithPrimaryKey)
	})
}

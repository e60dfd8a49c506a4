package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const laravelComposer = `{
    "require": {
        "php": "^8.2",
        "laravel/framework": "^11.0"
    }
}
`

func TestPHPStrategy(t *testing.T) {
	t.Run("migrations and eloquent models fold into one table", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "composer.json", laravelComposer)
		writeFile(t, root, "database/migrations/2024_01_01_000000_create_shop.php", `<?php

use Illuminate\Database\Migrations\Migration;
use Illuminate\Database\Schema\Blueprint;
use Illuminate\Support\Facades\Schema;

return new class extends Migration
{
    public function up(): void
    {
        Schema::create('customers', function (Blueprint $table) {
            $table->id();
            $table->string('email')->unique();
            $table->string('name');
            $table->timestamps();
        });

        Schema::create('orders', function (Blueprint $table) {
            $table->id();
            $table->foreignId('customer_id')->constrained();
            $table->decimal('total', 10, 2);
            $table->string('status')->index();
            $table->softDeletes();
            $table->timestamps();
        });
    }

    public function down(): void
    {
        Schema::dropIfExists('orders');
        Schema::dropIfExists('customers');
    }
};
`)
		writeFile(t, root, "app/Models/Customer.php", `<?php

namespace App\Models;

use Illuminate\Database\Eloquent\Model;

class Customer extends Model
{
    public function orders()
    {
        return $this->hasMany(Order::class);
    }
}
`)
		writeFile(t, root, "app/Models/Order.php", `<?php

namespace App\Models;

use Illuminate\Database\Eloquent\Model;

class Order extends Model
{
    public function customer()
    {
        return $this->belongsTo(Customer::class);
    }
}
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		assert.Equal(t, "php", result.Language)
		assert.Equal(t, "laravel", result.Framework)
		require.Len(t, result.Tables, 2)

		customers := tableNamed(t, result, "customers")
		assert.True(t, findColumn(t, customers, "id").PrimaryKey)
		email := findColumn(t, customers, "email")
		assert.True(t, email.Unique)
		assert.Equal(t, "string", email.Type)
		findColumn(t, customers, "created_at")
		require.Len(t, customers.Indexes, 1)
		assert.Equal(t, Index{
			Name: "customers_email_unique", Columns: []string{"email"}, Unique: true,
		}, customers.Indexes[0])

		orders := tableNamed(t, result, "orders")
		assert.Equal(t, "decimal", findColumn(t, orders, "total").Type)
		findColumn(t, orders, "deleted_at")
		// The model association and the migration constraint describe
		// the same key, so it is recorded once.
		require.Len(t, orders.ForeignKeys, 1)
		assert.Equal(t, ForeignKey{
			Column:           "customer_id",
			ReferencesTable:  "customers",
			ReferencesColumn: "id",
		}, orders.ForeignKeys[0])
		require.Len(t, orders.Indexes, 1)
		assert.Equal(t, Index{
			Name: "orders_status_index", Columns: []string{"status"},
		}, orders.Indexes[0])

		assert.Equal(t, []Relationship{
			{FromTable: "orders", ToTable: "customers", Type: ManyToOne},
			{FromTable: "customers", ToTable: "orders", Type: OneToMany},
		}, result.Relationships)
	})

	t.Run("morphs and explicit foreign calls", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "composer.json", laravelComposer)
		writeFile(t, root, "database/migrations/2024_02_01_000000_create_attachments.php", `<?php

use Illuminate\Database\Migrations\Migration;
use Illuminate\Database\Schema\Blueprint;
use Illuminate\Support\Facades\Schema;

return new class extends Migration
{
    public function up(): void
    {
        Schema::create('attachments', function (Blueprint $table) {
            $table->id();
            $table->morphs('attachable');
            $table->unsignedBigInteger('owner_id');
            $table->foreign('owner_id')->references('id')->on('users');
        });

        Schema::create('users', function (Blueprint $table) {
            $table->id();
        });
    }
};
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		attachments := tableNamed(t, result, "attachments")
		assert.False(t, findColumn(t, attachments, "attachable_id").Nullable)
		assert.Equal(t, "string", findColumn(t, attachments, "attachable_type").Type)
		require.Len(t, attachments.ForeignKeys, 1)
		assert.Equal(t, ForeignKey{
			Column:           "owner_id",
			ReferencesTable:  "users",
			ReferencesColumn: "id",
		}, attachments.ForeignKeys[0])

		require.Len(t, result.Relationships, 1)
		assert.Equal(t, Relationship{
			FromTable: "attachments", ToTable: "users", Type: ManyToOne,
		}, result.Relationships[0])
	})
}

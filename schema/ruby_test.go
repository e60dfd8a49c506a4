package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const railsGemfile = `source "https://rubygems.org"

gem "rails", "~> 7.1"
gem "pg"
`

func TestRubyStrategy(t *testing.T) {
	t.Run("migrations and models fold into one table", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "Gemfile", railsGemfile)
		writeFile(t, root, "db/migrate/20240101000000_create_users.rb", `class CreateUsers < ActiveRecord::Migration[7.1]
  def change
    create_table :users do |t|
      t.string :email, null: false, index: { unique: true }
      t.string :name
      t.timestamps
    end

    create_table :posts do |t|
      t.string :title, null: false
      t.references :user, null: false, foreign_key: true
      t.index [:user_id, :created_at], name: "index_posts_on_user_and_created"
      t.timestamps
    end

    add_index :users, :name
  end
end
`)
		writeFile(t, root, "app/models/user.rb", `class User < ApplicationRecord
  has_many :posts
  has_many :subscriptions, through: :memberships
end
`)
		writeFile(t, root, "app/models/post.rb", `class Post < ApplicationRecord
  belongs_to :user
  belongs_to :editor, class_name: "User", optional: true
end
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		assert.Equal(t, "ruby", result.Language)
		assert.Equal(t, "rails", result.Framework)
		require.Len(t, result.Tables, 2)

		users := tableNamed(t, result, "users")
		assert.True(t, findColumn(t, users, "id").PrimaryKey)
		email := findColumn(t, users, "email")
		assert.False(t, email.Nullable)
		assert.True(t, email.Unique)
		findColumn(t, users, "created_at")
		findColumn(t, users, "updated_at")
		require.Len(t, users.Indexes, 2)
		assert.Equal(t, Index{
			Name: "index_users_on_email", Columns: []string{"email"}, Unique: true,
		}, users.Indexes[0])
		assert.Equal(t, Index{
			Name: "index_users_on_name", Columns: []string{"name"},
		}, users.Indexes[1])

		posts := tableNamed(t, result, "posts")
		findColumn(t, posts, "title")
		assert.Equal(t, "bigint", findColumn(t, posts, "user_id").Type)
		findColumn(t, posts, "editor_id")
		// Both associations point at users, once through the default
		// column and once through class_name.
		require.Len(t, posts.ForeignKeys, 2)
		assert.Equal(t, ForeignKey{Column: "user_id", ReferencesTable: "users", ReferencesColumn: "id"}, posts.ForeignKeys[0])
		assert.Equal(t, ForeignKey{Column: "editor_id", ReferencesTable: "users", ReferencesColumn: "id"}, posts.ForeignKeys[1])
		require.Len(t, posts.Indexes, 1)
		assert.Equal(t, "index_posts_on_user_and_created", posts.Indexes[0].Name)
		assert.Equal(t, []string{"user_id", "created_at"}, posts.Indexes[0].Columns)

		// Two parallel foreign keys still draw a single edge, and the
		// through association draws none.
		assert.Equal(t, []Relationship{
			{FromTable: "posts", ToTable: "users", Type: ManyToOne},
			{FromTable: "users", ToTable: "posts", Type: OneToMany},
		}, result.Relationships)

		assert.Equal(t, Statistics{
			TotalTables:          2,
			TotalColumns:         11,
			TotalRelationships:   2,
			TablesWithPrimaryKey: 2,
		}, result.Statistics)
	})

	t.Run("polymorphic references get a type column and no foreign key", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "Gemfile", railsGemfile)
		writeFile(t, root, "db/migrate/20240301000000_create_images.rb", `class CreateImages < ActiveRecord::Migration[7.1]
  def change
    create_table :images, id: false do |t|
      t.references :imageable, polymorphic: true, null: false
      t.string :url, null: false
    end
  end
end
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		images := tableNamed(t, result, "images")
		assert.False(t, findColumn(t, images, "imageable_id").Nullable)
		assert.Equal(t, "string", findColumn(t, images, "imageable_type").Type)
		assert.Empty(t, images.ForeignKeys)
		assert.Empty(t, result.Relationships)
		assert.Equal(t, 0, result.Statistics.TablesWithPrimaryKey)
	})
}

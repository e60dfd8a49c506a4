package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeScriptStrategy(t *testing.T) {
	t.Run("typeorm entities with relations", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "package.json", `{"dependencies": {"typeorm": "0.3.17"}}`)
		writeFile(t, root, "src/entities.ts", `import {
  Entity,
  PrimaryGeneratedColumn,
  Column,
  ManyToOne,
  OneToMany,
  JoinColumn,
} from "typeorm";

@Entity("users")
export class User {
  @PrimaryGeneratedColumn()
  id: number;

  @Column({ unique: true })
  email: string;

  @Column("varchar", { nullable: true })
  name: string;

  @OneToMany(() => Post, (post) => post.author)
  posts: Post[];
}

@Entity()
export class Post {
  @PrimaryGeneratedColumn()
  id: number;

  @Column()
  title: string;

  @ManyToOne(() => User, (user) => user.posts)
  @JoinColumn({ name: "author_id" })
  author: User;
}
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		assert.Equal(t, "typescript", result.Language)
		assert.Equal(t, "typeorm", result.Framework)

		users := tableNamed(t, result, "users")
		assert.True(t, findColumn(t, users, "id").PrimaryKey)
		email := findColumn(t, users, "email")
		assert.True(t, email.Unique)
		assert.Equal(t, "string", email.Type)
		name := findColumn(t, users, "name")
		assert.True(t, name.Nullable)
		assert.Equal(t, "varchar", name.Type)

		posts := tableNamed(t, result, "post")
		require.Len(t, posts.ForeignKeys, 1)
		assert.Equal(t, ForeignKey{
			Column:           "author_id",
			ReferencesTable:  "users",
			ReferencesColumn: "id",
		}, posts.ForeignKeys[0])
		assert.Equal(t, "integer", findColumn(t, posts, "author_id").Type)

		assert.Contains(t, result.Relationships, Relationship{
			FromTable: "post", ToTable: "users", Type: ManyToOne,
		})
		assert.Contains(t, result.Relationships, Relationship{
			FromTable: "users", ToTable: "post", Type: OneToMany,
		})
	})

	t.Run("one to one column appears only on the joined side", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "package.json", `{"dependencies": {"typeorm": "0.3.17"}}`)
		writeFile(t, root, "src/profile.ts", `import { Entity, PrimaryGeneratedColumn, OneToOne, JoinColumn } from "typeorm";

@Entity("users")
export class User {
  @PrimaryGeneratedColumn()
  id: number;

  @OneToOne(() => Profile, (profile) => profile.user)
  profile: Profile;
}

@Entity("profiles")
export class Profile {
  @PrimaryGeneratedColumn()
  id: number;

  @OneToOne(() => User)
  @JoinColumn()
  user: User;
}
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		users := tableNamed(t, result, "users")
		assert.Empty(t, users.ForeignKeys)

		profiles := tableNamed(t, result, "profiles")
		require.Len(t, profiles.ForeignKeys, 1)
		assert.Equal(t, "user_id", profiles.ForeignKeys[0].Column)
		assert.True(t, findColumn(t, profiles, "user_id").Unique)

		require.Len(t, result.Relationships, 1)
		assert.Equal(t, Relationship{
			FromTable: "profiles", ToTable: "users", Type: OneToOne,
		}, result.Relationships[0])
	})

	t.Run("sequelize define and init models", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "package.json", `{"dependencies": {"sequelize": "^6.35.0"}}`)
		writeFile(t, root, "models/index.js", `const { Sequelize, DataTypes, Model } = require("sequelize");
const sequelize = new Sequelize(process.env.DATABASE_URL);

const User = sequelize.define("User", {
  id: { type: DataTypes.INTEGER, primaryKey: true, autoIncrement: true },
  email: { type: DataTypes.STRING, allowNull: false, unique: true },
  bio: DataTypes.TEXT,
}, {
  tableName: "app_users",
});

const Order = sequelize.define("Order", {
  id: { type: DataTypes.INTEGER, primaryKey: true },
  total: { type: DataTypes.DECIMAL },
});

class Payment extends Model {}
Payment.init({
  id: { type: DataTypes.INTEGER, primaryKey: true },
  amount: DataTypes.DECIMAL,
}, { sequelize, tableName: "payments" });

Order.belongsTo(User, { foreignKey: "buyer_id" });
User.hasMany(Order);

module.exports = { User, Order, Payment };
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		assert.Equal(t, "sequelize", result.Framework)

		users := tableNamed(t, result, "app_users")
		id := findColumn(t, users, "id")
		assert.Equal(t, "INTEGER", id.Type)
		assert.True(t, id.PrimaryKey)
		email := findColumn(t, users, "email")
		assert.False(t, email.Nullable)
		assert.True(t, email.Unique)
		assert.Equal(t, "TEXT", findColumn(t, users, "bio").Type)

		orders := tableNamed(t, result, "orders")
		require.Len(t, orders.ForeignKeys, 1)
		assert.Equal(t, ForeignKey{
			Column:           "buyer_id",
			ReferencesTable:  "app_users",
			ReferencesColumn: "id",
		}, orders.ForeignKeys[0])

		payments := tableNamed(t, result, "payments")
		assert.True(t, findColumn(t, payments, "id").PrimaryKey)
		assert.Equal(t, "DECIMAL", findColumn(t, payments, "amount").Type)

		assert.Contains(t, result.Relationships, Relationship{
			FromTable: "orders", ToTable: "app_users", Type: ManyToOne,
		})
		assert.Contains(t, result.Relationships, Relationship{
			FromTable: "app_users", ToTable: "orders", Type: OneToMany,
		})
	})

	t.Run("mongoose schemas and references", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "package.json", `{"dependencies": {"mongoose": "^8.0.0"}}`)
		writeFile(t, root, "models/blog.js", `const mongoose = require("mongoose");
const { Schema } = mongoose;

const userSchema = new Schema({
  email: { type: String, required: true, unique: true },
  name: String,
});

const postSchema = new Schema({
  title: { type: String, required: true },
  author: { type: Schema.Types.ObjectId, ref: "User" },
  tags: [{ type: Schema.Types.ObjectId, ref: "Tag" }],
});

module.exports = {
  User: mongoose.model("User", userSchema),
  Post: mongoose.model("Post", postSchema),
};
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		assert.Equal(t, "mongoose", result.Framework)

		users := tableNamed(t, result, "users")
		oid := findColumn(t, users, "_id")
		assert.True(t, oid.PrimaryKey)
		assert.Equal(t, "ObjectId", oid.Type)
		email := findColumn(t, users, "email")
		assert.False(t, email.Nullable)
		assert.True(t, email.Unique)
		assert.Equal(t, "String", findColumn(t, users, "name").Type)

		posts := tableNamed(t, result, "posts")
		require.Len(t, posts.ForeignKeys, 1)
		assert.Equal(t, ForeignKey{
			Column:           "author",
			ReferencesTable:  "users",
			ReferencesColumn: "_id",
		}, posts.ForeignKeys[0])

		// The tags array references a model no file declares, so the
		// edge is dropped while the posts-to-users one survives.
		require.Len(t, result.Relationships, 1)
		assert.Equal(t, Relationship{
			FromTable: "posts", ToTable: "users", Type: ManyToOne,
		}, result.Relationships[0])
	})
}

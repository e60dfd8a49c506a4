package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hibernatePom = `<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <modelVersion>4.0.0</modelVersion>
  <groupId>com.example</groupId>
  <artifactId>library</artifactId>
  <version>1.0.0</version>
  <dependencies>
    <dependency>
      <groupId>org.hibernate.orm</groupId>
      <artifactId>hibernate-core</artifactId>
      <version>6.4.1.Final</version>
    </dependency>
  </dependencies>
</project>
`

func TestJavaStrategy(t *testing.T) {
	t.Run("entity fields map to columns and relations", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "pom.xml", hibernatePom)
		writeFile(t, root, "src/main/java/com/example/library/Models.java", `package com.example.library;

import jakarta.persistence.*;

import java.util.ArrayList;
import java.util.List;

@Entity
@Table(name = "users", indexes = {@Index(name = "ix_users_email", columnList = "email", unique = true)})
public class User {

    @Id
    @GeneratedValue(strategy = GenerationType.IDENTITY)
    private Long id;

    @Column(name = "email", nullable = false, unique = true)
    private String email;

    private String displayName;

    @Transient
    private String sessionToken;

    private static final long serialVersionUID = 1L;

    @OneToMany(mappedBy = "author")
    private List<Post> posts = new ArrayList<>();

    public Long getId() {
        return id;
    }
}

@Entity
class Post {

    @Id
    @GeneratedValue(strategy = GenerationType.IDENTITY)
    private Long id;

    @ManyToOne(fetch = FetchType.LAZY)
    @JoinColumn(name = "author_id")
    private User author;
}
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		assert.Equal(t, "java", result.Language)
		assert.Equal(t, "jpa", result.Framework)

		users := tableNamed(t, result, "users")
		id := findColumn(t, users, "id")
		assert.True(t, id.PrimaryKey)
		assert.Equal(t, "Long", id.Type)
		email := findColumn(t, users, "email")
		assert.False(t, email.Nullable)
		assert.True(t, email.Unique)
		assert.True(t, findColumn(t, users, "display_name").Nullable)
		require.Len(t, users.Indexes, 1)
		assert.Equal(t, Index{
			Name: "ix_users_email", Columns: []string{"email"}, Unique: true,
		}, users.Indexes[0])

		// Transient state, statics and accessors are not storage.
		for _, col := range users.Columns {
			assert.NotContains(t, []string{"session_token", "serial_version_uid", "get_id"}, col.Name)
		}

		posts := tableNamed(t, result, "post")
		require.Len(t, posts.ForeignKeys, 1)
		assert.Equal(t, ForeignKey{
			Column:           "author_id",
			ReferencesTable:  "users",
			ReferencesColumn: "id",
		}, posts.ForeignKeys[0])
		assert.Equal(t, "bigint", findColumn(t, posts, "author_id").Type)

		assert.Contains(t, result.Relationships, Relationship{
			FromTable: "post", ToTable: "users", Type: ManyToOne,
		})
		assert.Contains(t, result.Relationships, Relationship{
			FromTable: "users", ToTable: "post", Type: OneToMany,
		})
	})

	t.Run("one to one join column owns a unique key", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "pom.xml", hibernatePom)
		writeFile(t, root, "src/main/java/com/example/accounts/Accounts.java", `package com.example.accounts;

import jakarta.persistence.*;

@Entity
public class User {

    @Id
    private Long id;

    @OneToOne(mappedBy = "user")
    private Profile profile;
}

@Entity
class Profile {

    @Id
    private Long id;

    @OneToOne
    @JoinColumn(name = "user_id")
    private User user;
}
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)

		user := tableNamed(t, result, "user")
		assert.Empty(t, user.ForeignKeys)

		profile := tableNamed(t, result, "profile")
		require.Len(t, profile.ForeignKeys, 1)
		assert.Equal(t, "user_id", profile.ForeignKeys[0].Column)
		assert.True(t, findColumn(t, profile, "user_id").Unique)

		require.Len(t, result.Relationships, 1)
		assert.Equal(t, Relationship{
			FromTable: "profile", ToTable: "user", Type: OneToOne,
		}, result.Relationships[0])
	})
}

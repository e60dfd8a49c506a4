package routes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const springPom = `<project><dependencies>
<dependency><groupId>org.springframework.boot</groupId><artifactId>spring-boot-starter-web</artifactId></dependency>
</dependencies></project>`

func TestJavaStrategy(t *testing.T) {
	t.Run("controller mapping composes with method mappings", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "pom.xml", springPom)
		writeFile(t, root, "app/UserController.java", `package app;

@RestController
@RequestMapping("/api/users")
public class UserController {

    @GetMapping("/{id}")
    public User find(@PathVariable Long id) {
        return null;
    }

    @PreAuthorize("hasRole('ADMIN')")
    @RequestMapping(value = "/purge", method = RequestMethod.DELETE)
    public void purge() {
    }
}
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		assert.Equal(t, "java", result.Language)
		assert.Equal(t, "spring", result.Framework)

		bp := blueprintNamed(t, result, "UserController")
		assert.Equal(t, "app.UserController:UserController:5", bp.ID)
		assert.Equal(t, "/api/users", bp.URLPrefix)

		find := routeByHandler(t, result, "find")
		assert.Equal(t, "app.UserController:find:8", find.ID)
		assert.Equal(t, bp.ID, find.BlueprintID)
		assert.Equal(t, "/{id}", find.URLPattern)
		assert.Equal(t, "/api/users/{id}", find.FullURL)
		assert.Equal(t, []string{"GET"}, find.Methods)
		assert.Equal(t, []PathParam{{Name: "id", Type: "string"}}, find.PathParams)
		assert.False(t, find.Security.RequiresAuth)

		purge := routeByHandler(t, result, "purge")
		assert.Equal(t, "app.UserController:purge:14", purge.ID)
		assert.Equal(t, "/api/users/purge", purge.FullURL)
		assert.Equal(t, []string{"DELETE"}, purge.Methods)
		assert.True(t, purge.Security.RequiresAuth)
		assert.Equal(t, []string{`PreAuthorize("hasRole('ADMIN')")`}, purge.Security.AuthDecorators)

		assert.Equal(t, map[string]int{"DELETE": 1, "GET": 1}, result.Statistics.RoutesByMethod)
		assert.Equal(t, 1, result.Statistics.ProtectedRoutes)
	})

	t.Run("a plain service class declares nothing", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "pom.xml", springPom)
		writeFile(t, root, "app/UserService.java", `package app;

@Service
public class UserService {
    public User load(Long id) {
        return null;
    }
}
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		assert.Empty(t, result.Blueprints)
		assert.Empty(t, result.Routes)
		assert.Equal(t, 0, result.Statistics.TotalRoutes)
	})
}

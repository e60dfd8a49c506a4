package routes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSharpStrategy(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.csproj", `<Project Sdk="Microsoft.NET.Sdk.Web"></Project>`)
	writeFile(t, root, "Controllers/UsersController.cs", `using Microsoft.AspNetCore.Mvc;

namespace Demo.Controllers
{
    [ApiController]
    [Route("api/[controller]")]
    [Authorize]
    public class UsersController : ControllerBase
    {
        [HttpGet("{id:int}")]
        public IActionResult Find(int id)
        {
            return Ok(id);
        }

        [HttpGet]
        [AllowAnonymous]
        public IActionResult List()
        {
            return Ok();
        }
    }
}
`)

	result, err := Parse(context.Background(), root, quietOpts())
	require.NoError(t, err)
	assert.Equal(t, "csharp", result.Language)
	assert.Equal(t, "aspnet", result.Framework)

	bp := blueprintNamed(t, result, "UsersController")
	assert.Equal(t, "Controllers.UsersController:UsersController:8", bp.ID)
	assert.Equal(t, "/api/users", bp.URLPrefix)

	find := routeByHandler(t, result, "Find")
	assert.Equal(t, "Controllers.UsersController:Find:11", find.ID)
	assert.Equal(t, bp.ID, find.BlueprintID)
	assert.Equal(t, "/{id:int}", find.URLPattern)
	assert.Equal(t, "/api/users/{id:int}", find.FullURL)
	assert.Equal(t, []string{"GET"}, find.Methods)
	assert.Equal(t, []PathParam{{Name: "id", Type: "int"}}, find.PathParams)
	assert.True(t, find.Security.RequiresAuth)
	assert.Equal(t, []string{"Authorize"}, find.Security.AuthDecorators)

	list := routeByHandler(t, result, "List")
	assert.Equal(t, "Controllers.UsersController:List:18", list.ID)
	assert.Equal(t, "", list.URLPattern)
	assert.Equal(t, "/api/users", list.FullURL)
	assert.False(t, list.Security.RequiresAuth)
	assert.Empty(t, list.Security.AuthDecorators)

	assert.Equal(t, 2, result.Statistics.TotalRoutes)
	assert.Equal(t, 1, result.Statistics.ProtectedRoutes)
	assert.Equal(t, 1, result.Statistics.UnprotectedRoutes)
}

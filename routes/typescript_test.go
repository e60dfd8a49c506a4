package routes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeScriptStrategy(t *testing.T) {
	t.Run("express router picks up its mount prefix", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "package.json", `{"dependencies": {"express": "^4.18.0"}}`)
		writeFile(t, root, "src/routes.js", `const express = require('express');
const router = express.Router();

router.get('/:id', requireAuth, getUser);
router.post('/', createUser);

app.use('/users', router);
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		assert.Equal(t, "typescript", result.Language)
		assert.Equal(t, "express", result.Framework)

		bp := blueprintNamed(t, result, "router")
		assert.Equal(t, "src.routes:router:2", bp.ID)
		assert.Equal(t, "/users", bp.URLPrefix)

		get := routeByHandler(t, result, "getUser")
		assert.Equal(t, "src.routes:getUser:4", get.ID)
		assert.Equal(t, bp.ID, get.BlueprintID)
		assert.Equal(t, "/:id", get.URLPattern)
		assert.Equal(t, "/users/:id", get.FullURL)
		assert.Equal(t, []string{"GET"}, get.Methods)
		assert.Equal(t, []PathParam{{Name: "id", Type: "string"}}, get.PathParams)
		assert.True(t, get.Security.RequiresAuth)
		assert.Equal(t, []string{"requireAuth"}, get.Security.AuthDecorators)

		post := routeByHandler(t, result, "createUser")
		assert.Equal(t, "/users/", post.FullURL)
		assert.False(t, post.Security.RequiresAuth)

		assert.Equal(t, 1, result.Statistics.ProtectedRoutes)
		assert.Equal(t, 1, result.Statistics.UnprotectedRoutes)
	})

	t.Run("nest controller guards cover its routes", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "package.json", `{"dependencies": {"@nestjs/common": "^10.0.0"}}`)
		writeFile(t, root, "src/users.controller.ts", `import { Controller, Get, Post, UseGuards } from '@nestjs/common';

@Controller('users')
@UseGuards(JwtGuard)
export class UsersController {
  @Get(':id')
  findOne(id: string) {
    return id;
  }

  @Post()
  @UseGuards(RolesGuard)
  create(dto: object) {
    return dto;
  }
}
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		assert.Equal(t, "nestjs", result.Framework)

		bp := blueprintNamed(t, result, "UsersController")
		assert.Equal(t, "src.users.controller:UsersController:5", bp.ID)
		assert.Equal(t, "/users", bp.URLPrefix)

		find := routeByHandler(t, result, "findOne")
		assert.Equal(t, "src.users.controller:findOne:6", find.ID)
		assert.Equal(t, "/:id", find.URLPattern)
		assert.Equal(t, "/users/:id", find.FullURL)
		assert.Equal(t, []string{"GET"}, find.Methods)
		assert.True(t, find.Security.RequiresAuth)
		assert.Equal(t, []string{"UseGuards(JwtGuard)"}, find.Security.AuthDecorators)

		create := routeByHandler(t, result, "create")
		assert.Equal(t, "src.users.controller:create:11", create.ID)
		assert.Equal(t, "", create.URLPattern)
		assert.Equal(t, "/users", create.FullURL)
		assert.Equal(t, []string{"POST"}, create.Methods)
		assert.Equal(t, []string{"UseGuards(RolesGuard)", "UseGuards(JwtGuard)"}, create.Security.AuthDecorators)
	})

	t.Run("calls that only look like registrations are ignored", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "package.json", `{"dependencies": {"express": "^4.18.0"}}`)
		writeFile(t, root, "src/cache.js", `cache.get('users');
this.get('/x', handler);
client.get('https://example.com', onDone);
app.get('/real', handler);
`)

		result, err := Parse(context.Background(), root, quietOpts())
		require.NoError(t, err)
		require.Len(t, result.Routes, 1)
		assert.Equal(t, "/real", result.Routes[0].URLPattern)
		assert.Equal(t, "handler", result.Routes[0].HandlerName)
	})
}

package routes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPHPStrategy(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "composer.json", `{"require": {"laravel/framework": "^10.0"}}`)
	writeFile(t, root, "routes/web.php", `<?php

use App\Http\Controllers\UserController;

Route::get('/', function () {
    return view('welcome');
});

Route::prefix('admin')->middleware('auth')->group(function () {
    Route::get('/users/{id}', [UserController::class, 'show']);
    Route::post('/users', 'UserController@store')->middleware('throttle');
});

Route::match(['get', 'post'], '/contact', [UserController::class, 'contact']);
`)

	result, err := Parse(context.Background(), root, quietOpts())
	require.NoError(t, err)
	assert.Equal(t, "php", result.Language)
	assert.Equal(t, "laravel", result.Framework)

	bp := blueprintNamed(t, result, "admin")
	assert.Equal(t, "routes.web:admin:9", bp.ID)
	assert.Equal(t, "/admin", bp.URLPrefix)

	welcome := routeByHandler(t, result, "closure")
	assert.Equal(t, "routes.web:closure:5", welcome.ID)
	assert.Equal(t, "/", welcome.FullURL)
	assert.Empty(t, welcome.BlueprintID)
	assert.False(t, welcome.Security.RequiresAuth)

	show := routeByHandler(t, result, "UserController@show")
	assert.Equal(t, bp.ID, show.BlueprintID)
	assert.Equal(t, "/users/{id}", show.URLPattern)
	assert.Equal(t, "/admin/users/{id}", show.FullURL)
	assert.Equal(t, []PathParam{{Name: "id", Type: "string"}}, show.PathParams)
	assert.True(t, show.Security.RequiresAuth)
	assert.Equal(t, []string{"auth"}, show.Security.AuthDecorators)

	store := routeByHandler(t, result, "UserController@store")
	assert.Equal(t, []string{"POST"}, store.Methods)
	assert.Equal(t, "/admin/users", store.FullURL)
	assert.True(t, store.Security.RequiresAuth)

	contact := routeByHandler(t, result, "UserController@contact")
	assert.Equal(t, []string{"GET", "POST"}, contact.Methods)
	assert.Equal(t, "/contact", contact.FullURL)
	assert.Empty(t, contact.BlueprintID)

	assert.Equal(t, 4, result.Statistics.TotalRoutes)
	assert.Equal(t, map[string]int{"GET": 3, "POST": 2}, result.Statistics.RoutesByMethod)
	assert.Equal(t, 2, result.Statistics.ProtectedRoutes)
	assert.Equal(t, 2, result.Statistics.UnprotectedRoutes)
}

package routes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRubyStrategy(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Gemfile", "source 'https://rubygems.org'\ngem 'rails'\n")
	writeFile(t, root, "config/routes.rb", `Rails.application.routes.draw do
  root to: 'home#index'
  get '/health', to: 'health#show'

  namespace :admin do
    resources :posts, only: [:index, :show]
  end

  scope '/api' do
    get '/ping', to: 'status#ping'
  end
end
`)
	writeFile(t, root, "app/models/user.rb", "class User < ApplicationRecord\nend\n")

	result, err := Parse(context.Background(), root, quietOpts())
	require.NoError(t, err)
	assert.Equal(t, "ruby", result.Language)
	assert.Equal(t, "rails", result.Framework)

	bp := blueprintNamed(t, result, "admin")
	assert.Equal(t, "config.routes:admin:5", bp.ID)
	assert.Equal(t, "/admin", bp.URLPrefix)

	home := routeByHandler(t, result, "home#index")
	assert.Equal(t, "/", home.URLPattern)
	assert.Equal(t, "/", home.FullURL)
	assert.Equal(t, []string{"GET"}, home.Methods)

	health := routeByHandler(t, result, "health#show")
	assert.Equal(t, "/health", health.FullURL)
	assert.Empty(t, health.BlueprintID)

	index := routeByHandler(t, result, "posts#index")
	assert.Equal(t, bp.ID, index.BlueprintID)
	assert.Equal(t, "/posts", index.URLPattern)
	assert.Equal(t, "/admin/posts", index.FullURL)

	show := routeByHandler(t, result, "posts#show")
	assert.Equal(t, "/admin/posts/:id", show.FullURL)
	assert.Equal(t, []PathParam{{Name: "id", Type: "string"}}, show.PathParams)

	ping := routeByHandler(t, result, "status#ping")
	assert.Equal(t, "/api/ping", ping.URLPattern)
	assert.Empty(t, ping.BlueprintID)

	assert.Equal(t, 5, result.Statistics.TotalRoutes)
	assert.Equal(t, 1, result.Statistics.TotalBlueprints)
	assert.Equal(t, map[string]int{"GET": 5}, result.Statistics.RoutesByMethod)
}

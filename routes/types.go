// Package routes extracts the HTTP surface of a project: route groups,
// the routes registered on them, path parameters, and the auth markers
// protecting each handler.
package routes

import "codeatlas/analysis"

// Result is the api_routes artifact for one project parse.
type Result struct {
	AnalysisType string                `json:"analysis_type"`
	Version      string                `json:"version"`
	Language     string                `json:"language"`
	Framework    string                `json:"framework,omitempty"`
	Blueprints   []Blueprint           `json:"blueprints"`
	Routes       []Route               `json:"routes"`
	Statistics   Statistics            `json:"statistics"`
	ParseErrors  []analysis.ParseError `json:"parse_errors"`
}

// Blueprint is one named route group carrying a shared URL prefix: a
// Flask blueprint, a router class, a Rails namespace, a Gin group.
type Blueprint struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URLPrefix string `json:"url_prefix"`
	File      string `json:"file"`
	Line      int    `json:"line"`
}

// Route is one registered handler. BlueprintID is empty for routes
// declared outside any group, and FullURL is then the pattern itself.
type Route struct {
	ID          string      `json:"id"`
	BlueprintID string      `json:"blueprint_id,omitempty"`
	URLPattern  string      `json:"url_pattern"`
	FullURL     string      `json:"full_url"`
	Methods     []string    `json:"methods"`
	HandlerName string      `json:"handler_name"`
	File        string      `json:"file"`
	Line        int         `json:"line"`
	PathParams  []PathParam `json:"path_params"`
	Security    Security    `json:"security"`
}

// PathParam is one placeholder in a URL pattern. Type is "string"
// unless the pattern carries an explicit converter or constraint.
type PathParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Security summarizes the auth markers seen on a handler or inherited
// from its group.
type Security struct {
	RequiresAuth   bool     `json:"requires_auth"`
	AuthDecorators []string `json:"auth_decorators"`
}

type Statistics struct {
	TotalRoutes       int            `json:"total_routes"`
	TotalBlueprints   int            `json:"total_blueprints"`
	RoutesByMethod    map[string]int `json:"routes_by_method"`
	ProtectedRoutes   int            `json:"protected_routes"`
	UnprotectedRoutes int            `json:"unprotected_routes"`
}

// Package codeatlas bundles the artifact parsers behind one import
// path: language and framework detection plus the four structural
// analyzers, all sharing the same options and per-file error shape.
package codeatlas

import (
	"context"

	"codeatlas/analysis"
	"codeatlas/detect"
	"codeatlas/flow"
	"codeatlas/routes"
	"codeatlas/schema"
	"codeatlas/structure"
)

// Options configures a parse call, shared by every artifact.
type Options = analysis.Options

// ParseError is one non-fatal per-file extraction failure.
type ParseError = analysis.ParseError

// UnsupportedProjectError reports a root that holds nothing the
// requested artifact can work with.
type UnsupportedProjectError = analysis.UnsupportedProjectError

// Match is one detected (language, framework) pair.
type Match = detect.Match

// ErrUnsupportedProject matches any UnsupportedProjectError with
// errors.Is.
var ErrUnsupportedProject = analysis.ErrUnsupportedProject

// Detect lists the languages and frameworks present under root.
func Detect(root string) ([]Match, error) {
	return detect.Detect(root)
}

// ParseSchema extracts the database schema artifact.
func ParseSchema(ctx context.Context, root string, opts Options) (*schema.Result, error) {
	return schema.Parse(ctx, root, opts)
}

// ParseFlow extracts the runtime call-flow artifact.
func ParseFlow(ctx context.Context, root string, opts Options) (*flow.Result, error) {
	return flow.Parse(ctx, root, opts)
}

// ParseRoutes extracts the API route artifact.
func ParseRoutes(ctx context.Context, root string, opts Options) (*routes.Result, error) {
	return routes.Parse(ctx, root, opts)
}

// ParseStructure extracts the code structure artifact.
func ParseStructure(ctx context.Context, root string, opts Options) (*structure.Result, error) {
	return structure.Parse(ctx, root, opts)
}

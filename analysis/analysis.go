// Package analysis holds the contract shared by every artifact parser:
// engine options, the per-file error record, and the bounded parallel
// runner that drives file-level extraction.
package analysis

import (
	"context"
	"log/slog"
	"path"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"codeatlas/internal/crawler"
)

// Version is stamped into every result as parser_version so stored
// artifacts can be invalidated when extraction semantics change.
const Version = "1.0"

// ModuleName derives the dotted module identity entity IDs hang off
// from a relative path: "app/services/billing.py" becomes
// "app.services.billing". A Python package __init__ file takes the
// package's own name.
func ModuleName(rel string) string {
	rel = strings.TrimSuffix(rel, path.Ext(rel))
	rel = strings.TrimSuffix(rel, "/__init__")
	if rel == "__init__" {
		rel = ""
	}
	return strings.ReplaceAll(rel, "/", ".")
}

// DefaultMaxFileSize is the per-file size ceiling when Options leaves
// MaxFileSizeBytes at zero. Oversized files are skipped and reported,
// not parsed.
const DefaultMaxFileSize int64 = 2 << 20

// Options configures a single parse call. The zero value is usable.
type Options struct {
	// MaxFileSizeBytes skips source files larger than this. 0 means
	// DefaultMaxFileSize. Database files are opened by the SQLite
	// driver and are not subject to this limit.
	MaxFileSizeBytes int64

	// SkipDirs holds extra directory-name glob patterns pruned during
	// traversal, in addition to the built-in vendor/VCS set.
	SkipDirs []string

	// Timeout bounds the whole parse. 0 means no limit.
	Timeout time.Duration

	// Workers bounds parallel per-file extraction. 0 means NumCPU.
	Workers int

	// Logger receives per-file failure and summary records. nil means
	// slog.Default().
	Logger *slog.Logger
}

// MaxFileSize returns the effective per-file size limit.
func (o Options) MaxFileSize() int64 {
	if o.MaxFileSizeBytes > 0 {
		return o.MaxFileSizeBytes
	}
	return DefaultMaxFileSize
}

// WorkerCount returns the effective extraction parallelism.
func (o Options) WorkerCount() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

// Log returns the effective logger.
func (o Options) Log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Context applies the configured timeout to ctx. The returned cancel
// func must always be called.
func (o Options) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout > 0 {
		return context.WithTimeout(ctx, o.Timeout)
	}
	return context.WithCancel(ctx)
}

// RunFiles extracts every file through fn on a bounded worker pool and
// returns the per-file outputs in the same order as files, so callers
// that merge sequentially see deterministic entity ordering no matter
// how goroutines were scheduled. A failed file contributes its zero
// output plus a ParseError; only context cancellation fails the whole
// run. RunFiles returns after every worker has finished, which is the
// barrier the single-threaded second pass relies on.
func RunFiles[T any](ctx context.Context, files []crawler.File, workers int, fn func(ctx context.Context, f crawler.File) (T, error)) ([]T, []ParseError, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]T, len(files))
	failures := make([]*ParseError, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := fn(ctx, f)
			if err != nil {
				failures[i] = &ParseError{FilePath: f.Rel, Message: err.Error()}
				return nil
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	errs := make([]ParseError, 0)
	for _, pe := range failures {
		if pe != nil {
			errs = append(errs, *pe)
		}
	}
	return results, errs, nil
}

// Package crawler discovers source files under a project root. The walk
// prunes dependency and build directories while traversing (never
// after), skips symlinks, and returns paths in sorted order so repeated
// runs over an unchanged tree yield identical file sequences.
package crawler

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// skipDirs are pruned at every level of the walk. Dependency trees can
// be arbitrarily large and routinely contain fixture databases and
// sample code that would poison detection.
var skipDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true,
	"node_modules": true, "vendor": true, "bower_components": true,
	".venv": true, "venv": true, "__pycache__": true, ".tox": true,
	"dist": true, "build": true, "target": true, "out": true,
	"bin": true, "obj": true, ".next": true, ".nuxt": true,
	".cache": true, "coverage": true, ".terraform": true,
	".idea": true, ".vscode": true,
}

// File is one discovered source file.
type File struct {
	Path string // filesystem path, root-joined
	Rel  string // forward-slash path relative to the root
}

// FindSourceFiles walks root and returns every file whose extension is
// in exts (lowercase, with leading dot), in lexicographic order of
// relative path. extraSkip holds additional directory-name glob
// patterns supplied by the caller; an invalid pattern fails the walk.
func FindSourceFiles(root string, exts []string, extraSkip []string) ([]File, error) {
	wanted := make(map[string]bool, len(exts))
	for _, e := range exts {
		wanted[strings.ToLower(e)] = true
	}
	return FindFiles(root, extraSkip, func(name string) bool {
		return wanted[strings.ToLower(filepath.Ext(name))]
	})
}

// FindFiles walks root with the same pruning and ordering guarantees as
// FindSourceFiles, keeping every file whose base name satisfies keep.
// Detection probes use it to collect manifests that carry no extension.
func FindFiles(root string, extraSkip []string, keep func(name string) bool) ([]File, error) {
	matchers, err := compileSkips(extraSkip)
	if err != nil {
		return nil, err
	}

	var files []File
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal: the per-file
			// error policy lives with the parsers, not the walk.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && shouldSkipDir(d.Name(), matchers) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !keep(d.Name()) {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		files = append(files, File{Path: path, Rel: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, nil
}

func compileSkips(patterns []string) ([]glob.Glob, error) {
	var matchers []glob.Glob
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("skip pattern %q: %w", p, err)
		}
		matchers = append(matchers, g)
	}
	return matchers, nil
}

func shouldSkipDir(name string, matchers []glob.Glob) bool {
	if skipDirs[name] {
		return true
	}
	for _, m := range matchers {
		if m.Match(name) {
			return true
		}
	}
	return false
}

// ReadFileSafely reads a file with an explicit size guard. Failures are
// returned, never swallowed; the caller decides whether to skip and
// report or abort.
func ReadFileSafely(path string, maxSize int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("read %s: file size %d exceeds limit %d", path, info.Size(), maxSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

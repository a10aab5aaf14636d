// Package includefs implements a filesystem-backed pp.Opener: quote-vs-angle
// search order, an include-cycle stack, #pragma once bookkeeping, and
// doublestar glob search roots so a caller can point at e.g.
// "vendor/**/include" instead of enumerating every vendored directory by
// hand.
package includefs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/cepa-project/cepa/pp"
)

// Resolver resolves #include directives against the filesystem.
type Resolver struct {
	UserPaths   []string
	SystemPaths []string

	// GlobRoots are doublestar patterns searched (in order, after
	// UserPaths/SystemPaths) for a matching header whose base name equals
	// the requested filename.
	GlobRoots []string

	includeStack []string
	includedOnce map[string]bool
}

// New returns an empty Resolver.
func New() *Resolver {
	return &Resolver{includedOnce: make(map[string]bool)}
}

// AddUserPath registers a quote-include ("-I style") search directory.
func (r *Resolver) AddUserPath(path string) { r.UserPaths = append(r.UserPaths, path) }

// AddSystemPath registers a system ("-isystem style") search directory.
func (r *Resolver) AddSystemPath(path string) { r.SystemPaths = append(r.SystemPaths, path) }

// AddGlobRoot registers a doublestar pattern searched for matching headers.
func (r *Resolver) AddGlobRoot(pattern string) error {
	if err := doublestar.ValidatePattern(pattern); err != nil {
		return fmt.Errorf("invalid glob root %q: %w", pattern, err)
	}
	r.GlobRoots = append(r.GlobRoots, pattern)
	return nil
}

// Open implements pp.Opener. kind selects quote-vs-angle search order: a
// quoted include additionally searches the including file's own directory
// first.
func (r *Resolver) Open(kind pp.OpenKind, filename, fromFile string) (data string, resolved string, ok bool) {
	path, found := r.resolve(filename, kind, fromFile)
	if !found {
		return "", "", false
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	if r.includedOnce[absPath] {
		// #pragma once: the file is already fully processed. A frame still
		// needs pushing/popping symmetrically, so hand back an empty body
		// rather than failing the #include.
		return "", path, true
	}

	for _, f := range r.includeStack {
		if f == absPath {
			return "", "", false
		}
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return "", "", false
	}

	r.includeStack = append(r.includeStack, absPath)
	return string(contents), path, true
}

// Close is the paired close-callback an Opener's caller should invoke when
// the corresponding frame is popped, unwinding the cycle-detection stack.
func (r *Resolver) Close(resolvedPath string) {
	if len(r.includeStack) == 0 {
		return
	}
	last := r.includeStack[len(r.includeStack)-1]
	abs, err := filepath.Abs(resolvedPath)
	if err != nil {
		abs = resolvedPath
	}
	if last == abs {
		r.includeStack = r.includeStack[:len(r.includeStack)-1]
	}
}

// MarkPragmaOnce implements pp.PragmaOnceMarker.
func (r *Resolver) MarkPragmaOnce(path string) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	r.includedOnce[absPath] = true
}

func (r *Resolver) resolve(filename string, kind pp.OpenKind, fromFile string) (string, bool) {
	var searchPaths []string
	if kind == pp.OpenLocal && fromFile != "" {
		searchPaths = append(searchPaths, filepath.Dir(fromFile))
	}
	searchPaths = append(searchPaths, r.UserPaths...)
	searchPaths = append(searchPaths, r.SystemPaths...)

	for _, dir := range searchPaths {
		full := filepath.Join(dir, filename)
		if st, err := os.Stat(full); err == nil && !st.IsDir() {
			return full, true
		}
	}

	base := filepath.Base(filename)
	for _, pattern := range r.GlobRoots {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			continue
		}
		for _, m := range matches {
			if filepath.Base(m) == base {
				if st, err := os.Stat(m); err == nil && !st.IsDir() {
					return m, true
				}
			}
		}
	}

	return "", false
}

// IncludeDepth returns the current include nesting depth, usable by a
// caller enforcing a recursion limit beyond the cycle check Open already
// performs.
func (r *Resolver) IncludeDepth() int {
	return len(r.includeStack)
}

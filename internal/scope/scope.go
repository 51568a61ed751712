// Package scope implements path confinement against whitelisted directory roots.
package scope

import (
	"path/filepath"
	"strings"
)

// Scope is an immutable set of canonicalized absolute directory roots.
// The zero value and a Scope built from no paths are both unrestricted.
type Scope struct {
	roots []string
}

// New builds a Scope from the given directory paths. Each path is resolved
// to its canonical absolute form exactly once, here.
func New(paths []string) (Scope, error) {
	roots := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		resolved, err := Canonicalize(p)
		if err != nil {
			return Scope{}, err
		}
		roots = append(roots, resolved)
	}
	return Scope{roots: roots}, nil
}

// Empty reports whether the scope has no roots, meaning unrestricted access.
func (s Scope) Empty() bool {
	return len(s.roots) == 0
}

// Roots returns a copy of the canonical roots, for diagnostics.
func (s Scope) Roots() []string {
	out := make([]string, len(s.roots))
	copy(out, s.roots)
	return out
}

// Allows reports whether target falls inside the scope: true when the scope
// is empty, when target equals a root, or when target is a strict descendant
// of a root. The target is canonicalized at evaluation time; a target that
// cannot be resolved at all is rejected for non-empty scopes.
func (s Scope) Allows(target string) bool {
	if s.Empty() {
		return true
	}

	resolved, err := Canonicalize(target)
	if err != nil {
		return false
	}

	for _, root := range s.roots {
		if resolved == root {
			return true
		}
		// The filesystem root already ends in the separator.
		prefix := root
		if !strings.HasSuffix(prefix, string(filepath.Separator)) {
			prefix += string(filepath.Separator)
		}
		if strings.HasPrefix(resolved, prefix) {
			return true
		}
	}
	return false
}

// Canonicalize resolves a path to absolute, cleaned form with symlinks in
// any existing prefix followed. Paths that do not exist yet (write targets)
// still canonicalize: the deepest existing ancestor is resolved and the
// remaining components are appended verbatim.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	// Walk up to the deepest resolvable ancestor, then re-attach the
	// non-existent suffix.
	dir := abs
	var tail []string
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		tail = append(tail, filepath.Base(dir))
		dir = parent

		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
	}
}

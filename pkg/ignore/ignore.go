// Package ignore answers whether a path would be skipped by git's ignore rules,
// so a publish can explain a staging failure before git reports it.
package ignore

import (
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Matcher provides gitignore-based file filtering
type Matcher struct {
	root    string
	matcher gitignore.Matcher
}

// NewMatcher loads .gitignore files found under repoRoot (recursively) together
// with the repository's info/exclude and the user's global excludes file.
func NewMatcher(repoRoot string) (*Matcher, error) {
	fs := osfs.New(repoRoot)

	var patterns []gitignore.Pattern
	// Global excludes live outside the repository, so they are read from "/".
	if global, err := gitignore.LoadGlobalPatterns(osfs.New("/")); err == nil {
		patterns = append(patterns, global...)
	}
	if repo, err := gitignore.ReadPatterns(fs, nil); err == nil {
		patterns = append(patterns, repo...)
	}

	return &Matcher{root: repoRoot, matcher: gitignore.NewMatcher(patterns)}, nil
}

// IsIgnored reports whether path (absolute, or relative to the repository root)
// matches an ignore rule.
func (m *Matcher) IsIgnored(path string) bool {
	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(m.root, path)
		if err != nil {
			return false
		}
		rel = r
	}

	parts := splitPath(filepath.ToSlash(rel))
	if len(parts) == 0 || parts[0] == ".." {
		return false
	}
	return m.matcher.Match(parts, false)
}

// Ignored filters paths down to those matched by an ignore rule.
func (m *Matcher) Ignored(paths ...string) []string {
	var out []string
	for _, p := range paths {
		if m.IsIgnored(p) {
			out = append(out, p)
		}
	}
	return out
}

// splitPath converts a slash-separated path into components for go-git matching
func splitPath(path string) []string {
	if path == "" || path == "." {
		return []string{}
	}

	// Remove leading slash if present
	path = strings.TrimPrefix(path, "/")

	// Split on forward slashes
	parts := strings.Split(path, "/")

	// Remove empty components
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}

	return result
}

package merge

import (
	"path/filepath"
	"strings"
)

// preservePattern is a parsed preserve pattern with its matching strategy.
type preservePattern struct {
	pattern   string
	matchPath bool // true = match against relative path; false = match against basename only
}

// PreserveMatcher checks relative paths against a set of preserve patterns.
// Preserved paths are exempt from the merge: they are never overwritten,
// never deleted, and the directories they name are never pruned.
// Patterns without '/' match against the file's basename at any depth.
// Patterns with '/' match against the full forward-slash relative path.
type PreserveMatcher struct {
	patterns []preservePattern
}

// NewPreserveMatcher creates a PreserveMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewPreserveMatcher(rawPatterns []string) *PreserveMatcher {
	var patterns []preservePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, preservePattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &PreserveMatcher{patterns: patterns}
}

// Match reports whether the given relative path is preserved.
// relativePath may use either separator; matching is case-sensitive.
func (m *PreserveMatcher) Match(relativePath string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}

	// Normalize to forward slashes for consistent matching.
	normalized := filepath.ToSlash(relativePath)
	basename := filepath.Base(relativePath)

	for _, p := range m.patterns {
		var matched bool
		var err error
		if p.matchPath {
			matched, err = filepath.Match(p.pattern, normalized)
		} else {
			matched, err = filepath.Match(p.pattern, basename)
		}
		if err != nil {
			// Malformed patterns never match.
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

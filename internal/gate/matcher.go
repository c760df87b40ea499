package gate

import (
	"path"
	"strings"
)

// PathMatcher validates request paths against glob patterns
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a new path matcher with the given patterns
func NewPathMatcher(patterns []string) *PathMatcher {
	return &PathMatcher{
		patterns: patterns,
	}
}

// Matches checks if a path matches any of the patterns
// Supports glob patterns with * wildcards:
//   - /static/* matches /static/app.css, /static/logo.png, etc.
//   - /api/** matches /api and anything under it (recursive)
func (pm *PathMatcher) Matches(requestPath string) bool {
	if len(pm.patterns) == 0 {
		return false
	}

	requestPath = normalizePath(requestPath)

	for _, pattern := range pm.patterns {
		pattern = normalizePath(pattern)

		if matchGlobPattern(pattern, requestPath) {
			return true
		}
	}

	return false
}

// normalizePath ensures path has leading slash and no trailing slash
func normalizePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}

	return path.Clean(p)
}

// matchGlobPattern matches a path against a glob pattern
// Supports * wildcards:
//   - /static/* matches /static/foo but not /static/foo/bar
//   - /api/** matches /api and /api/foo/bar (recursive)
//   - /files/*/meta matches /files/a/meta, /files/b/meta
func matchGlobPattern(pattern, requestPath string) bool {
	if pattern == requestPath {
		return true
	}

	if strings.Contains(pattern, "/**") {
		if pattern == "/**" {
			return true
		}

		prefix := strings.TrimSuffix(pattern, "/**")
		prefix = normalizePath(prefix)

		if requestPath == prefix || strings.HasPrefix(requestPath, prefix+"/") {
			return true
		}
	}

	if strings.Contains(pattern, "*") {
		patternParts := strings.Split(pattern, "/")
		pathParts := strings.Split(requestPath, "/")

		if len(patternParts) != len(pathParts) {
			return false
		}

		for i, patternPart := range patternParts {
			if patternPart == "*" {
				// * matches any single non-empty segment
				if pathParts[i] == "" {
					return false
				}
				continue
			}

			if patternPart != pathParts[i] {
				return false
			}
		}

		return true
	}

	return false
}

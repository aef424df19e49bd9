// Package pathutil performs the lexical path normalization the resolution
// pipeline needs before a path ever reaches the filesystem layer: collapsing
// "." segments, resolving ".." segments without touching disk, and tracking
// whether a trailing separator asked for "this must be a directory".
package pathutil

import (
	"strings"

	"github.com/esm-dev/resolve/specifier"
)

// Join joins base and more path segments, then normalizes the result. base
// is assumed to already be absolute; more may contain "." and ".." segments.
func Join(base string, more ...string) string {
	parts := append([]string{base}, more...)
	return Normalize(strings.Join(parts, "/"))
}

// Normalize collapses "." and ".." segments in p lexically, without
// consulting the filesystem (so it never resolves symlinks), and preserves
// a trailing separator as a "must be a directory" marker.
func Normalize(p string) string {
	if p == "" {
		return p
	}
	p = specifier.NormalizeWindowsPrefix(p)
	sep := separator(p)
	abs := strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`)
	trailingSlash := len(p) > 1 && (strings.HasSuffix(p, "/") || strings.HasSuffix(p, `\`))

	rawSegments := splitSegments(p)
	out := make([]string, 0, len(rawSegments))
	for _, seg := range rawSegments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 && out[len(out)-1] != ".." {
				out = out[:len(out)-1]
			} else if !abs {
				out = append(out, "..")
			}
			// an absolute path's ".." above root is dropped, matching
			// POSIX lexical normalization.
		default:
			out = append(out, seg)
		}
	}

	result := strings.Join(out, sep)
	if abs {
		result = sep + result
	}
	if trailingSlash && result != sep {
		result += sep
	}
	if result == "" {
		result = "."
	}
	return result
}

// HasTrailingSeparator reports whether p ends in a path separator,
// signalling "this specifier must resolve to a directory".
func HasTrailingSeparator(p string) bool {
	return len(p) > 0 && (p[len(p)-1] == '/' || p[len(p)-1] == '\\')
}

func separator(p string) string {
	if strings.ContainsRune(p, '\\') && !strings.ContainsRune(p, '/') {
		return `\`
	}
	return "/"
}

func splitSegments(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' })
}

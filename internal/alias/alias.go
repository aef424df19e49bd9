// Package alias implements the browser/alias rewriter (spec component C8):
// the `alias` and `fallback` tables, a package's `browser` field treated as
// a per-package alias table, and `extensionAlias` substitution.
package alias

import (
	"strings"
)

// Entry is one alias table row: Key matches a specifier exactly, as a
// directory prefix (Key followed by "/"), or as a wildcard when Key
// contains "*". Targets lists replacement candidates to try in order; a
// nil Targets slice (as opposed to an empty one) means "not aliased, fall
// through unchanged", while an explicitly empty non-nil slice represents
// the `false` alias form — "ignore this module".
type Entry struct {
	Key     string
	Targets []string // nil: no alias; empty non-nil: ignored; else: candidates
}

// Table is an ordered alias table; the first matching Entry wins.
type Table []Entry

// Ignored is the sentinel Table result reported by Match when the matched
// alias is the `false` form: the specifier resolves to an intentionally
// empty module.
const Ignored = "\x00ignored\x00"

// Match finds the first Entry in t whose Key matches specifier and returns
// the rewritten candidates. ok is false when no entry matches. A matched
// `false` alias returns a single-element slice containing Ignored.
func (t Table) Match(specifier string) (candidates []string, ok bool) {
	for _, e := range t {
		if rest, matched := matchKey(e.Key, specifier); matched {
			if e.Targets == nil {
				return nil, false
			}
			if len(e.Targets) == 0 {
				return []string{Ignored}, true
			}
			return expandCandidates(e.Targets, rest), true
		}
	}
	return nil, false
}

func matchKey(key, specifier string) (rest string, ok bool) {
	if strings.Contains(key, "*") {
		i := strings.IndexByte(key, '*')
		prefix, suffix := key[:i], key[i+1:]
		if strings.HasPrefix(specifier, prefix) && strings.HasSuffix(specifier, suffix) && len(specifier) >= len(prefix)+len(suffix) {
			return specifier[len(prefix) : len(specifier)-len(suffix)], true
		}
		return "", false
	}
	if specifier == key {
		return "", true
	}
	if strings.HasPrefix(specifier, key+"/") {
		return specifier[len(key):], true
	}
	return "", false
}

func expandCandidates(targets []string, rest string) []string {
	out := make([]string, len(targets))
	for i, t := range targets {
		if strings.Contains(t, "*") {
			out[i] = strings.Replace(t, "*", strings.TrimPrefix(rest, "/"), 1)
		} else {
			out[i] = t + rest
		}
	}
	return out
}

// Resolver threads a visited-set through recursive alias rewriting so a
// cyclic alias table terminates instead of looping forever.
type Resolver struct {
	Alias    Table
	Fallback Table
	MaxDepth int
}

// ErrRecursion is returned when an alias chain exceeds MaxDepth.
type ErrRecursion struct{ Specifier string }

func (e *ErrRecursion) Error() string { return "alias: recursion limit exceeded at " + e.Specifier }

// Rewrite applies r.Alias to specifier repeatedly until no entry matches,
// returning the final candidate list to try (normally length 1, but an
// alias value may itself list several alternatives). ok is false if no
// alias in the table ever matched specifier.
func (r Resolver) Rewrite(specifier string) (candidates []string, ok bool, err error) {
	return rewrite(r.Alias, specifier, r.MaxDepth, map[string]bool{})
}

// RewriteFallback applies r.Fallback the same way, for use only after the
// normal pipeline has failed.
func (r Resolver) RewriteFallback(specifier string) (candidates []string, ok bool, err error) {
	return rewrite(r.Fallback, specifier, r.MaxDepth, map[string]bool{})
}

func rewrite(table Table, specifier string, maxDepth int, visited map[string]bool) ([]string, bool, error) {
	if maxDepth <= 0 {
		maxDepth = 64
	}
	cur := specifier
	matchedOnce := false
	for depth := 0; depth < maxDepth; depth++ {
		if visited[cur] {
			return nil, false, &ErrRecursion{Specifier: specifier}
		}
		visited[cur] = true

		candidates, ok := table.Match(cur)
		if !ok {
			if matchedOnce {
				return []string{cur}, true, nil
			}
			return nil, false, nil
		}
		matchedOnce = true
		if len(candidates) == 1 && candidates[0] == Ignored {
			return []string{Ignored}, true, nil
		}
		if len(candidates) != 1 {
			return candidates, true, nil
		}
		cur = candidates[0]
	}
	return nil, false, &ErrRecursion{Specifier: specifier}
}

// ExtensionAlias maps a requested file extension to the ordered list of
// extensions to try in its place.
type ExtensionAlias map[string][]string

// ErrExtensionAlias is returned when every substitute extension in the
// mapped list failed to resolve.
type ErrExtensionAlias struct {
	Extension string
	Tried     []string
}

func (e *ErrExtensionAlias) Error() string {
	return "alias: extensionAlias for " + e.Extension + " exhausted candidates " + strings.Join(e.Tried, ", ")
}

// Substitutes returns the replacement extensions configured for ext, or
// nil if ext is not in the table.
func (m ExtensionAlias) Substitutes(ext string) []string {
	return m[ext]
}

// BrowserTable adapts a package.json "browser" field map into a Table, so
// it can be matched the same way as the top-level alias/fallback tables.
// A `false` value in the browser map (represented by the caller as an
// empty string per the npm package_json convention) becomes the `false`
// alias form.
func BrowserTable(browser map[string]string) Table {
	t := make(Table, 0, len(browser))
	for k, v := range browser {
		if v == "" {
			t = append(t, Entry{Key: k, Targets: []string{}})
		} else {
			t = append(t, Entry{Key: k, Targets: []string{v}})
		}
	}
	return t
}

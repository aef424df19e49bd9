// Package exports implements Node.js's PACKAGE_EXPORTS_RESOLVE and
// PACKAGE_IMPORTS_RESOLVE algorithms (spec component C7): a recursive
// matcher over the JSON subpath-pattern language, selecting among
// condition-keyed branches and expanding a single `*` wildcard.
package exports

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ije/gox/set"

	"github.com/esm-dev/resolve/internal/ordered"
)

// ErrNotExported is returned when no branch of the exports/imports map
// resolves the requested subpath.
type ErrNotExported struct {
	Subpath    string
	Conditions []string
}

func (e *ErrNotExported) Error() string {
	return fmt.Sprintf("exports: package subpath %q is not defined for conditions %v", e.Subpath, e.Conditions)
}

// ErrInvalidTarget is returned when a resolved string target is malformed:
// absolute, escapes the package via "..", or is empty.
type ErrInvalidTarget struct{ Target string }

func (e *ErrInvalidTarget) Error() string {
	return fmt.Sprintf("exports: invalid package target %q", e.Target)
}

// ErrInvalidConfig is returned when an object mixes subpath keys (starting
// with "." or "#") and condition keys.
var ErrInvalidConfig = errors.New("exports: cannot mix subpath keys and condition names in one object")

// ErrBuiltin is returned when a resolved target begins with "node:".
type ErrBuiltin struct {
	Target         string
	PrefixedWithNode bool
}

func (e *ErrBuiltin) Error() string {
	return fmt.Sprintf("exports: target %q resolves to a runtime builtin", e.Target)
}

// Conditions is the active set of condition names, order-insensitive for
// matching (membership only — declared order in the exports map is what
// decides precedence).
type Conditions struct {
	names *set.Set[string]
}

// NewConditions builds a Conditions set from a slice.
func NewConditions(names []string) Conditions {
	s := set.New[string]()
	for _, n := range names {
		s.Add(n)
	}
	return Conditions{names: s}
}

func (c Conditions) has(name string) bool {
	return c.names != nil && c.names.Has(name)
}

// Resolve runs PACKAGE_EXPORTS_RESOLVE (or, symmetrically, PACKAGE_IMPORTS_RESOLVE
// when subpath starts with "#") against value — the raw JSON value of the
// package's "exports" (or "imports") field, which may be a string, an
// []any, or an ordered.Object.
//
// subpath is "." for the package root, "./x" for a named export, or "#x"
// for an internal import. It returns the single selected target as a
// one-element slice. For an array value the first alternative that is a
// valid target is selected; later alternatives are consulted only when an
// earlier one is invalid or not exported, never because its file is missing.
func Resolve(value any, subpath string, conditions Conditions) ([]string, error) {
	if value == nil {
		return nil, &ErrNotExported{Subpath: subpath, Conditions: conditionNames(conditions)}
	}

	// A bare string or array "exports" value is shorthand for {".":value}.
	if subpath == "." {
		if s, ok := value.(string); ok {
			return resolveTarget(s, "", conditions, subpath)
		}
		if arr, ok := value.([]any); ok {
			return resolveArray(arr, "", conditions, subpath)
		}
	}

	obj, ok := value.(ordered.Object)
	if !ok {
		return nil, &ErrNotExported{Subpath: subpath, Conditions: conditionNames(conditions)}
	}

	subpathKeyed, mixed := classifyKeys(obj)
	if mixed {
		return nil, ErrInvalidConfig
	}

	if subpathKeyed {
		target, capture, err := matchSubpath(obj, subpath)
		if err != nil {
			return nil, err
		}
		return resolveValue(target, capture, conditions, subpath)
	}

	// Condition-keyed object applied directly at subpath "."/"#x" itself.
	if subpath != "." && !strings.HasPrefix(subpath, "#") {
		return nil, &ErrNotExported{Subpath: subpath, Conditions: conditionNames(conditions)}
	}
	return resolveValue(obj, "", conditions, subpath)
}

// classifyKeys reports whether obj's top-level keys are subpath keys
// (starting with "." or "#") and whether it illegally mixes those with
// condition-name keys in the same object, per Node's restriction against
// an exports/imports object combining the two key shapes.
func classifyKeys(obj ordered.Object) (subpathKeyed, mixed bool) {
	keys := obj.Keys()
	if len(keys) == 0 {
		return false, false
	}
	subpathKeys, conditionKeys := 0, 0
	for _, k := range keys {
		if strings.HasPrefix(k, ".") || strings.HasPrefix(k, "#") {
			subpathKeys++
		} else {
			conditionKeys++
		}
	}
	return subpathKeys > 0, subpathKeys > 0 && conditionKeys > 0
}

// matchSubpath selects the best-specificity key in a subpath-keyed object:
// exact match beats wildcard; among wildcards, longest literal prefix
// wins, ties broken by longest literal suffix.
func matchSubpath(obj ordered.Object, subpath string) (value any, capture string, err error) {
	if v, ok := obj.Get(subpath); ok {
		return v, "", nil
	}

	type candidate struct {
		key           string
		literalPrefix string
		literalSuffix string
		capture       string
	}
	var candidates []candidate
	for _, k := range obj.Keys() {
		i := strings.IndexByte(k, '*')
		if i < 0 {
			continue
		}
		prefix, suffix := k[:i], k[i+1:]
		if strings.HasPrefix(subpath, prefix) && strings.HasSuffix(subpath, suffix) && len(subpath) >= len(prefix)+len(suffix) {
			capture := subpath[len(prefix) : len(subpath)-len(suffix)]
			candidates = append(candidates, candidate{key: k, literalPrefix: prefix, literalSuffix: suffix, capture: capture})
		}
	}
	if len(candidates) == 0 {
		return nil, "", &ErrNotExported{Subpath: subpath}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if len(candidates[i].literalPrefix) != len(candidates[j].literalPrefix) {
			return len(candidates[i].literalPrefix) > len(candidates[j].literalPrefix)
		}
		return len(candidates[i].literalSuffix) > len(candidates[j].literalSuffix)
	})
	best := candidates[0]
	v, _ := obj.Get(best.key)
	return v, best.capture, nil
}

func resolveValue(value any, capture string, conditions Conditions, subpath string) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, &ErrNotExported{Subpath: subpath, Conditions: conditionNames(conditions)}
	case string:
		return resolveTarget(v, capture, conditions, subpath)
	case []any:
		return resolveArray(v, capture, conditions, subpath)
	case ordered.Object:
		if _, mixed := classifyKeys(v); mixed {
			return nil, ErrInvalidConfig
		}
		for _, key := range v.Keys() {
			if key == "default" || conditions.has(key) {
				branchVal, _ := v.Get(key)
				out, err := resolveValue(branchVal, capture, conditions, subpath)
				if err == nil {
					return out, nil
				}
				var notExported *ErrNotExported
				if !errors.As(err, &notExported) {
					return nil, err
				}
			}
		}
		return nil, &ErrNotExported{Subpath: subpath, Conditions: conditionNames(conditions)}
	default:
		return nil, &ErrInvalidTarget{Target: fmt.Sprintf("%v", value)}
	}
}

func resolveArray(arr []any, capture string, conditions Conditions, subpath string) ([]string, error) {
	var lastErr error
	for _, alt := range arr {
		out, err := resolveValue(alt, capture, conditions, subpath)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, &ErrNotExported{Subpath: subpath, Conditions: conditionNames(conditions)}
}

func resolveTarget(target, capture string, conditions Conditions, subpath string) ([]string, error) {
	if !strings.HasPrefix(target, "./") && target != "." {
		if strings.HasPrefix(target, "node:") {
			return nil, &ErrBuiltin{Target: target, PrefixedWithNode: true}
		}
		return nil, &ErrInvalidTarget{Target: target}
	}
	expanded := target
	if capture != "" {
		expanded = strings.Replace(target, "*", capture, 1)
	} else if strings.Contains(target, "*") {
		// a wildcard key matched with an empty capture at a subpath key
		// without "*" in it (e.g. exact match branch) leaves the '*'
		// unresolved; that is a configuration error, not a candidate.
		return nil, &ErrInvalidTarget{Target: target}
	}
	if !withinPackage(expanded) {
		return nil, &ErrInvalidTarget{Target: target}
	}
	return []string{expanded}, nil
}

// withinPackage rejects any target that could escape the package directory
// via ".." segments, or that is itself empty/absolute.
func withinPackage(target string) bool {
	if target == "" || strings.HasPrefix(target, "/") {
		return false
	}
	depth := 0
	for _, seg := range strings.Split(target, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			depth--
			if depth < 0 {
				return false
			}
		default:
			depth++
		}
	}
	return true
}

func conditionNames(c Conditions) []string {
	if c.names == nil {
		return nil
	}
	out := c.names.Values()
	sort.Strings(out)
	return out
}

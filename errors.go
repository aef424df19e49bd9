package resolve

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a resolution failure. It names a taxonomy, not a Go
// type per kind, so callers can switch on Kind() without type assertions.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota
	KindIOError
	KindJSONError
	KindInvalidPackageConfig
	KindInvalidPackageTarget
	KindPackagePathNotExported
	KindPackageImportNotDefined
	KindMatchedAliasNotFound
	KindExtensionAlias
	KindSpecifier
	KindRestriction
	KindBuiltin
	KindTsconfigNotFound
	KindTsconfigSelfReference
	KindTsconfigCircularExtends
	KindRecursion
	KindSymlinkCycle
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindIOError:
		return "IOError"
	case KindJSONError:
		return "JSONError"
	case KindInvalidPackageConfig:
		return "InvalidPackageConfig"
	case KindInvalidPackageTarget:
		return "InvalidPackageTarget"
	case KindPackagePathNotExported:
		return "PackagePathNotExported"
	case KindPackageImportNotDefined:
		return "PackageImportNotDefined"
	case KindMatchedAliasNotFound:
		return "MatchedAliasNotFound"
	case KindExtensionAlias:
		return "ExtensionAlias"
	case KindSpecifier:
		return "Specifier"
	case KindRestriction:
		return "Restriction"
	case KindBuiltin:
		return "Builtin"
	case KindTsconfigNotFound:
		return "TsconfigNotFound"
	case KindTsconfigSelfReference:
		return "TsconfigSelfReference"
	case KindTsconfigCircularExtends:
		return "TsconfigCircularExtends"
	case KindRecursion:
		return "Recursion"
	case KindSymlinkCycle:
		return "SymlinkCycle"
	default:
		return "Unknown"
	}
}

// ResolveError is the single typed failure the resolver returns for every
// unsuccessful resolve call. It carries enough context — the directory and
// specifier that were being resolved, every candidate path tried, the
// active condition set, and a wrapped cause — to render a Node.js-grade
// diagnostic.
type ResolveError struct {
	Kind              ErrorKind
	Directory         string
	Specifier         string
	Tried             []string
	Conditions        []string
	PrefixedWithNode  bool
	Cause             error
}

func (e *ResolveError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "resolve: %s: cannot resolve %q from %q", e.Kind, e.Specifier, e.Directory)
	if len(e.Tried) > 0 {
		fmt.Fprintf(&b, " (tried: %s)", strings.Join(e.Tried, ", "))
	}
	if len(e.Conditions) > 0 {
		fmt.Fprintf(&b, " (conditions: %s)", strings.Join(e.Conditions, ", "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *ResolveError) Unwrap() error { return e.Cause }

func newError(kind ErrorKind, dir, specifier string, cause error) *ResolveError {
	return &ResolveError{Kind: kind, Directory: dir, Specifier: specifier, Cause: cause}
}

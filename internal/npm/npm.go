// Package npm provides npm-ecosystem primitives the resolver needs outside
// the core Node.js algorithm itself: package name validation and the
// dependency-specifier grammar used both by ordinary package.json
// "dependencies" entries and by Yarn's Plug'n'Play lockfile references
// (which reuse the same npm:/workspace:/patch: protocol-prefix shape).
package npm

import (
	"errors"
	"net/url"
	"strings"

	"github.com/ije/gox/utils"
	"github.com/ije/gox/valid"
)

var (
	Naming     = valid.Validator{valid.Range{'a', 'z'}, valid.Range{'A', 'Z'}, valid.Range{'0', '9'}, valid.Eq('_'), valid.Eq('.'), valid.Eq('-'), valid.Eq('+'), valid.Eq('$'), valid.Eq('!')}
	Versioning = valid.Validator{valid.Range{'a', 'z'}, valid.Range{'A', 'Z'}, valid.Range{'0', '9'}, valid.Eq('_'), valid.Eq('.'), valid.Eq('-'), valid.Eq('+')}
)

// ValidatePackageName validates a bare module name against the rules at
// https://github.com/npm/validate-npm-package-name. The resolver's Module
// specifier classification defers to this before attempting a node_modules
// or PnP lookup, rejecting garbage specifiers early with ResolveError::Specifier
// rather than walking the filesystem on a name that could never match.
func ValidatePackageName(pkgName string) bool {
	if l := len(pkgName); l == 0 || l > 214 {
		return false
	}
	if strings.HasPrefix(pkgName, "@") {
		scope, name := utils.SplitByFirstByte(pkgName, '/')
		return len(scope) > 1 && Naming.Match(scope[1:]) && Naming.Match(name)
	}
	return Naming.Match(pkgName)
}

// Package is a parsed dependency reference: a name plus a version
// constraint, optionally tagged with the protocol it came from.
type Package struct {
	Name      string
	Version   string
	Workspace bool
	Patch     bool
	Github    bool
}

func (p Package) String() string {
	s := p.Name + "@" + p.Version
	switch {
	case p.Workspace:
		return "workspace:" + s
	case p.Patch:
		return "patch:" + s
	case p.Github:
		return "gh/" + s
	default:
		return s
	}
}

// ResolveDependencyVersion parses a package.json "dependencies" entry into
// a Package. It recognizes the npm:, github:, and git(+ssh|+https):// alias
// forms in addition to a plain semver range.
//
// e.g. "react": "npm:react@19.0.0"
// e.g. "react": "github:facebook/react#semver:19.0.0"
func ResolveDependencyVersion(v string) (Package, error) {
	if strings.HasPrefix(v, "file:") {
		return Package{}, errors.New("npm: unsupported file: dependency")
	}
	if strings.HasPrefix(v, "npm:") {
		pkgName, pkgVersion := splitPackageVersion(v[4:])
		return Package{Name: pkgName, Version: pkgVersion}, nil
	}
	if strings.HasPrefix(v, "github:") {
		repo, fragment := utils.SplitByLastByte(strings.TrimPrefix(v, "github:"), '#')
		return Package{
			Github:  true,
			Name:    repo,
			Version: strings.TrimPrefix(url.QueryEscape(fragment), "semver:"),
		}, nil
	}
	if strings.HasPrefix(v, "git+ssh://") || strings.HasPrefix(v, "git+https://") || strings.HasPrefix(v, "git://") {
		gitUrl, err := url.Parse(v)
		if err != nil || gitUrl.Hostname() != "github.com" {
			return Package{}, errors.New("npm: unsupported git dependency")
		}
		repo := strings.TrimSuffix(gitUrl.Path[1:], ".git")
		return Package{
			Github:  true,
			Name:    repo,
			Version: strings.TrimPrefix(url.QueryEscape(gitUrl.Fragment), "semver:"),
		}, nil
	}
	return Package{Version: v}, nil
}

// ParsePnPReference parses a Yarn Plug'n'Play locator reference, the
// version-like string stored against each package in a PnP manifest's
// "packageRegistryData". Its protocol-prefix grammar mirrors
// ResolveDependencyVersion's npm: handling, extended with the two
// protocols unique to PnP locators: workspace: (an in-repo workspace
// package, referenced by relative path instead of a version) and patch:
// (a package patched on top of another resolved reference).
func ParsePnPReference(ref string) (Package, error) {
	switch {
	case strings.HasPrefix(ref, "workspace:"):
		return Package{Workspace: true, Version: strings.TrimPrefix(ref, "workspace:")}, nil
	case strings.HasPrefix(ref, "patch:"):
		rest := strings.TrimPrefix(ref, "patch:")
		name, version := splitPackageVersion(rest)
		return Package{Patch: true, Name: name, Version: version}, nil
	case strings.HasPrefix(ref, "npm:"):
		name, version := splitPackageVersion(ref[4:])
		if version == "" {
			// "npm:x.y.z": the locator's own name supplies Name.
			return Package{Version: ref[4:]}, nil
		}
		return Package{Name: name, Version: version}, nil
	default:
		// A bare "x.y.z" reference: the locator's own name supplies Name.
		return Package{Version: ref}, nil
	}
}

func splitPackageVersion(v string) (string, string) {
	if strings.HasPrefix(v, "@") {
		if i := strings.IndexByte(v[1:], '@'); i > 0 {
			return v[:i+1], v[i+2:]
		}
		return v, ""
	}
	if i := strings.IndexByte(v, '@'); i > 0 {
		return v[:i], v[i+1:]
	}
	return v, ""
}

// IsExactVersion returns true if version is an exact semver triple, as
// opposed to a range, tag, or partial version.
func IsExactVersion(version string) bool {
	a := strings.SplitN(version, ".", 3)
	if len(a) != 3 {
		return false
	}
	if len(a[0]) == 0 || !isNumericString(a[0]) || len(a[1]) == 0 || !isNumericString(a[1]) {
		return false
	}
	p := a[2]
	if len(p) == 0 {
		return false
	}
	patchEnd := false
	for i, c := range p {
		if !patchEnd {
			if c == '-' || c == '+' {
				if i == 0 || i == len(p)-1 {
					return false
				}
				patchEnd = true
			} else if c < '0' || c > '9' {
				return false
			}
		} else {
			if !(c == '.' || c == '_' || c == '-' || c == '+' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
				return false
			}
		}
	}
	return true
}

func isNumericString(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// NormalizePackageVersion strips a leading "=" or "v" and maps an empty or
// "*" version to "latest".
func NormalizePackageVersion(version string) string {
	if strings.HasPrefix(version, "=") {
		version = version[1:]
	} else if strings.HasPrefix(version, "v") && IsExactVersion(version[1:]) {
		version = version[1:]
	}
	if version == "" || version == "*" {
		return "latest"
	}
	return version
}

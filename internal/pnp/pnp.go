// Package pnp adapts Yarn Plug'n'Play resolution data into the narrow
// lookup interface the resolution pipeline consults before falling back to
// a node_modules walk (spec component C11). Manifest parsing itself (the
// `.pnp.cjs`/`.pnp.data.json` file format) is out of scope; this package
// only defines the interface and reference-string grammar a manifest
// implementation must expose.
package pnp

import (
	"errors"

	"github.com/esm-dev/resolve/internal/npm"
)

// ErrNotFound is returned by Resolve when no PnP entry matches a
// requested package from a given issuer location.
var ErrNotFound = errors.New("pnp: no matching dependency entry")

// Locator identifies one installed package instance within a PnP install:
// its name, and the reference string distinguishing which of possibly
// several installed copies this is (a plain version, or a workspace:/patch:
// locator per npm.ParsePnPReference).
type Locator struct {
	Name      string
	Reference string
}

// Package describes where a Locator's files live on disk, and which other
// locators it may import.
type Package struct {
	Locator      Locator
	PackageLocation string // absolute directory containing package.json
	Dependencies []Locator
}

// Manifest is the lookup surface a PnP install provides. A resolver is
// handed a Manifest implementation (e.g. one backed by a parsed
// .pnp.data.json) rather than parsing PnP data itself.
type Manifest interface {
	// FindLocator returns the Locator that owns the file at path, or
	// ok=false if path is not covered by any installed package (e.g. it
	// belongs to the workspace root itself).
	FindLocator(path string) (Locator, bool)
	// PackageInfo returns the Package record for locator.
	PackageInfo(locator Locator) (Package, bool)
}

// Resolve finds where a dependency named pkgName should be loaded from,
// given the Locator of the file that is importing it. It enforces PnP's
// core invariant: a package may only import what it explicitly declares
// as a dependency (or peerDependency resolved transitively by the
// manifest), not anything merely present elsewhere in the install.
func Resolve(m Manifest, fromPath, pkgName string) (Package, error) {
	issuer, ok := m.FindLocator(fromPath)
	if !ok {
		return Package{}, ErrNotFound
	}
	issuerPkg, ok := m.PackageInfo(issuer)
	if !ok {
		return Package{}, ErrNotFound
	}
	for _, dep := range issuerPkg.Dependencies {
		if dep.Name == pkgName {
			pkg, ok := m.PackageInfo(dep)
			if !ok {
				return Package{}, ErrNotFound
			}
			return pkg, nil
		}
	}
	return Package{}, ErrNotFound
}

// ParseReference is npm.ParsePnPReference, re-exported so callers working
// purely in terms of this package do not need to import internal/npm
// directly for the one function they need from it.
func ParseReference(ref string) (npm.Package, error) {
	return npm.ParsePnPReference(ref)
}

package pnp

import "testing"

type staticManifest struct {
	byPath    map[string]Locator
	byLocator map[Locator]Package
}

func (m *staticManifest) FindLocator(path string) (Locator, bool) {
	l, ok := m.byPath[path]
	return l, ok
}

func (m *staticManifest) PackageInfo(l Locator) (Package, bool) {
	p, ok := m.byLocator[l]
	return p, ok
}

func TestResolveFindsDeclaredDependency(t *testing.T) {
	issuer := Locator{Name: "app", Reference: "workspace:."}
	dep := Locator{Name: "lodash", Reference: "4.17.21"}
	m := &staticManifest{
		byPath: map[string]Locator{
			"/proj/src/index.js": issuer,
		},
		byLocator: map[Locator]Package{
			issuer: {Locator: issuer, PackageLocation: "/proj", Dependencies: []Locator{dep}},
			dep:    {Locator: dep, PackageLocation: "/proj/.yarn/cache/lodash", Dependencies: nil},
		},
	}

	pkg, err := Resolve(m, "/proj/src/index.js", "lodash")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if pkg.PackageLocation != "/proj/.yarn/cache/lodash" {
		t.Fatalf("unexpected package location: %q", pkg.PackageLocation)
	}
}

func TestResolveRejectsUndeclaredDependency(t *testing.T) {
	issuer := Locator{Name: "app", Reference: "workspace:."}
	m := &staticManifest{
		byPath:    map[string]Locator{"/proj/src/index.js": issuer},
		byLocator: map[Locator]Package{issuer: {Locator: issuer, PackageLocation: "/proj"}},
	}
	_, err := Resolve(m, "/proj/src/index.js", "not-a-dependency")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParseReference(t *testing.T) {
	pkg, err := ParseReference("workspace:packages/a")
	if err != nil {
		t.Fatalf("ParseReference: %v", err)
	}
	if !pkg.Workspace || pkg.Version != "packages/a" {
		t.Fatalf("unexpected package: %+v", pkg)
	}
}

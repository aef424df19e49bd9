package resolve

import (
	"regexp"
	"sync"
	"testing"

	"github.com/ije/gox/set"

	"github.com/esm-dev/resolve/fs"
	"github.com/esm-dev/resolve/internal/alias"
)

func mustResolver(t *testing.T, fsys fs.FS, opts Options) *Resolver {
	t.Helper()
	r, err := New(fsys, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestResolveExtensionlessFile(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/src/index.js", nil)
	mem.WriteFile("/project/src/foo.js", nil)

	r := mustResolver(t, mem, Options{})
	res, err := r.Resolve("/project/src", "./foo")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != "/project/src/foo.js" {
		t.Errorf("Path = %q, want /project/src/foo.js", res.Path)
	}
	if res.ModuleType != ModuleTypeCommonJS {
		t.Errorf("ModuleType = %v, want CommonJS", res.ModuleType)
	}
}

func TestResolveNodeModulesWalkWithMainField(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/node_modules/lodash/package.json", []byte(`{"name":"lodash","main":"lodash.js"}`))
	mem.WriteFile("/project/node_modules/lodash/lodash.js", nil)

	r := mustResolver(t, mem, Options{})
	res, err := r.Resolve("/project/src", "lodash")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := "/project/node_modules/lodash/lodash.js"
	if res.Path != want {
		t.Errorf("Path = %q, want %q", res.Path, want)
	}
	if res.PackageJSON == nil || res.PackageJSON.Name != "lodash" {
		t.Errorf("PackageJSON not populated for %q", res.Path)
	}
}

func TestResolveNodeModulesWalkClimbsAncestors(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/node_modules/dep/package.json", []byte(`{"name":"dep","main":"index.js"}`))
	mem.WriteFile("/project/node_modules/dep/index.js", nil)

	r := mustResolver(t, mem, Options{})
	res, err := r.Resolve("/project/src/deep/nested", "dep")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != "/project/node_modules/dep/index.js" {
		t.Errorf("Path = %q", res.Path)
	}
}

func TestResolveExportsSubpath(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/node_modules/pkg/package.json", []byte(`{
		"name": "pkg",
		"exports": {
			".": "./index.js",
			"./sub": "./lib/sub.js"
		}
	}`))
	mem.WriteFile("/project/node_modules/pkg/index.js", nil)
	mem.WriteFile("/project/node_modules/pkg/lib/sub.js", nil)

	r := mustResolver(t, mem, Options{})

	res, err := r.Resolve("/project/src", "pkg")
	if err != nil {
		t.Fatalf("Resolve(pkg): %v", err)
	}
	if res.Path != "/project/node_modules/pkg/index.js" {
		t.Errorf("Path = %q", res.Path)
	}

	res, err = r.Resolve("/project/src", "pkg/sub")
	if err != nil {
		t.Fatalf("Resolve(pkg/sub): %v", err)
	}
	if res.Path != "/project/node_modules/pkg/lib/sub.js" {
		t.Errorf("Path = %q", res.Path)
	}
}

func TestResolveExportsSubpathNotExported(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/node_modules/pkg/package.json", []byte(`{
		"name": "pkg",
		"exports": {".": "./index.js"}
	}`))
	mem.WriteFile("/project/node_modules/pkg/index.js", nil)
	mem.WriteFile("/project/node_modules/pkg/internal.js", nil)

	r := mustResolver(t, mem, Options{})
	_, err := r.Resolve("/project/src", "pkg/internal")
	if err == nil {
		t.Fatal("expected an error resolving an unexported subpath")
	}
	rerr, ok := err.(*ResolveError)
	if !ok {
		t.Fatalf("error type = %T, want *ResolveError", err)
	}
	if rerr.Kind != KindPackagePathNotExported {
		t.Errorf("Kind = %v, want PackagePathNotExported", rerr.Kind)
	}
}

func TestResolveExportsConditionFallback(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/node_modules/pkg/package.json", []byte(`{
		"name": "pkg",
		"exports": {
			".": {
				"import": "./esm.js",
				"require": "./cjs.js",
				"default": "./cjs.js"
			}
		}
	}`))
	mem.WriteFile("/project/node_modules/pkg/esm.js", nil)
	mem.WriteFile("/project/node_modules/pkg/cjs.js", nil)

	// Default ConditionNames is ["node", "require"]: "import" is declared
	// first but not active, so "require" is the first matching branch.
	r := mustResolver(t, mem, Options{})
	res, err := r.Resolve("/project/src", "pkg")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != "/project/node_modules/pkg/cjs.js" {
		t.Errorf("Path = %q, want cjs.js branch", res.Path)
	}

	r2 := mustResolver(t, mem, Options{ConditionNames: []string{"node", "import"}})
	res2, err := r2.Resolve("/project/src", "pkg")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res2.Path != "/project/node_modules/pkg/esm.js" {
		t.Errorf("Path = %q, want esm.js branch", res2.Path)
	}
}

func TestResolveQueryAndFragmentEscaping(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/src/comp.vue", nil)

	r := mustResolver(t, mem, Options{})
	res, err := r.Resolve("/project/src", "./comp.vue?raw#hash")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != "/project/src/comp.vue" {
		t.Errorf("Path = %q", res.Path)
	}
	if res.Query != "raw" {
		t.Errorf("Query = %q, want raw", res.Query)
	}
	if res.Fragment != "hash" {
		t.Errorf("Fragment = %q, want hash", res.Fragment)
	}
}

func TestResolveEscapedLiteralHashInPath(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/src/weird#file.js", nil)

	r := mustResolver(t, mem, Options{})
	// "\x00#" is the escape for a literal '#' that must stay part of the
	// path rather than start a fragment.
	res, err := r.Resolve("/project/src", "./weird\x00#file")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != "/project/src/weird#file.js" {
		t.Errorf("Path = %q", res.Path)
	}
	if res.Fragment != "" {
		t.Errorf("Fragment = %q, want empty", res.Fragment)
	}
}

func TestResolveTsconfigPathsWithConfigDirSubstitution(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/tsconfig.json", []byte(`{
		"compilerOptions": {
			"paths": { "@app/*": ["${configDir}/src/*"] }
		}
	}`))
	mem.WriteFile("/project/src/utils.ts", nil)

	r := mustResolver(t, mem, Options{Extensions: []string{".ts", ".js", ".json"}})
	res, err := r.Resolve("/project/src", "@app/utils")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != "/project/src/utils.ts" {
		t.Errorf("Path = %q", res.Path)
	}
}

func TestResolveTsconfigPathsRelativeToBaseURL(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/tsconfig.json", []byte(`{
		"compilerOptions": {
			"baseUrl": ".",
			"paths": { "@app/*": ["./src/*"] }
		}
	}`))
	mem.WriteFile("/project/src/utils.ts", nil)

	r := mustResolver(t, mem, Options{Extensions: []string{".ts", ".js", ".json"}})
	res, err := r.Resolve("/project/src", "@app/utils")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != "/project/src/utils.ts" {
		t.Errorf("Path = %q", res.Path)
	}
}

func TestResolveTsconfigPathsNotAppliedInsideNodeModules(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/node_modules/pkg/tsconfig.json", []byte(`{
		"compilerOptions": {
			"paths": { "@app/*": ["./src/*"] }
		}
	}`))
	mem.WriteFile("/project/node_modules/pkg/src/utils.ts", nil)

	r := mustResolver(t, mem, Options{Extensions: []string{".ts", ".js", ".json"}})
	_, err := r.Resolve("/project/node_modules/pkg/src", "@app/utils")
	if err == nil {
		t.Fatal("expected an error: paths from a tsconfig.json inside node_modules must not apply")
	}
}

func TestResolveExportsFieldsProbesAlternateFieldName(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/node_modules/pkg/package.json", []byte(`{
		"name": "pkg",
		"publishConfig": {
			"exports": {".": "./published.js"}
		}
	}`))
	mem.WriteFile("/project/node_modules/pkg/published.js", nil)

	r := mustResolver(t, mem, Options{ExportsFields: [][]string{{"publishConfig", "exports"}}})
	res, err := r.Resolve("/project/src", "pkg")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != "/project/node_modules/pkg/published.js" {
		t.Errorf("Path = %q, want the exports map found via the configured ExportsFields path", res.Path)
	}
}

func TestResolveFullySpecifiedRejectsExtensionInference(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/src/foo.js", nil)

	r := mustResolver(t, mem, Options{FullySpecified: true})
	if _, err := r.Resolve("/project/src", "./foo"); err == nil {
		t.Fatalf("Resolve: want error, extensionless specifier should be rejected under FullySpecified")
	}

	res, err := r.Resolve("/project/src", "./foo.js")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != "/project/src/foo.js" {
		t.Errorf("Path = %q, want /project/src/foo.js", res.Path)
	}
}

func TestResolveFullySpecifiedStillAllowsMainFieldExtensionInference(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/node_modules/pkg/package.json", []byte(`{"name":"pkg","main":"index"}`))
	mem.WriteFile("/project/node_modules/pkg/index.js", nil)

	r := mustResolver(t, mem, Options{FullySpecified: true})
	res, err := r.Resolve("/project/src", "pkg")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != "/project/node_modules/pkg/index.js" {
		t.Errorf("Path = %q, want /project/node_modules/pkg/index.js", res.Path)
	}
}

func TestResolvePreferRelativeTriesRelativeBeforeNodeModules(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/src/foo.js", nil)
	mem.WriteFile("/project/node_modules/foo/package.json", []byte(`{"name":"foo","main":"index.js"}`))
	mem.WriteFile("/project/node_modules/foo/index.js", nil)

	r := mustResolver(t, mem, Options{PreferRelative: true})
	res, err := r.Resolve("/project/src", "foo")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != "/project/src/foo.js" {
		t.Errorf("Path = %q, want the relative sibling file preferred over node_modules", res.Path)
	}

	r2 := mustResolver(t, mem, Options{})
	res2, err := r2.Resolve("/project/src", "foo")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res2.Path != "/project/node_modules/foo/index.js" {
		t.Errorf("Path = %q, want node_modules preferred without PreferRelative", res2.Path)
	}
}

func TestResolvePreferAbsoluteTriesModuleLookupBeforeFilesystemRoot(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/node_modules/pkg/package.json", []byte(`{"name":"pkg","main":"index.js"}`))
	mem.WriteFile("/project/node_modules/pkg/index.js", nil)
	mem.WriteFile("/pkg", nil)

	r := mustResolver(t, mem, Options{PreferAbsolute: true})
	res, err := r.Resolve("/project/src", "/pkg")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != "/project/node_modules/pkg/index.js" {
		t.Errorf("Path = %q, want the module lookup preferred over the filesystem-absolute file", res.Path)
	}

	r2 := mustResolver(t, mem, Options{})
	res2, err := r2.Resolve("/project/src", "/pkg")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res2.Path != "/pkg" {
		t.Errorf("Path = %q, want the filesystem-absolute file without PreferAbsolute", res2.Path)
	}
}

func TestResolveEmptySpecifierIsAnError(t *testing.T) {
	mem := fs.NewMemory()
	r := mustResolver(t, mem, Options{})
	_, err := r.Resolve("/project/src", "")
	if err == nil {
		t.Fatal("expected an error for an empty specifier")
	}
	rerr, ok := err.(*ResolveError)
	if !ok || rerr.Kind != KindSpecifier {
		t.Errorf("err = %v, want KindSpecifier", err)
	}
}

func TestResolveInvalidBarePackageNameIsAnError(t *testing.T) {
	mem := fs.NewMemory()
	r := mustResolver(t, mem, Options{})
	_, err := r.Resolve("/project/src", " leading-space/x")
	if err == nil {
		t.Fatal("expected an error for a structurally invalid package name")
	}
	rerr, ok := err.(*ResolveError)
	if !ok || rerr.Kind != KindSpecifier {
		t.Errorf("err = %v, want KindSpecifier", err)
	}
}

func TestResolveRootsFallback(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/shared/assets/logo.svg", nil)

	r := mustResolver(t, mem, Options{Roots: []string{"/shared"}})
	res, err := r.Resolve("/project/src", "./assets/logo.svg")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != "/shared/assets/logo.svg" {
		t.Errorf("Path = %q", res.Path)
	}
}

func TestResolveRootsFallbackAbsoluteSpecifier(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/shared/assets/logo.svg", nil)

	r := mustResolver(t, mem, Options{Roots: []string{"/shared"}})
	res, err := r.Resolve("/project/src", "/assets/logo.svg")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != "/shared/assets/logo.svg" {
		t.Errorf("Path = %q", res.Path)
	}
}

func TestResolveEnforceExtensionRejectsExtensionless(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/src/foo.js", nil)

	r := mustResolver(t, mem, Options{EnforceExtension: EnforceExtensionEnabled})
	_, err := r.Resolve("/project/src", "./foo")
	if err == nil {
		t.Fatal("expected an error when full specification is required")
	}

	r2 := mustResolver(t, mem, Options{EnforceExtension: EnforceExtensionEnabled})
	res, err := r2.Resolve("/project/src", "./foo.js")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != "/project/src/foo.js" {
		t.Errorf("Path = %q", res.Path)
	}
}

func TestResolveTsconfigCircularExtends(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/a.json", []byte(`{"extends": "./b.json"}`))
	mem.WriteFile("/project/b.json", []byte(`{"extends": "./a.json"}`))

	r := mustResolver(t, mem, Options{})
	_, err := r.ResolveTsconfig("/project/a.json")
	if err == nil {
		t.Fatal("expected a circular extends error")
	}
	rerr, ok := err.(*ResolveError)
	if !ok {
		t.Fatalf("error type = %T, want *ResolveError", err)
	}
	if rerr.Kind != KindTsconfigCircularExtends && rerr.Kind != KindTsconfigSelfReference {
		t.Errorf("Kind = %v, want a tsconfig cycle kind", rerr.Kind)
	}
}

func TestResolveSymlinkCycleIsAnError(t *testing.T) {
	mem := fs.NewMemory()
	// foo.js is reachable as a literal file; the cycle lives one level up,
	// in the directory symlinks that make up its path.
	mem.WriteFile("/project/link_a/foo.js", nil)
	mem.Symlink("/project/link_a", "link_b")
	mem.Symlink("/project/link_b", "link_a")

	r := mustResolver(t, mem, Options{})
	_, err := r.Resolve("/project", "./link_a/foo.js")
	if err == nil {
		t.Fatal("expected a symlink cycle error")
	}
	rerr, ok := err.(*ResolveError)
	if !ok || rerr.Kind != KindSymlinkCycle {
		t.Errorf("err = %v, want KindSymlinkCycle", err)
	}
}

func TestResolveRestrictionsPrefix(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/node_modules/pkg/package.json", []byte(`{"name":"pkg","main":"index.js"}`))
	mem.WriteFile("/project/node_modules/pkg/index.js", nil)
	mem.WriteFile("/allowed/other.js", nil)

	r := mustResolver(t, mem, Options{Restrictions: Restrictions{Prefixes: []string{"/allowed"}}})
	_, err := r.Resolve("/project/src", "pkg")
	if err == nil {
		t.Fatal("expected a restriction error")
	}
	rerr, ok := err.(*ResolveError)
	if !ok || rerr.Kind != KindRestriction {
		t.Errorf("err = %v, want KindRestriction", err)
	}
}

func TestResolveBrowserFieldPerPackageAlias(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/node_modules/pkg/package.json", []byte(`{
		"name": "pkg",
		"main": "index.js",
		"browser": {
			"./index.js": "./browser.js",
			"./node-only.js": false
		}
	}`))
	mem.WriteFile("/project/node_modules/pkg/index.js", nil)
	mem.WriteFile("/project/node_modules/pkg/browser.js", nil)
	mem.WriteFile("/project/node_modules/pkg/node-only.js", nil)

	r := mustResolver(t, mem, Options{AliasFields: []string{"browser"}})
	res, err := r.Resolve("/project/src", "pkg/index.js")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != "/project/node_modules/pkg/browser.js" {
		t.Errorf("Path = %q, want the browser-field rewrite", res.Path)
	}

	res, err = r.Resolve("/project/src", "pkg/node-only.js")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Ignored {
		t.Errorf("expected the false-valued browser entry to resolve as Ignored")
	}
}

func TestResolveBuiltinModuleRejected(t *testing.T) {
	mem := fs.NewMemory()
	r := mustResolver(t, mem, Options{BuiltinModules: set.NewReadOnly("fs")})
	_, err := r.Resolve("/project/src", "fs")
	if err == nil {
		t.Fatal("expected an error for a builtin module")
	}
	rerr, ok := err.(*ResolveError)
	if !ok || rerr.Kind != KindBuiltin {
		t.Errorf("err = %v, want KindBuiltin", err)
	}
}

func TestResolveAliasRewriteToIgnored(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/src/index.js", nil)

	r := mustResolver(t, mem, Options{
		Alias: alias.Table{{Key: "shimmed-out", Targets: []string{}}},
	})
	res, err := r.Resolve("/project/src", "shimmed-out")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Ignored {
		t.Error("expected a `false`-valued alias to resolve as Ignored")
	}
}

func TestResolveFileDependenciesAndMissing(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/src/foo.js", nil)

	r := mustResolver(t, mem, Options{})
	res, err := r.Resolve("/project/src", "./foo")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(res.FileDependencies) == 0 {
		t.Error("expected at least one file dependency recorded")
	}
	found := false
	for _, d := range res.FileDependencies {
		if d == "/project/src/foo.js" {
			found = true
		}
	}
	if !found {
		t.Errorf("FileDependencies = %v, want it to include the resolved file", res.FileDependencies)
	}
}

func TestResolveMemoizedReflectsClearCache(t *testing.T) {
	mem := fs.NewMemory()
	r := mustResolver(t, mem, Options{})

	if _, err := r.ResolveMemoized("/project/src", "./foo"); err == nil {
		t.Fatal("expected a not-found error before the file exists")
	}

	mem.WriteFile("/project/src/foo.js", nil)
	r.ClearCache()

	res, err := r.ResolveMemoized("/project/src", "./foo")
	if err != nil {
		t.Fatalf("Resolve after ClearCache: %v", err)
	}
	if res.Path != "/project/src/foo.js" {
		t.Errorf("Path = %q", res.Path)
	}
}

func TestResolveConcurrent(t *testing.T) {
	mem := fs.NewMemory()
	for i := 0; i < 20; i++ {
		mem.WriteFile("/project/node_modules/pkg/package.json", []byte(`{"name":"pkg","main":"index.js"}`))
		mem.WriteFile("/project/node_modules/pkg/index.js", nil)
	}

	r := mustResolver(t, mem, Options{})
	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Resolve("/project/src", "pkg")
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Resolve failed: %v", err)
	}
}

func TestResolveCustomModulesDirectoryName(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/web_modules/pkg/package.json", []byte(`{"name":"pkg","main":"index.js"}`))
	mem.WriteFile("/project/web_modules/pkg/index.js", nil)

	r := mustResolver(t, mem, Options{Modules: []string{"web_modules"}})
	res, err := r.Resolve("/project/src", "pkg")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != "/project/web_modules/pkg/index.js" {
		t.Errorf("Path = %q, want the web_modules package entry", res.Path)
	}

	if _, err := r.Resolve("/project/src", "pkg2"); err == nil {
		t.Fatal("expected NotFound for a package that isn't under web_modules")
	}
}

func TestResolveBrowserFieldRewritesResolvedFilePath(t *testing.T) {
	mem := fs.NewMemory()
	// The browser map keys the file LOAD_AS_FILE actually lands on
	// ("./index.js", after extension fall-through) rather than the bare
	// "main" value ("index") or the requested specifier ("pkg").
	mem.WriteFile("/project/node_modules/pkg/package.json", []byte(`{
		"name": "pkg",
		"main": "index",
		"browser": {
			"./index.js": "./browser.js"
		}
	}`))
	mem.WriteFile("/project/node_modules/pkg/index.js", nil)
	mem.WriteFile("/project/node_modules/pkg/browser.js", nil)

	r := mustResolver(t, mem, Options{AliasFields: []string{"browser"}})
	res, err := r.Resolve("/project/src", "pkg")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != "/project/node_modules/pkg/browser.js" {
		t.Errorf("Path = %q, want the browser-field rewrite of the resolved main entry", res.Path)
	}
}

func TestResolveBrowserFieldRequiresAliasFieldsOptIn(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/node_modules/pkg/package.json", []byte(`{
		"name": "pkg",
		"main": "index.js",
		"browser": {
			"./index.js": "./browser.js"
		}
	}`))
	mem.WriteFile("/project/node_modules/pkg/index.js", nil)
	mem.WriteFile("/project/node_modules/pkg/browser.js", nil)

	r := mustResolver(t, mem, Options{})
	res, err := r.Resolve("/project/src", "pkg")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != "/project/node_modules/pkg/index.js" {
		t.Errorf("Path = %q, want the plain main entry since AliasFields does not include \"browser\"", res.Path)
	}
}

func TestResolveRestrictionsRegexp(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/node_modules/pkg/package.json", []byte(`{"name":"pkg","main":"index.js"}`))
	mem.WriteFile("/project/node_modules/pkg/index.js", nil)

	allowed := regexp.MustCompile(`\.mjs$`)
	r := mustResolver(t, mem, Options{Restrictions: Restrictions{Regexps: []*regexp.Regexp{allowed}}})
	_, err := r.Resolve("/project/src", "pkg")
	if err == nil {
		t.Fatal("expected a restriction error for a non-.mjs resolution")
	}
	rerr, ok := err.(*ResolveError)
	if !ok || rerr.Kind != KindRestriction {
		t.Errorf("err = %v, want KindRestriction", err)
	}
}

func TestResolveToContextSkipsLoadAsFile(t *testing.T) {
	mem := fs.NewMemory()
	// A file exactly named "dir" would normally win via LOAD_AS_FILE; with
	// ResolveToContext set, "./dir" must be treated purely as a directory
	// request and resolve through its index file instead.
	mem.WriteFile("/project/src/dir", []byte("not-a-directory"))
	mem.WriteFile("/project/src/dir/index.js", nil)

	r := mustResolver(t, mem, Options{ResolveToContext: true})
	res, err := r.Resolve("/project/src", "./dir")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Path != "/project/src/dir/index.js" {
		t.Errorf("Path = %q, want the directory's index file", res.Path)
	}
}

func TestResolveUsesTsExtensionVerbatim(t *testing.T) {
	mem := fs.NewMemory()
	mem.WriteFile("/project/src/a.ts", nil)

	r := mustResolver(t, mem, Options{Extensions: []string{".ts", ".js"}})
	res, err := r.Resolve("/project/src", "./a.ts")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.ResolvedUsingTsExtension {
		t.Error("expected ResolvedUsingTsExtension to be true for a verbatim .ts specifier")
	}

	res2, err := r.Resolve("/project/src", "./a")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res2.ResolvedUsingTsExtension {
		t.Error("expected ResolvedUsingTsExtension to be false when the extension was synthesized")
	}
}

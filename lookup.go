package resolve

import (
	"errors"
	"path"
	"strings"

	"github.com/esm-dev/resolve/fs"
	"github.com/esm-dev/resolve/internal/alias"
	"github.com/esm-dev/resolve/internal/npm"
	"github.com/esm-dev/resolve/internal/pnp"
	"github.com/esm-dev/resolve/pathutil"
)

// splitModuleSpecifier separates a bare "Module" specifier into its package
// name (including an "@scope/" prefix, if any) and the subpath requested
// within it ("." for the package root itself).
func splitModuleSpecifier(spec string) (pkgName, subpath string) {
	if strings.HasPrefix(spec, "@") {
		i := strings.IndexByte(spec, '/')
		if i < 0 {
			return spec, "."
		}
		j := strings.IndexByte(spec[i+1:], '/')
		if j < 0 {
			return spec, "."
		}
		return spec[:i+1+j], "." + spec[i+1+j:]
	}
	if i := strings.IndexByte(spec, '/'); i >= 0 {
		return spec[:i], "." + spec[i:]
	}
	return spec, "."
}

// resolveModule implements the bare-specifier branch of the pipeline: Yarn
// PnP when configured, a package's self-reference via its own "exports"
// field, and finally the classic upward node_modules walk.
func (r *Resolver) resolveModule(ctx *resolveCtx, spec string) (string, error) {
	pkgName, subpath := splitModuleSpecifier(spec)

	if !npm.ValidatePackageName(pkgName) {
		return "", newError(KindSpecifier, ctx.dir, ctx.rawSpecifier, errors.New("invalid package name: "+pkgName))
	}

	if r.opts.YarnPnP != nil {
		if p, ok, err := r.resolveViaPnP(ctx, pkgName, subpath); err != nil {
			return "", err
		} else if ok {
			return p, nil
		}
	}

	if p, ok, err := r.resolveSelfReference(ctx, pkgName, subpath); err != nil {
		return "", err
	} else if ok {
		return p, nil
	}

	return r.resolveViaNodeModules(ctx, pkgName, subpath)
}

func (r *Resolver) resolveViaPnP(ctx *resolveCtx, pkgName, subpath string) (string, bool, error) {
	pkg, err := pnp.Resolve(r.opts.YarnPnP, ctx.dir, pkgName)
	if err != nil {
		return "", false, nil
	}
	target, ok, err := r.loadPackageEntry(ctx, pkg.PackageLocation, pkgName, subpath)
	if err != nil || !ok {
		return "", ok, err
	}
	return target, true, nil
}

// resolveSelfReference implements Node's "a package may import its own
// exported subpaths by its own name" rule: walk up from dir looking for an
// enclosing package.json named pkgName, and if found resolve subpath
// against its own exports map.
func (r *Resolver) resolveSelfReference(ctx *resolveCtx, pkgName, subpath string) (string, bool, error) {
	h := ctx.gen.Value(ctx.dir)
	pkgAny, pkgDir, found, err := r.packageJSONAt(ctx, h)
	if err != nil {
		return "", false, err
	}
	if !found || pkgAny.Name != pkgName {
		return "", false, nil
	}
	exports := pkgAny.ExportsField(r.opts.ExportsFields)
	if exports == nil {
		return "", false, nil
	}
	targets, err := exportsResolveSubpath(exports, subpath, r.conditions())
	if err != nil {
		return "", false, translateExportsErr(err, ctx, subpath)
	}
	for _, t := range targets {
		full := pathutil.Join(pkgDir.Path(), t)
		if p, ok, err := r.loadAsFile(ctx, full); err != nil {
			return "", false, err
		} else if ok {
			return p, true, nil
		}
	}
	return "", false, nil
}

// resolveViaNodeModules walks from dir up through every ancestor directory,
// probing each configured Options.Modules name (default just
// "node_modules") in order, and returns the first package directory named
// pkgName that resolves. A package directory that yields no file does not
// stop the walk; the next modules directory and ancestor are still probed.
func (r *Resolver) resolveViaNodeModules(ctx *resolveCtx, pkgName, subpath string) (string, error) {
	cur := ctx.gen.Value(ctx.dir)
	for {
		for _, modulesDir := range r.opts.Modules {
			pkgRoot := pathutil.Join(cur.Path(), modulesDir, pkgName)
			nmHandle := ctx.gen.Value(pkgRoot)
			meta, err := nmHandle.Metadata()
			if err != nil && !fs.IsNotExist(err) {
				return "", newError(KindIOError, ctx.dir, ctx.rawSpecifier, err)
			}
			if err == nil && meta.IsDir {
				ctx.dependency(pkgRoot)
				if p, ok, err := r.loadPackageEntry(ctx, pkgRoot, pkgName, subpath); err != nil {
					return "", err
				} else if ok {
					return p, nil
				}
			} else {
				ctx.missing(pkgRoot)
			}
		}

		parent, ok := cur.Parent()
		if !ok {
			break
		}
		cur = parent
	}
	return "", newError(KindNotFound, ctx.dir, ctx.rawSpecifier, nil)
}

// loadPackageEntry resolves subpath within the package rooted at pkgRoot,
// preferring its "exports" map when present (which forbids reaching any
// path the map does not name) and otherwise falling back to a plain
// relative file/directory load with browser-field rewriting.
func (r *Resolver) loadPackageEntry(ctx *resolveCtx, pkgRoot, pkgName, subpath string) (string, bool, error) {
	pkgHandle := ctx.gen.Value(pkgRoot)
	pkg, _, found, err := r.packageJSONAt(ctx, pkgHandle)
	if err != nil {
		return "", false, err
	}

	var exports any
	if found {
		exports = pkg.ExportsField(r.opts.ExportsFields)
	}
	if exports != nil {
		targets, err := exportsResolveSubpath(exports, subpath, r.conditions())
		if err != nil {
			return "", false, translateExportsErr(err, ctx, subpath)
		}
		for _, t := range targets {
			full := pathutil.Join(pkgRoot, t)
			if p, ok, err := r.loadAsFile(ctx, full); err != nil {
				return "", false, err
			} else if ok {
				return p, true, nil
			}
		}
		return "", false, nil
	}

	// A package with no "exports" map falls back to plain LOAD_AS_FILE/
	// LOAD_AS_DIRECTORY against its main/index files, which is always
	// allowed to infer an extension regardless of the caller's own
	// FullySpecified requirement.
	ctx.fullySpecified = false

	rel := strings.TrimPrefix(subpath, ".")
	target := pathutil.Join(pkgRoot, rel)

	var browserTable alias.Table
	if found && len(pkg.Browser) > 0 && r.aliasFieldEnabled("browser") {
		browserTable = alias.BrowserTable(pkg.Browser)
		if candidates, ok := browserTable.Match(subpath); ok {
			return r.followAliasCandidates(ctx, pkgRoot, candidates)
		}
	}

	if subpath == "." {
		if p, ok, err := r.loadAsDirectory(ctx, pkgRoot); err != nil || ok {
			return r.rewriteResolvedViaBrowserField(ctx, browserTable, pkgRoot, p, ok, err)
		}
	}
	if p, ok, err := r.loadAsFile(ctx, target); err != nil || ok {
		return r.rewriteResolvedViaBrowserField(ctx, browserTable, pkgRoot, p, ok, err)
	}
	p, ok, err := r.loadAsDirectory(ctx, target)
	return r.rewriteResolvedViaBrowserField(ctx, browserTable, pkgRoot, p, ok, err)
}

// rewriteResolvedViaBrowserField applies the enclosing package's browser
// field a second time, now against the resolved absolute file path rather
// than the original subpath: a browser map may key off the file LOAD_AS_FILE
// actually landed on (e.g. after extension fall-through) instead of the bare
// specifier the caller wrote.
func (r *Resolver) rewriteResolvedViaBrowserField(ctx *resolveCtx, table alias.Table, pkgRoot, resolvedPath string, ok bool, err error) (string, bool, error) {
	if err != nil || !ok || len(table) == 0 {
		return resolvedPath, ok, err
	}
	rel, isRel := relativeWithinPackage(pkgRoot, resolvedPath)
	if !isRel {
		return resolvedPath, ok, nil
	}
	candidates, matched := table.Match(rel)
	if !matched {
		if ext := path.Ext(rel); ext != "" {
			candidates, matched = table.Match(strings.TrimSuffix(rel, ext))
		}
	}
	if !matched {
		return resolvedPath, ok, nil
	}
	return r.followAliasCandidates(ctx, pkgRoot, candidates)
}

// relativeWithinPackage reports the "./"-prefixed path of p relative to
// pkgRoot, the form browser field keys use for file entries.
func relativeWithinPackage(pkgRoot, p string) (string, bool) {
	if !strings.HasPrefix(p, pkgRoot+"/") {
		return "", false
	}
	return "./" + strings.TrimPrefix(p, pkgRoot+"/"), true
}

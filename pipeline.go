package resolve

import (
	"errors"
	"strings"

	"github.com/esm-dev/resolve/internal/alias"
	"github.com/esm-dev/resolve/internal/cache"
	"github.com/esm-dev/resolve/internal/exports"
	"github.com/esm-dev/resolve/pathutil"
	"github.com/esm-dev/resolve/specifier"
)

// ignoredPath is the sentinel Path value threaded through the pipeline when
// a `false` alias or browser-field entry matches; Resolve turns it into
// Resolution.Ignored rather than a real file path.
const ignoredPath = alias.Ignored

// resolveCtx carries the mutable, per-call bookkeeping the pipeline stages
// share: which cache generation to consult, and the dependency/probe trail
// a caller can use to invalidate a cached Resolution.
type resolveCtx struct {
	gen          *cache.Generation
	dir          string
	rawSpecifier string
	deps         []string
	missingDeps  []string

	// usedTsExtension is set when the winning candidate matched a
	// TypeScript source extension verbatim (the specifier already carried
	// it), as opposed to one synthesized by extension fall-through or
	// extensionAlias substitution.
	usedTsExtension bool

	// fullySpecified mirrors Options.FullySpecified for the specifier
	// currently being loaded: while true, loadAsFile may not append a
	// configured extension to a candidate that doesn't already exist
	// verbatim. Resolver-synthesized targets (an alias substitution, a
	// main-field/index fallback, a plain node_modules entry point) reset it
	// to false before being loaded, since only the caller's own specifier
	// text is required to be fully specified.
	fullySpecified bool
}

func (c *resolveCtx) dependency(path string) { c.deps = append(c.deps, path) }
func (c *resolveCtx) missing(path string)    { c.missingDeps = append(c.missingDeps, path) }

// Resolve runs the full resolution pipeline for rawSpecifier as requested
// from directory dir, in the manner of Node.js's require.resolve extended
// with the bundler-style options configured on r.
func (r *Resolver) Resolve(dir, rawSpecifier string) (res Resolution, err error) {
	gen := r.generation()
	ctx := &resolveCtx{gen: gen, dir: pathutil.Normalize(dir), rawSpecifier: rawSpecifier, fullySpecified: r.opts.FullySpecified}

	// A failed resolve still reports the files it read and probed.
	defer func() {
		if err != nil {
			res.FileDependencies = ctx.deps
			res.MissingDependencies = ctx.missingDeps
		}
	}()

	spec, err := specifier.Parse(rawSpecifier)
	if err != nil {
		return Resolution{}, newError(KindSpecifier, ctx.dir, rawSpecifier, err)
	}

	if r.opts.BuiltinModules.Has(spec.Path) {
		return Resolution{}, &ResolveError{Kind: KindBuiltin, Directory: ctx.dir, Specifier: rawSpecifier}
	}

	if spec.Kind == specifier.Module {
		if candidates, ok, err := r.aliasResolver().Rewrite(spec.Path); err != nil {
			return Resolution{}, newError(KindMatchedAliasNotFound, ctx.dir, rawSpecifier, err)
		} else if ok {
			path, ok, err := r.followAliasCandidates(ctx, ctx.dir, candidates)
			if err != nil {
				return Resolution{}, err
			}
			if ok {
				return r.finish(ctx, path, spec)
			}
			return Resolution{}, newError(KindMatchedAliasNotFound, ctx.dir, rawSpecifier, nil)
		}

		if targets, ok := r.tsconfigPaths(ctx, spec.Path); ok {
			for _, t := range targets {
				if path, ok, err := r.loadRelativeOrAbsolute(ctx, t); err != nil {
					return Resolution{}, err
				} else if ok {
					return r.finish(ctx, path, spec)
				}
			}
		}
	}

	path, err := r.dispatch(ctx, spec)
	if err != nil {
		if len(r.opts.Roots) > 0 {
			for _, root := range r.opts.Roots {
				rootCtx := &resolveCtx{gen: gen, dir: pathutil.Normalize(root), rawSpecifier: rawSpecifier, fullySpecified: r.opts.FullySpecified}
				if p, rootErr := r.dispatchUnderRoot(rootCtx, spec, rootCtx.dir); rootErr == nil {
					ctx.deps = append(ctx.deps, rootCtx.deps...)
					ctx.missingDeps = append(ctx.missingDeps, rootCtx.missingDeps...)
					return r.finish(ctx, p, spec)
				}
			}
		}
		if candidates, ok, fbErr := r.aliasResolver().RewriteFallback(rawSpecifier); fbErr == nil && ok {
			if p, ok, fbErr2 := r.followAliasCandidates(ctx, ctx.dir, candidates); fbErr2 == nil && ok {
				return r.finish(ctx, p, spec)
			}
		}
		return Resolution{}, err
	}
	return r.finish(ctx, path, spec)
}

func (r *Resolver) dispatch(ctx *resolveCtx, spec specifier.Specifier) (string, error) {
	switch spec.Kind {
	case specifier.Relative:
		full := pathutil.Join(ctx.dir, spec.Path)
		return r.loadRelativeOrAbsoluteRequired(ctx, full)
	case specifier.Absolute:
		// oxc's require_absolute: with PreferAbsolute (and not overridden by
		// PreferRelative), a leading-"/" specifier is first tried as a bare
		// module lookup before falling through to true filesystem-absolute
		// resolution.
		if !r.opts.PreferRelative && r.opts.PreferAbsolute {
			if p, err := r.resolveModule(ctx, strings.TrimLeft(spec.Path, "/\\")); err == nil {
				return p, nil
			}
		}
		return r.loadRelativeOrAbsoluteRequired(ctx, pathutil.Normalize(spec.Path))
	case specifier.Hash:
		return r.resolveImportsHash(ctx, spec.Path)
	default: // Module
		// oxc's require_bare: with PreferRelative, a bare specifier is first
		// tried as if it were relative to ctx.dir before the ordinary
		// self-reference/node_modules lookup.
		if r.opts.PreferRelative {
			full := pathutil.Join(ctx.dir, spec.Path)
			if p, ok, err := r.loadRelativeOrAbsolute(ctx, full); err == nil && ok {
				return p, nil
			}
		}
		return r.resolveModule(ctx, spec.Path)
	}
}

// dispatchUnderRoot re-runs dispatch for a retry against a configured root
// directory. A Relative or Module specifier needs no special handling:
// ctx.dir is the root here, so dispatch resolves it from the root. An
// Absolute specifier (one starting with `/`) is otherwise immune to roots,
// since it never consults ctx.dir; here its leading separator is trimmed
// and the remainder is joined under root instead, in the manner of oxc's
// require_absolute.
func (r *Resolver) dispatchUnderRoot(ctx *resolveCtx, spec specifier.Specifier, root string) (string, error) {
	if spec.Kind == specifier.Absolute {
		trimmed := strings.TrimLeft(spec.Path, "/\\")
		full := pathutil.Join(root, trimmed)
		return r.loadRelativeOrAbsoluteRequired(ctx, full)
	}
	return r.dispatch(ctx, spec)
}

func (r *Resolver) loadRelativeOrAbsolute(ctx *resolveCtx, p string) (string, bool, error) {
	if pathutil.HasTrailingSeparator(p) {
		return r.loadAsDirectory(ctx, strings.TrimRight(p, "/\\"))
	}
	if r.opts.ResolveToContext {
		return r.loadAsDirectory(ctx, p)
	}
	if path, ok, err := r.loadAsFile(ctx, p); err != nil || ok {
		return path, ok, err
	}
	return r.loadAsDirectory(ctx, p)
}

func (r *Resolver) loadRelativeOrAbsoluteRequired(ctx *resolveCtx, p string) (string, error) {
	path, ok, err := r.loadRelativeOrAbsolute(ctx, p)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", newError(KindNotFound, ctx.dir, ctx.rawSpecifier, nil)
	}
	return path, nil
}

// resolveImportsHash implements PACKAGE_IMPORTS_RESOLVE: a `#`-prefixed
// specifier resolves against the nearest enclosing package.json's
// "imports" field, never falling back to a node_modules lookup.
func (r *Resolver) resolveImportsHash(ctx *resolveCtx, hashSpec string) (string, error) {
	h := ctx.gen.Value(ctx.dir)
	pkg, pkgDir, found, err := r.packageJSONAt(ctx, h)
	if err != nil {
		return "", err
	}
	var imports any
	if found {
		imports = pkg.ImportsField(r.opts.ImportsFields)
	}
	if imports == nil {
		return "", &ResolveError{Kind: KindPackageImportNotDefined, Directory: ctx.dir, Specifier: hashSpec}
	}
	targets, err := exportsResolveSubpath(imports, hashSpec, r.conditions())
	if err != nil {
		return "", translateExportsErr(err, ctx, hashSpec)
	}
	for _, t := range targets {
		full := pathutil.Join(pkgDir.Path(), t)
		if path, ok, err := r.loadAsFile(ctx, full); err != nil {
			return "", err
		} else if ok {
			return path, nil
		}
	}
	return "", &ResolveError{Kind: KindPackageImportNotDefined, Directory: ctx.dir, Specifier: hashSpec}
}

// tsconfigPaths consults the tsconfig.json governing dir, if any, for a
// compilerOptions.paths match against a bare module specifier.
func (r *Resolver) tsconfigPaths(ctx *resolveCtx, moduleSpec string) ([]string, bool) {
	cfg, baseDir, ok := r.tsconfigFor(ctx)
	if !ok {
		return nil, false
	}
	subs := cfg.Match(moduleSpec)
	if subs == nil {
		return nil, false
	}
	base := cfg.CompilerOptions.BaseURL
	if base == "" {
		base = baseDir
	} else if base[0] != '/' {
		base = pathutil.Join(baseDir, base)
	}

	out := make([]string, len(subs))
	for i, s := range subs {
		// A substitution already anchored via "${configDir}" is absolute;
		// only a bare relative substitution is joined against baseUrl.
		if s != "" && s[0] == '/' {
			out[i] = pathutil.Normalize(s)
		} else {
			out[i] = pathutil.Join(base, s)
		}
	}
	return out, true
}

// followAliasCandidates tries each rewritten candidate string in turn,
// classifying it fresh: relative/absolute candidates are loaded from
// baseDir, module candidates recurse through the ordinary module lookup, and
// the `false`-alias sentinel short-circuits to "ignored".
func (r *Resolver) followAliasCandidates(ctx *resolveCtx, baseDir string, candidates []string) (string, bool, error) {
	for _, c := range candidates {
		if c == ignoredPath {
			return ignoredPath, true, nil
		}
		spec, err := specifier.Parse(c)
		if err != nil {
			continue
		}
		// An alias substitution is a resolver-synthesized target, not the
		// caller's own specifier text, so it is never held to FullySpecified.
		ctx.fullySpecified = false
		switch spec.Kind {
		case specifier.Relative:
			if p, ok, err := r.loadRelativeOrAbsolute(ctx, pathutil.Join(baseDir, spec.Path)); err != nil {
				return "", false, err
			} else if ok {
				return p, true, nil
			}
		case specifier.Absolute:
			if p, ok, err := r.loadRelativeOrAbsolute(ctx, pathutil.Normalize(spec.Path)); err != nil {
				return "", false, err
			} else if ok {
				return p, true, nil
			}
		default:
			subCtx := &resolveCtx{gen: ctx.gen, dir: baseDir, rawSpecifier: c}
			if p, err := r.resolveModule(subCtx, spec.Path); err == nil {
				ctx.deps = append(ctx.deps, subCtx.deps...)
				ctx.missingDeps = append(ctx.missingDeps, subCtx.missingDeps...)
				return p, true, nil
			}
		}
	}
	return "", false, nil
}

// packageJSONAt returns the parsed PackageJSON governing h, using the
// generation's memoized walk-up and asserting the cached value's concrete
// type back from cache.PackageLoader's `any` return.
func (r *Resolver) packageJSONAt(ctx *resolveCtx, h cache.Handle) (*PackageJSON, cache.Handle, bool, error) {
	val, dir, found, err := h.PackageJSON()
	if err != nil {
		return nil, cache.Handle{}, false, newError(KindIOError, ctx.dir, ctx.rawSpecifier, err)
	}
	if !found {
		return nil, cache.Handle{}, false, nil
	}
	pkg, ok := val.(*PackageJSON)
	if !ok {
		return nil, cache.Handle{}, false, newError(KindInvalidPackageConfig, ctx.dir, ctx.rawSpecifier, nil)
	}
	ctx.dependency(pathutil.Join(dir.Path(), "package.json"))
	return pkg, dir, true, nil
}

func (r *Resolver) conditions() exports.Conditions {
	return exports.NewConditions(r.opts.ConditionNames)
}

// exportsResolveSubpath adapts exports.Resolve to accept the raw `any`
// value returned by PackageJSON.ExportsField/ImportsField (string,
// ordered.Object, or []any, mirroring the shapes internal/exports.Resolve
// itself accepts).
func exportsResolveSubpath(value any, subpath string, conditions exports.Conditions) ([]string, error) {
	return exports.Resolve(value, subpath, conditions)
}

func translateExportsErr(err error, ctx *resolveCtx, subpath string) error {
	var notExported *exports.ErrNotExported
	var invalidTarget *exports.ErrInvalidTarget
	var builtin *exports.ErrBuiltin
	switch {
	case errors.As(err, &notExported):
		kind := KindPackagePathNotExported
		if strings.HasPrefix(subpath, "#") {
			kind = KindPackageImportNotDefined
		}
		return &ResolveError{Kind: kind, Directory: ctx.dir, Specifier: ctx.rawSpecifier, Conditions: notExported.Conditions}
	case errors.As(err, &invalidTarget):
		return &ResolveError{Kind: KindInvalidPackageTarget, Directory: ctx.dir, Specifier: ctx.rawSpecifier}
	case errors.As(err, &builtin):
		return &ResolveError{Kind: KindBuiltin, Directory: ctx.dir, Specifier: ctx.rawSpecifier, PrefixedWithNode: builtin.PrefixedWithNode}
	default:
		return newError(KindInvalidPackageConfig, ctx.dir, ctx.rawSpecifier, err)
	}
}

// finish applies restrictions, computes the module type, and reattaches the
// specifier's query/fragment to produce the final Resolution.
func (r *Resolver) finish(ctx *resolveCtx, path string, spec specifier.Specifier) (Resolution, error) {
	if path == ignoredPath {
		return Resolution{Ignored: true, Query: spec.Query, Fragment: spec.Fragment}, nil
	}

	if !r.opts.Restrictions.allows(path) {
		return Resolution{}, &ResolveError{Kind: KindRestriction, Directory: ctx.dir, Specifier: ctx.rawSpecifier, Tried: []string{path}}
	}

	if r.opts.symlinksEnabled() {
		canon, err := ctx.gen.Value(path).Canonicalize()
		switch {
		case err == nil:
			path = canon.Path()
		case errors.Is(err, cache.ErrSymlinkCycle):
			return Resolution{}, &ResolveError{Kind: KindSymlinkCycle, Directory: ctx.dir, Specifier: ctx.rawSpecifier, Tried: []string{path}, Cause: err}
		}
		// any other Canonicalize failure (e.g. a broken link segment that
		// no longer exists) is tolerated and the uncanonicalized path used.
	}

	h := ctx.gen.Value(dirName(path))
	pkg, _, _, err := r.packageJSONAt(ctx, h)
	if err != nil {
		return Resolution{}, err
	}
	packageType := ""
	if pkg != nil {
		packageType = pkg.Type
	}

	return Resolution{
		Path:                     path,
		Query:                    spec.Query,
		Fragment:                 spec.Fragment,
		PackageJSON:              pkg,
		ModuleType:               classifyModuleType(path, packageType),
		FileDependencies:         ctx.deps,
		MissingDependencies:      ctx.missingDeps,
		ResolvedUsingTsExtension: ctx.usedTsExtension,
	}, nil
}

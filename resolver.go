package resolve

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/dgraph-io/ristretto"

	"github.com/esm-dev/resolve/fs"
	"github.com/esm-dev/resolve/internal/alias"
	"github.com/esm-dev/resolve/internal/cache"
	"github.com/esm-dev/resolve/internal/tsconfig"
	"github.com/esm-dev/resolve/pathutil"
)

// Resolver is a configured, reusable module resolver. It owns a path cache
// generation and a small secondary memo of full (dir, specifier) results;
// both are safe for concurrent use, so a single Resolver is normally
// shared across every file in a build.
type Resolver struct {
	opts Options
	fsys fs.FS

	gen atomic.Pointer[cache.Generation]

	memo *ristretto.Cache
}

// New builds a Resolver over fsys with opts, filling any zero-valued field
// with the documented default.
func New(fsys fs.FS, opts Options) (*Resolver, error) {
	r := &Resolver{opts: NewOptions(opts), fsys: fsys}
	r.gen.Store(cache.NewGeneration(fsys, packageJSONLoader))

	memo, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6,
		MaxCost:     1 << 24,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve: building memo cache: %w", err)
	}
	r.memo = memo
	return r, nil
}

// CloneWithOptions returns a new Resolver sharing this one's filesystem and
// path cache generation, but governed by newOpts. Because the cache
// generation is shared, package.json and symlink probes already performed
// by r are reused instead of re-read.
func (r *Resolver) CloneWithOptions(newOpts Options) *Resolver {
	clone := &Resolver{opts: NewOptions(newOpts), fsys: r.fsys, memo: r.memo}
	clone.gen.Store(r.generation())
	return clone
}

// ClearCache drops every memoized filesystem probe, package.json parse, and
// tsconfig parse. Handles obtained before the call keep working against
// their original generation; Go's garbage collector reclaims it once the
// last such Handle is dropped.
func (r *Resolver) ClearCache() {
	prev := r.generation()
	next := cache.NewGeneration(r.fsys, packageJSONLoader)
	r.gen.Store(next)
	r.memo.Clear()
	r.memo.Wait()
	if r.opts.Logger != nil {
		r.opts.Logger.Debugf("resolve: cache cleared, generation %s -> %s", prev.ID(), next.ID())
	}
}

func (r *Resolver) generation() *cache.Generation { return r.gen.Load() }

func (r *Resolver) aliasResolver() alias.Resolver {
	return alias.Resolver{Alias: r.opts.Alias, Fallback: r.opts.Fallback, MaxDepth: r.opts.RecursionLimit}
}

func packageJSONLoader(fsys fs.FS, path string) (any, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePackageJSON(pathutil.Normalize(dirName(path)), data)
}

func dirName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return "/"
}

// memoKey builds the secondary-cache key for a (generation, dir, specifier)
// triple; the generation id namespaces it so ClearCache invalidates every
// prior entry without an explicit sweep.
func (r *Resolver) memoKey(gen *cache.Generation, dir, specifier string) string {
	return gen.ID().String() + "\x00" + dir + "\x00" + specifier
}

// ResolveMemoized behaves like Resolve, but consults and populates the
// resolver's ristretto-backed memo first. Only successful resolutions are
// cached; a resolve failure is always retried against the filesystem, since
// a missing file becoming present is the common case an LRU-style memo
// should not paper over.
func (r *Resolver) ResolveMemoized(dir, spec string) (Resolution, error) {
	gen := r.generation()
	key := r.memoKey(gen, dir, spec)
	if v, ok := r.memo.Get(key); ok {
		return v.(Resolution), nil
	}
	res, err := r.Resolve(dir, spec)
	if err != nil {
		return Resolution{}, err
	}
	r.memo.Set(key, res, int64(len(res.Path)+len(res.Query)+len(res.Fragment)+64))
	r.memo.Wait()
	return res, nil
}

// ResolveFile resolves spec as it would appear inside file: the same as
// Resolve from file's containing directory, except that tsconfig auto
// discovery (when Options.Tsconfig.ConfigFile is unset) walks up from
// file's directory rather than a directory the caller must compute itself.
func (r *Resolver) ResolveFile(file, spec string) (Resolution, error) {
	dir := dirName(pathutil.Normalize(file))
	return r.Resolve(dir, spec)
}

// ResolveTsconfig loads and fully materializes the tsconfig.json (or
// jsconfig.json) at path, following its `extends` chain. The result is
// memoized per path within the current cache generation.
func (r *Resolver) ResolveTsconfig(path string) (*tsconfig.Config, error) {
	gen := r.generation()
	val, err := gen.LoadTsconfigFile(path, func() (any, error) {
		return r.loadTsconfigChain(path)
	})
	if err != nil {
		var selfRef *tsconfig.ErrSelfReference
		if errors.As(err, &selfRef) {
			kind := KindTsconfigCircularExtends
			if selfRef.Path == path {
				kind = KindTsconfigSelfReference
			}
			return nil, newError(kind, dirName(path), path, err)
		}
		return nil, err
	}
	return val.(*tsconfig.Config), nil
}

func (r *Resolver) loadTsconfigChain(path string) (*tsconfig.Config, error) {
	loadFile := func(p string) (tsconfig.RawFile, error) {
		data, err := r.fsys.ReadFile(p)
		if err != nil {
			return tsconfig.RawFile{}, err
		}
		return tsconfig.DecodeRaw(data)
	}
	resolveExtends := func(fromDir, spec string) (string, error) {
		return r.resolveTsconfigExtends(fromDir, spec)
	}
	return tsconfig.Load(path, loadFile, resolveExtends)
}

// resolveTsconfigExtends locates the tsconfig.json file named by an
// `extends` entry: a relative path is joined and probed with and without a
// ".json" suffix; a bare specifier is looked up as an installed package,
// defaulting to "tsconfig.json" inside it when no subpath is given.
func (r *Resolver) resolveTsconfigExtends(fromDir, spec string) (string, error) {
	if strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/") {
		candidate := pathutil.Join(fromDir, spec)
		for _, p := range []string{candidate, candidate + ".json"} {
			if h := r.generation().Value(p); fileExists(h) {
				return p, nil
			}
		}
		return "", newError(KindTsconfigNotFound, fromDir, spec, nil)
	}

	pkgName, subpath := splitModuleSpecifier(spec)
	if subpath == "." {
		subpath = "./tsconfig.json"
	}
	ctx := &resolveCtx{gen: r.generation(), dir: fromDir, rawSpecifier: spec}
	cur := ctx.gen.Value(fromDir)
	for {
		pkgRoot := pathutil.Join(cur.Path(), "node_modules", pkgName)
		candidate := pathutil.Join(pkgRoot, strings.TrimPrefix(subpath, "."))
		if h := ctx.gen.Value(candidate); fileExists(h) {
			return candidate, nil
		}
		parent, ok := cur.Parent()
		if !ok {
			break
		}
		cur = parent
	}
	return "", newError(KindTsconfigNotFound, fromDir, spec, nil)
}

func fileExists(h cache.Handle) bool {
	meta, err := h.Metadata()
	return err == nil && meta.IsFile
}

// tsconfigFor returns the materialized tsconfig.json governing ctx.dir and
// the directory `paths` substitutions are relative to, or ok=false when no
// tsconfig applies (either none is configured/discoverable, or References
// scoping excludes ctx.dir — reference-aware scoping is left to the
// TsconfigReferencesList caller, who names the active project directly via
// Options.Tsconfig.ConfigFile).
func (r *Resolver) tsconfigFor(ctx *resolveCtx) (*tsconfig.Config, string, bool) {
	if r.opts.Tsconfig.ConfigFile != "" {
		cfg, err := r.ResolveTsconfig(r.opts.Tsconfig.ConfigFile)
		if err != nil {
			return nil, "", false
		}
		return cfg, dirName(cfg.Path), true
	}

	cur := ctx.gen.Value(ctx.dir)
	if cur.InsideNodeModules() {
		return nil, "", false
	}
	for {
		for _, name := range []string{"tsconfig.json", "jsconfig.json"} {
			candidate := pathutil.Join(cur.Path(), name)
			if h := ctx.gen.Value(candidate); fileExists(h) {
				cfg, err := r.ResolveTsconfig(candidate)
				if err != nil {
					return nil, "", false
				}
				return cfg, cur.Path(), true
			}
		}
		if cur.IsNodeModules() {
			return nil, "", false
		}
		parent, ok := cur.Parent()
		if !ok {
			return nil, "", false
		}
		cur = parent
	}
}

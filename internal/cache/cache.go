// Package cache implements the resolver's path cache (spec component C5):
// a generational, concurrently-readable interning table that maps absolute
// paths to lightweight handles, and memoizes the expensive derived facts a
// resolve call repeatedly needs about those paths — symlink canonicalization,
// the nearest enclosing package.json, and a per-file tsconfig.json parse.
//
// A Generation is an arena: paths are appended once, never removed, and
// referenced afterward by integer index through a Handle. Clearing the
// cache simply means building a fresh Generation and letting Go's garbage
// collector reclaim the old one once every Handle referencing it has gone
// out of scope — there is no manual refcounting.
package cache

import (
	"errors"
	"path"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/xid"

	"github.com/esm-dev/resolve/fs"
	gosync "github.com/ije/gox/sync"
)

// ErrSymlinkCycle is returned by Handle.Canonicalize when a path's symlink
// chain loops back on itself instead of terminating at a real file.
var ErrSymlinkCycle = errors.New("cache: symlink cycle detected")

// PackageLoader parses the package.json at path, returning (nil, fs.ErrNotExist)
// when the file does not exist.
type PackageLoader func(fsys fs.FS, path string) (any, error)

// node is one entry in a Generation's path arena.
type node struct {
	path               string
	hash               uint64
	parent             int32 // -1 for a filesystem root
	isNodeModules      bool
	insideNodeModules  bool

	metaOnce sync.Once
	meta     fs.Metadata
	metaErr  error

	symOnce sync.Once
	symMeta fs.Metadata
	symErr  error

	canonOnce sync.Once
	canonIdx  int32
	canonErr  error

	pkgOnce  sync.Once
	pkgVal   any
	pkgIdx   int32
	pkgFound bool
	pkgErr   error
}

// Generation is one snapshot of the path cache. It is safe for concurrent
// use; node appends are serialized by a short-held lock, reads are
// lock-free once a path has been interned.
type Generation struct {
	id         xid.ID
	fsys       fs.FS
	pkgLoader  PackageLoader

	mu    sync.Mutex
	nodes []*node
	index sync.Map // string path -> int32
	keyed gosync.KeyedMutex

	tsMu    sync.Mutex
	tsFiles map[string]*tsconfigSlot
	tsKeyed gosync.KeyedMutex
}

type tsconfigSlot struct {
	once sync.Once
	val  any
	err  error
}

// NewGeneration builds an empty path cache backed by fsys. pkgLoader parses
// a package.json file; it is invoked at most once per directory for the
// lifetime of the generation.
func NewGeneration(fsys fs.FS, pkgLoader PackageLoader) *Generation {
	return &Generation{
		id:        xid.New(),
		fsys:      fsys,
		pkgLoader: pkgLoader,
		tsFiles:   make(map[string]*tsconfigSlot),
	}
}

// ID identifies this generation, e.g. for cache-key namespacing in a
// secondary memo.
func (g *Generation) ID() xid.ID { return g.id }

// FS returns the filesystem capability this generation was built with.
func (g *Generation) FS() fs.FS { return g.fsys }

func (g *Generation) nodeAt(idx int32) *node { return g.nodes[idx] }

// Handle is a shared, interned reference to a path within one Generation.
// Handles from different Generations are never equal, even for the same
// path string.
type Handle struct {
	g   *Generation
	idx int32
}

// IsValid reports whether h refers to an interned path.
func (h Handle) IsValid() bool { return h.g != nil }

// Path returns the handle's absolute path.
func (h Handle) Path() string {
	if h.g == nil {
		return ""
	}
	return h.g.nodeAt(h.idx).path
}

// IsNodeModules reports whether the handle's final path component is
// exactly "node_modules".
func (h Handle) IsNodeModules() bool { return h.g.nodeAt(h.idx).isNodeModules }

// InsideNodeModules reports whether the handle is a node_modules directory
// or has one as an ancestor.
func (h Handle) InsideNodeModules() bool { return h.g.nodeAt(h.idx).insideNodeModules }

// Parent returns the handle for the path's parent directory, or ok=false at
// a filesystem root.
func (h Handle) Parent() (Handle, bool) {
	n := h.g.nodeAt(h.idx)
	if n.parent < 0 {
		return Handle{}, false
	}
	return Handle{h.g, n.parent}, true
}

// Generation returns the cache generation the handle belongs to.
func (h Handle) Generation() *Generation { return h.g }

// Value interns path, returning its Handle. Value is idempotent: the same
// path always returns a Handle with the same index within one generation.
// It is lock-free on a hit and serializes only the append of a new node,
// via a per-path keyed mutex, on a miss.
func (g *Generation) Value(p string) Handle {
	if idx, ok := g.index.Load(p); ok {
		return Handle{g, idx.(int32)}
	}

	unlock := g.keyed.Lock(p)
	defer unlock()

	if idx, ok := g.index.Load(p); ok {
		return Handle{g, idx.(int32)}
	}

	var parentIdx int32 = -1
	var parentInsideNM bool
	if parentPath := dirOf(p); parentPath != "" && parentPath != p {
		parentHandle := g.Value(parentPath)
		parentIdx = parentHandle.idx
		parentInsideNM = g.nodeAt(parentIdx).insideNodeModules || g.nodeAt(parentIdx).isNodeModules
	}

	base := baseOf(p)
	n := &node{
		path:          p,
		hash:          xxhash.Sum64String(p),
		parent:        parentIdx,
		isNodeModules: base == "node_modules",
	}
	n.insideNodeModules = n.isNodeModules || parentInsideNM

	g.mu.Lock()
	idx := int32(len(g.nodes))
	g.nodes = append(g.nodes, n)
	g.mu.Unlock()

	g.index.Store(p, idx)
	return Handle{g, idx}
}

// Metadata stats the handle's path, following a trailing symlink, and
// memoizes the result for the generation's lifetime.
func (h Handle) Metadata() (fs.Metadata, error) {
	n := h.g.nodeAt(h.idx)
	n.metaOnce.Do(func() {
		n.meta, n.metaErr = h.g.fsys.Metadata(n.path)
	})
	return n.meta, n.metaErr
}

// SymlinkMetadata stats the handle's path without following a trailing
// symlink.
func (h Handle) SymlinkMetadata() (fs.Metadata, error) {
	n := h.g.nodeAt(h.idx)
	n.symOnce.Do(func() {
		n.symMeta, n.symErr = h.g.fsys.SymlinkMetadata(n.path)
	})
	return n.symMeta, n.symErr
}

// Canonicalize returns a Handle whose path contains no symlink segments.
// The parent chain is walked lazily, querying read_link only for segments
// that are themselves symlinks, and the result is memoized per handle. A
// cycle of symlinks is reported as an error.
func (h Handle) Canonicalize() (Handle, error) {
	n := h.g.nodeAt(h.idx)
	n.canonOnce.Do(func() {
		resolved, err := h.g.canonicalizePath(n.path)
		if err != nil {
			n.canonErr = err
			return
		}
		n.canonIdx = h.g.Value(resolved).idx
	})
	if n.canonErr != nil {
		return Handle{}, n.canonErr
	}
	return Handle{h.g, n.canonIdx}, nil
}

func (g *Generation) canonicalizePath(p string) (string, error) {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	cur := "/"
	visited := map[string]bool{}
	for _, seg := range segs {
		if seg == "" {
			continue
		}
		cur = joinUnix(cur, seg)
		for {
			meta, err := g.fsys.SymlinkMetadata(cur)
			if err != nil {
				return "", err
			}
			if !meta.IsSymlink {
				break
			}
			if visited[cur] {
				return "", ErrSymlinkCycle
			}
			visited[cur] = true
			target, err := g.fsys.ReadLink(cur)
			if err != nil {
				return "", err
			}
			if !strings.HasPrefix(target, "/") {
				target = joinUnix(dirOf(cur), target)
			}
			cur = path.Clean(target)
		}
	}
	return cur, nil
}

// PackageJSON returns the nearest enclosing package.json at or above h,
// without crossing a node_modules boundary: the walk stops (without
// matching) as soon as it would step from inside a package out through
// its containing node_modules directory. found is false, with err nil,
// when no enclosing package.json exists.
func (h Handle) PackageJSON() (val any, dir Handle, found bool, err error) {
	n := h.g.nodeAt(h.idx)
	n.pkgOnce.Do(func() {
		cur := h
		for {
			curNode := h.g.nodeAt(cur.idx)
			if curNode.isNodeModules {
				return
			}
			pkgPath := joinUnix(curNode.path, "package.json")
			v, loadErr := h.g.pkgLoader(h.g.fsys, pkgPath)
			if loadErr == nil {
				n.pkgVal = v
				n.pkgIdx = cur.idx
				n.pkgFound = true
				return
			}
			if !fs.IsNotExist(loadErr) {
				n.pkgErr = loadErr
				return
			}
			parent, ok := cur.Parent()
			if !ok {
				return
			}
			cur = parent
		}
	})
	if n.pkgErr != nil {
		return nil, Handle{}, false, n.pkgErr
	}
	if !n.pkgFound {
		return nil, Handle{}, false, nil
	}
	return n.pkgVal, Handle{h.g, n.pkgIdx}, true, nil
}

// LoadTsconfigFile runs load at most once per absolute config file path for
// the generation's lifetime and memoizes its result. Resolver.ResolveTsconfig
// stores the fully materialized config here (extends chain already merged);
// the files of an extends chain are read by the tsconfig loader itself and
// are not memoized individually.
func (g *Generation) LoadTsconfigFile(path string, load func() (any, error)) (any, error) {
	g.tsMu.Lock()
	slot, ok := g.tsFiles[path]
	if !ok {
		slot = &tsconfigSlot{}
		g.tsFiles[path] = slot
	}
	g.tsMu.Unlock()

	slot.once.Do(func() {
		slot.val, slot.err = load()
	})
	return slot.val, slot.err
}

func dirOf(p string) string {
	d := path.Dir(p)
	if d == "." {
		return ""
	}
	return d
}

func baseOf(p string) string {
	return path.Base(p)
}

func joinUnix(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

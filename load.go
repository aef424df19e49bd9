package resolve

import (
	"strings"

	"github.com/esm-dev/resolve/fs"
	"github.com/esm-dev/resolve/internal/alias"
	"github.com/esm-dev/resolve/pathutil"
)

// loadAsFile implements LOAD_AS_FILE: try candidatePath verbatim (subject to
// enforce_extension and extensionAlias), then with each configured
// extension appended.
func (r *Resolver) loadAsFile(ctx *resolveCtx, candidatePath string) (string, bool, error) {
	if ext, ok := extensionOf(candidatePath, r.opts.ExtensionAlias); ok {
		subs := r.opts.ExtensionAlias.Substitutes(ext)
		if len(subs) > 0 {
			base := strings.TrimSuffix(candidatePath, ext)
			var tried []string
			for _, sub := range subs {
				if p, ok, err := r.tryFile(ctx, base+sub); err != nil {
					return "", false, err
				} else if ok {
					return p, true, nil
				} else {
					tried = append(tried, base+sub)
				}
			}
			return "", false, &alias.ErrExtensionAlias{Extension: ext, Tried: tried}
		}
	}

	if p, ok, err := r.tryFile(ctx, candidatePath); err != nil || ok {
		if ok && isTsExtension(candidatePath) {
			ctx.usedTsExtension = true
		}
		return p, ok, err
	}

	// enforceExtension, or a caller-configured FullySpecified requirement
	// still in force for this candidate, means the specifier must already be
	// fully specified: no extension is ever appended on its behalf.
	if r.opts.enforceExtension() || ctx.fullySpecified {
		return "", false, nil
	}

	for _, ext := range r.opts.Extensions {
		if ext == "" {
			continue
		}
		if p, ok, err := r.tryFile(ctx, candidatePath+ext); err != nil {
			return "", false, err
		} else if ok {
			return p, true, nil
		}
	}
	return "", false, nil
}

// tryFile stats candidatePath and reports whether it is a regular file
// (following a trailing symlink), recording the probe either way.
func (r *Resolver) tryFile(ctx *resolveCtx, candidatePath string) (string, bool, error) {
	h := ctx.gen.Value(candidatePath)
	meta, err := h.Metadata()
	if fs.IsNotExist(err) {
		ctx.missing(candidatePath)
		return "", false, nil
	}
	if err != nil {
		return "", false, newError(KindIOError, ctx.dir, ctx.rawSpecifier, err)
	}
	if !meta.IsFile {
		return "", false, nil
	}
	ctx.dependency(candidatePath)
	return candidatePath, true, nil
}

// isTsExtension reports whether p ends in one of the TypeScript source
// extensions. Used only to set Resolution.ResolvedUsingTsExtension; it does
// not affect resolution behavior.
func isTsExtension(p string) bool {
	for _, ext := range [...]string{".ts", ".tsx", ".mts", ".cts"} {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

func extensionOf(p string, table alias.ExtensionAlias) (string, bool) {
	if table == nil {
		return "", false
	}
	for ext := range table {
		if strings.HasSuffix(p, ext) {
			return ext, true
		}
	}
	return "", false
}

// loadAsDirectory implements LOAD_AS_DIRECTORY: consult the directory's
// package.json exports/browser/main fields in order, falling back to
// LOAD_INDEX over MainFiles.
func (r *Resolver) loadAsDirectory(ctx *resolveCtx, dirPath string) (string, bool, error) {
	dirHandle := ctx.gen.Value(dirPath)
	pkg, pkgDir, found, err := r.packageJSONAt(ctx, dirHandle)
	if err != nil {
		return "", false, err
	}

	if found && pkgDir.Path() == dirPath {
		exports := pkg.ExportsField(r.opts.ExportsFields)
		if r.opts.AllowPackageExportsInDirectoryResolve && exports != nil {
			targets, resErr := exportsResolveSubpath(exports, ".", r.conditions())
			if resErr == nil {
				for _, t := range targets {
					full := pathutil.Join(dirPath, t)
					if p, ok, err := r.loadAsFile(ctx, full); err != nil {
						return "", false, err
					} else if ok {
						return p, true, nil
					}
				}
			}
		}

		for _, field := range r.opts.MainFields {
			main := mainFieldValue(pkg, field)
			if main == "" {
				continue
			}
			candidate := pathutil.Join(dirPath, main)
			ctx.fullySpecified = false
			if p, ok, err := r.loadAsFile(ctx, candidate); err != nil {
				return "", false, err
			} else if ok {
				return p, true, nil
			}
			if p, ok, err := r.loadAsDirectory(ctx, candidate); err != nil {
				return "", false, err
			} else if ok {
				return p, true, nil
			}
		}
	}

	for _, name := range r.opts.MainFiles {
		ctx.fullySpecified = false
		if p, ok, err := r.loadAsFile(ctx, pathutil.Join(dirPath, name)); err != nil {
			return "", false, err
		} else if ok {
			return p, true, nil
		}
	}
	return "", false, nil
}

func mainFieldValue(pkg *PackageJSON, field string) string {
	switch field {
	case "main":
		return pkg.Main
	case "module":
		return pkg.Module
	case "browser":
		return pkg.BrowserMain
	default:
		return ""
	}
}

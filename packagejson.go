package resolve

import (
	"encoding/json"
	"strings"

	"github.com/esm-dev/resolve/internal/jsonc"
	"github.com/esm-dev/resolve/internal/ordered"
)

// PackageJSON is a parsed package.json descriptor. It is immutable once
// constructed and shared among every path it encloses — including across
// Resolver clones with differing Options, since the underlying cache
// generation memoizes one parse per path regardless of which Resolver asked
// for it. Options-dependent fields (exports/imports field-name probing) are
// therefore not baked in at parse time; ExportsField/ImportsField resolve
// them against Raw using whichever Options.ExportsFields/ImportsFields the
// caller currently has configured.
type PackageJSON struct {
	Realpath    string
	Name        string
	Type        string
	Main        string
	Module      string
	MainString  string // raw, unresolved "main" field as authored (string form)
	Browser     map[string]string
	BrowserMain string
	SideEffects *SideEffects

	// Raw is the whole decoded package.json document, insertion-order
	// preserved. ExportsField/ImportsField walk it by configured field
	// path instead of a hardcoded "exports"/"imports" struct tag.
	Raw ordered.Object
}

// ExportsField returns the first present value among fields (each an
// object-path such as {"exports"} or a nested override), in the manner of
// oxc-resolver's own exports_fields probing, or nil if none of them are
// present. NewOptions' default for fields, {{"exports"}}, reproduces the
// plain package.json "exports" field; a nil fields finds nothing.
func (p *PackageJSON) ExportsField(fields [][]string) any {
	return fieldAtFirstPath(p.Raw, fields)
}

// ImportsField mirrors ExportsField for Options.ImportsFields (default
// {{"imports"}}).
func (p *PackageJSON) ImportsField(fields [][]string) any {
	return fieldAtFirstPath(p.Raw, fields)
}

// fieldAtFirstPath returns the value at the first of paths that resolves to
// a present key inside obj, walking each path's segments through nested
// objects in turn.
func fieldAtFirstPath(obj ordered.Object, paths [][]string) any {
	for _, path := range paths {
		if v, ok := fieldAtPath(obj, path); ok {
			return v
		}
	}
	return nil
}

func fieldAtPath(obj ordered.Object, path []string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	v, ok := obj.Get(path[0])
	if !ok {
		return nil, false
	}
	if len(path) == 1 {
		return v, true
	}
	nested, ok := v.(ordered.Object)
	if !ok {
		return nil, false
	}
	return fieldAtPath(nested, path[1:])
}

// SideEffects is the normalized form of package.json's "sideEffects"
// field: either an explicit boolean (a bare `false` or `true`), or a glob
// allowlist.
type SideEffects struct {
	False     bool
	Globs     []string
}

// rawPackageJSON mirrors the subset of scalar package.json fields the
// resolver extracts, decoded with plain encoding/json. "exports"/"imports"
// are not part of it: they are read from Raw, the separately decoded
// ordered-key DOM, so condition precedence is preserved.
type rawPackageJSON struct {
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Main        json.RawMessage `json:"main"`
	Module      json.RawMessage `json:"module"`
	ES2015      json.RawMessage `json:"es2015"`
	JsNextMain  json.RawMessage `json:"jsnext:main"`
	Browser     json.RawMessage `json:"browser"`
	SideEffects json.RawMessage `json:"sideEffects"`
}

// ParsePackageJSON decodes package.json bytes (strict JSON, UTF-8 with
// optional BOM — no comments or trailing commas are tolerated) into a
// PackageJSON descriptor anchored at realpath (the canonical directory
// containing the file).
func ParsePackageJSON(realpath string, src []byte) (*PackageJSON, error) {
	src = jsonc.Strip(src, false)

	var raw rawPackageJSON
	if err := json.Unmarshal(src, &raw); err != nil {
		return nil, newError(KindJSONError, realpath, "", err)
	}
	var doc ordered.Object
	if err := json.Unmarshal(src, &doc); err != nil {
		return nil, newError(KindJSONError, realpath, "", err)
	}

	p := &PackageJSON{Realpath: realpath, Name: raw.Name, Type: raw.Type, Raw: doc}

	p.MainString = decodeMainLikeString(raw.Main)
	p.Main = p.MainString
	p.Module = decodeMainLikeString(raw.Module)
	if p.Module == "" {
		if es2015 := decodeMainLikeString(raw.ES2015); es2015 != "" {
			p.Module = es2015
		} else if jsNext := decodeMainLikeString(raw.JsNextMain); jsNext != "" {
			p.Module = jsNext
		} else if p.Main != "" && (p.Type == "module" || strings.HasSuffix(p.Main, ".mjs")) {
			p.Module = p.Main
			p.Main = ""
		}
	}

	p.Browser, p.BrowserMain = decodeBrowserField(raw.Browser)

	p.SideEffects = decodeSideEffects(raw.SideEffects)

	return p, nil
}

// decodeMainLikeString handles package.json fields that are conventionally
// a string, but that bundler-ecosystem packages sometimes author as an
// object keyed by condition (e.g. {".": "./index.js"}), mirroring the
// npm ecosystem's de facto JSONAny handling of "main"/"module"/"browser".
func decodeMainLikeString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var m map[string]any
	if json.Unmarshal(raw, &m) == nil {
		if v, ok := m["."]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func decodeBrowserField(raw json.RawMessage) (map[string]string, string) {
	if len(raw) == 0 {
		return nil, ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return nil, s
	}
	var m map[string]any
	if json.Unmarshal(raw, &m) != nil {
		return nil, ""
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case string:
			out[k] = t
		case bool:
			if !t {
				out[k] = ""
			}
		}
	}
	return out, ""
}

func decodeSideEffects(raw json.RawMessage) *SideEffects {
	if len(raw) == 0 {
		return nil
	}
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return &SideEffects{False: !b}
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if s == "false" {
			return &SideEffects{False: true}
		}
		return &SideEffects{Globs: []string{s}}
	}
	var arr []string
	if json.Unmarshal(raw, &arr) == nil {
		return &SideEffects{Globs: arr}
	}
	return nil
}

// Package tsconfig implements the TypeScript tsconfig.json engine (spec
// component C6): parsing a config file, materializing its `extends` chain,
// substituting the `${configDir}` token, and precompiling `compilerOptions.paths`
// into a matcher that the resolution pipeline consults before falling back
// to a node_modules lookup.
package tsconfig

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/esm-dev/resolve/internal/jsonc"
	"github.com/esm-dev/resolve/internal/ordered"
)

// References selects how a project's referenced sub-projects are
// discovered.
type References int

const (
	ReferencesNone References = iota
	ReferencesAuto
	ReferencesList
)

// CompilerOptions is the selective set of fields the resolver cares about.
type CompilerOptions struct {
	BaseURL                    string
	Paths                      map[string][]string
	Module                     string
	Target                     string
	VerbatimModuleSyntax       bool
	ExperimentalDecorators     bool
	EmitDecoratorMetadata      bool
	PreserveValueImports       bool
	ImportsNotUsedAsValues     string
	AllowJs                    bool
	JSX                        string
}

// Config is a fully materialized tsconfig.json: the result of following
// `extends` to completion and substituting `${configDir}`.
type Config struct {
	Path            string
	CompilerOptions CompilerOptions
	References      References
	ReferencePaths  []string
	Files           []string
	Include         []string
	Exclude         []string

	matcher pathMatcher
}

// ErrSelfReference is returned when a tsconfig's `extends` chain refers
// back to a file already in the chain.
type ErrSelfReference struct{ Path string }

func (e *ErrSelfReference) Error() string {
	return fmt.Sprintf("tsconfig: circular extends at %s", e.Path)
}

// ExtendsResolver resolves one `extends` entry (a module specifier or
// relative path) from the directory of the extending file to an absolute
// tsconfig.json path, mirroring the main resolution pipeline with
// conditions ["node","import"] and a ".json" extension fall-through.
type ExtendsResolver func(fromDir, specifier string) (string, error)

// FileLoader reads and JSONC-decodes the raw tsconfig.json at path.
type FileLoader func(path string) (RawFile, error)

// RawFile is the directly-decoded shape of one tsconfig.json file, prior
// to merging its `extends` chain.
type RawFile struct {
	Extends         []string
	CompilerOptions ordered.Object
	References      any // "auto" or []string
	Files           []string
	Include         []string
	Exclude         []string
}

// DecodeRaw parses JSONC-stripped tsconfig.json bytes into a RawFile.
// `extends` is accepted as either a single string or an array of strings.
func DecodeRaw(src []byte) (RawFile, error) {
	var dom ordered.Object
	if err := json.Unmarshal(StripAndDecode(src), &dom); err != nil {
		return RawFile{}, err
	}

	var raw RawFile
	if v, ok := dom.Get("extends"); ok {
		switch t := v.(type) {
		case string:
			raw.Extends = []string{t}
		case []any:
			for _, e := range t {
				if s, ok := e.(string); ok {
					raw.Extends = append(raw.Extends, s)
				}
			}
		}
	}
	if co, ok := dom.GetObject("compilerOptions"); ok {
		raw.CompilerOptions = co
	}
	if v, ok := dom.Get("references"); ok {
		raw.References = v
	}
	raw.Files = stringSlice(dom, "files")
	raw.Include = stringSlice(dom, "include")
	raw.Exclude = stringSlice(dom, "exclude")
	return raw, nil
}

func stringSlice(dom ordered.Object, key string) []string {
	v, ok := dom.Get(key)
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Load parses path and its full `extends` chain into a materialized Config.
func Load(path string, loadFile FileLoader, resolveExtends ExtendsResolver) (*Config, error) {
	return loadChain(path, loadFile, resolveExtends, map[string]bool{})
}

func loadChain(path string, loadFile FileLoader, resolveExtends ExtendsResolver, visited map[string]bool) (*Config, error) {
	if visited[path] {
		return nil, &ErrSelfReference{Path: path}
	}
	visited[path] = true
	defer delete(visited, path)

	raw, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{Path: path}
	configDir := dirOf(path)

	for _, ext := range raw.Extends {
		basePath, err := resolveExtends(configDir, ext)
		if err != nil {
			return nil, err
		}
		base, err := loadChain(basePath, loadFile, resolveExtends, visited)
		if err != nil {
			return nil, err
		}
		mergeInto(cfg, base)
	}

	applyRaw(cfg, raw, configDir)
	cfg.matcher = compilePaths(cfg.CompilerOptions.Paths)
	return cfg, nil
}

// mergeInto copies base's fields into cfg as the starting point before the
// extending file's own fields are applied on top.
func mergeInto(cfg, base *Config) {
	cfg.CompilerOptions = base.CompilerOptions
	cfg.References = base.References
	cfg.ReferencePaths = base.ReferencePaths
	cfg.Files = base.Files
	cfg.Include = base.Include
	cfg.Exclude = base.Exclude
}

func applyRaw(cfg *Config, raw RawFile, configDir string) {
	co := raw.CompilerOptions
	if !co.IsZero() {
		if v := co.GetString("baseUrl"); v != "" {
			cfg.CompilerOptions.BaseURL = substituteConfigDir(v, configDir)
		}
		if pathsVal, ok := co.Get("paths"); ok {
			if pathsObj, ok := pathsVal.(ordered.Object); ok {
				paths := make(map[string][]string, pathsObj.Len())
				for _, k := range pathsObj.Keys() {
					v, _ := pathsObj.Get(k)
					arr, _ := v.([]any)
					subs := make([]string, 0, len(arr))
					for _, s := range arr {
						if str, ok := s.(string); ok {
							subs = append(subs, substituteConfigDir(str, configDir))
						}
					}
					paths[k] = subs
				}
				// extends does not merge paths per-key: the extending
				// file's paths fully replace the base's.
				cfg.CompilerOptions.Paths = paths
			}
		}
		if v := co.GetString("module"); v != "" {
			cfg.CompilerOptions.Module = v
		}
		if v := co.GetString("target"); v != "" {
			cfg.CompilerOptions.Target = v
		}
		if v, ok := co.Get("verbatimModuleSyntax"); ok {
			cfg.CompilerOptions.VerbatimModuleSyntax, _ = v.(bool)
		}
		if v, ok := co.Get("experimentalDecorators"); ok {
			cfg.CompilerOptions.ExperimentalDecorators, _ = v.(bool)
		}
		if v, ok := co.Get("emitDecoratorMetadata"); ok {
			cfg.CompilerOptions.EmitDecoratorMetadata, _ = v.(bool)
		}
		if v, ok := co.Get("preserveValueImports"); ok {
			cfg.CompilerOptions.PreserveValueImports, _ = v.(bool)
		}
		if v := co.GetString("importsNotUsedAsValues"); v != "" {
			cfg.CompilerOptions.ImportsNotUsedAsValues = v
		}
		if v, ok := co.Get("allowJs"); ok {
			cfg.CompilerOptions.AllowJs, _ = v.(bool)
		}
		if v := co.GetString("jsx"); v != "" {
			cfg.CompilerOptions.JSX = v
		}
	}

	if raw.References != nil {
		if s, ok := raw.References.(string); ok && s == "auto" {
			cfg.References = ReferencesAuto
			cfg.ReferencePaths = nil
		} else if arr, ok := raw.References.([]any); ok {
			cfg.References = ReferencesList
			paths := make([]string, 0, len(arr))
			for _, v := range arr {
				if s, ok := v.(string); ok {
					paths = append(paths, s)
				}
			}
			cfg.ReferencePaths = paths
		}
	}

	if raw.Files != nil {
		cfg.Files = raw.Files
	}
	if raw.Include != nil {
		cfg.Include = raw.Include
	}
	if raw.Exclude != nil {
		cfg.Exclude = raw.Exclude
	}
}

// substituteConfigDir replaces the literal token "${configDir}" with dir in
// every occurrence.
func substituteConfigDir(s, dir string) string {
	return strings.ReplaceAll(s, "${configDir}", dir)
}

func dirOf(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return "."
}

// StripAndDecode removes JSONC comments/BOM from src so it can be decoded
// by an ordinary JSON decoder into an ordered.Object, matching the relaxed
// grammar tsconfig.json permits (comments, trailing commas).
func StripAndDecode(src []byte) []byte {
	return jsonc.Strip(src, true)
}

// PathsMatch is one precompiled compilerOptions.paths entry.
type PathsMatch struct {
	Pattern       string
	LiteralPrefix string
	LiteralSuffix string
	HasWildcard   bool
	Substitutions []string
}

type pathMatcher struct {
	exact     map[string][]string
	wildcards []PathsMatch
}

// compilePaths builds a matcher preferring exact keys over wildcards and,
// among wildcards, the longest literal prefix.
func compilePaths(paths map[string][]string) pathMatcher {
	m := pathMatcher{exact: map[string][]string{}}
	for pattern, subs := range paths {
		if !strings.Contains(pattern, "*") {
			m.exact[pattern] = subs
			continue
		}
		i := strings.IndexByte(pattern, '*')
		m.wildcards = append(m.wildcards, PathsMatch{
			Pattern:       pattern,
			LiteralPrefix: pattern[:i],
			LiteralSuffix: pattern[i+1:],
			HasWildcard:   true,
			Substitutions: subs,
		})
	}
	sort.SliceStable(m.wildcards, func(i, j int) bool {
		return len(m.wildcards[i].LiteralPrefix) > len(m.wildcards[j].LiteralPrefix)
	})
	return m
}

// Match resolves specifier against the config's compiled paths table,
// returning the substitution candidates in declared order, or nil if
// nothing matches. The returned strings still contain the matched
// wildcard segment substituted in, but have not been joined with baseUrl.
func (c *Config) Match(specifier string) []string {
	return c.matcher.match(specifier)
}

func (m pathMatcher) match(specifier string) []string {
	if subs, ok := m.exact[specifier]; ok {
		return expand(subs, "")
	}
	for _, w := range m.wildcards {
		if strings.HasPrefix(specifier, w.LiteralPrefix) && strings.HasSuffix(specifier, w.LiteralSuffix) {
			rest := specifier[len(w.LiteralPrefix):]
			rest = rest[:len(rest)-len(w.LiteralSuffix)]
			return expand(w.Substitutions, rest)
		}
	}
	return nil
}

func expand(subs []string, capture string) []string {
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = strings.Replace(s, "*", capture, 1)
	}
	return out
}

package resolve

import (
	"regexp"
	"strings"

	"github.com/ije/gox/log"
	"github.com/ije/gox/set"

	"github.com/esm-dev/resolve/internal/alias"
	"github.com/esm-dev/resolve/internal/pnp"
)

// EnforceExtension controls whether an extensionless LOAD_AS_FILE attempt
// is permitted.
type EnforceExtension int

const (
	// EnforceExtensionAuto enables enforcement iff Extensions contains "".
	EnforceExtensionAuto EnforceExtension = iota
	EnforceExtensionEnabled
	EnforceExtensionDisabled
)

// TsconfigReferencesMode selects how a project's referenced sub-projects
// are discovered.
type TsconfigReferencesMode int

const (
	TsconfigReferencesAuto TsconfigReferencesMode = iota
	TsconfigReferencesList
	TsconfigReferencesNone
)

// TsconfigOptions configures the tsconfig engine (C6).
type TsconfigOptions struct {
	ConfigFile string
	References TsconfigReferencesMode
}

// Restrictions bounds where a successful resolve is allowed to land: an
// allowed path-prefix list, a list of regexps a resolved path must match at
// least one of, or a custom predicate. Predicate, when non-nil, takes
// precedence; otherwise a path must satisfy Prefixes (if any) AND Regexps
// (if any) — each non-empty list narrows the allowed set.
type Restrictions struct {
	Prefixes  []string
	Regexps   []*regexp.Regexp
	Predicate func(resolvedPath string) bool
}

// allows reports whether path satisfies the restriction set. An empty
// Restrictions value (the default) allows everything.
func (r Restrictions) allows(path string) bool {
	if r.Predicate != nil {
		return r.Predicate(path)
	}
	if len(r.Prefixes) > 0 {
		ok := false
		for _, prefix := range r.Prefixes {
			if strings.HasPrefix(path, prefix) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(r.Regexps) > 0 {
		ok := false
		for _, re := range r.Regexps {
			if re.MatchString(path) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Options is the resolver's behavioral contract. A zero Options is
// replaced field-by-field with the documented defaults by NewOptions.
type Options struct {
	Alias                                  alias.Table
	AliasFields                            []string
	ExtensionAlias                         alias.ExtensionAlias
	ConditionNames                         []string
	ExportsFields                          [][]string
	ImportsFields                          [][]string
	Extensions                             []string
	EnforceExtension                       EnforceExtension
	MainFields                             []string
	MainFiles                              []string
	Fallback                               alias.Table

	// FullySpecified requires the specifier as written to already name a
	// real file: loadAsFile will not append a configured extension to make
	// it exist. Targets the resolver computes on the caller's behalf (an
	// alias substitution, a package main field, a directory's index file)
	// are exempt and may still infer an extension.
	FullySpecified bool

	// PreferRelative makes a bare Module specifier ("foo/bar") try
	// resolving as if it were relative to the requesting directory before
	// falling back to the ordinary self-reference/node_modules lookup.
	PreferRelative bool

	// PreferAbsolute makes a leading-"/" Absolute specifier try resolving
	// as a bare module lookup before falling back to true filesystem-
	// absolute resolution. Ignored when PreferRelative is also set.
	PreferAbsolute bool
	Restrictions                           Restrictions
	Roots                                  []string
	Symlinks                               *bool
	BuiltinModules                         *set.Set[string]
	ModuleType                             string
	AllowPackageExportsInDirectoryResolve  bool
	YarnPnP                                pnp.Manifest
	Tsconfig                               TsconfigOptions
	RecursionLimit                         int

	// Modules lists the directory names probed during the upward
	// node_modules-style lookup walk, tried in order at each ancestor.
	// Defaults to ["node_modules"].
	Modules []string

	// ResolveToContext, when set, makes a relative or absolute target load
	// only as a directory: the target path itself is not tried as a file
	// (LOAD_AS_FILE is skipped), and the directory's main field or index
	// file is returned. The directory path itself is never the result, and
	// module targets are not affected.
	ResolveToContext bool

	// Logger receives diagnostic messages (cache generation swaps) that are
	// worth operator attention but do not themselves fail a resolve call.
	// A remote filesystem such as fs.S3 logs through its own logger, not
	// this one. Defaults to a stdout logger at Info level.
	Logger *log.Logger
}

// NewOptions returns Options populated with the resolver's documented
// defaults, with every field in opts that was left at its zero value
// replaced by the default.
func NewOptions(opts Options) Options {
	if opts.ExportsFields == nil {
		opts.ExportsFields = [][]string{{"exports"}}
	}
	if opts.ImportsFields == nil {
		opts.ImportsFields = [][]string{{"imports"}}
	}
	if opts.Extensions == nil {
		opts.Extensions = []string{".js", ".json", ".node"}
	}
	if opts.MainFields == nil {
		opts.MainFields = []string{"main"}
	}
	if opts.MainFiles == nil {
		opts.MainFiles = []string{"index"}
	}
	if opts.Symlinks == nil {
		t := true
		opts.Symlinks = &t
	}
	if opts.RecursionLimit == 0 {
		opts.RecursionLimit = 64
	}
	if opts.ConditionNames == nil {
		opts.ConditionNames = []string{"node", "require"}
	}
	if opts.Modules == nil {
		opts.Modules = []string{"node_modules"}
	}
	if opts.BuiltinModules == nil {
		opts.BuiltinModules = set.New[string]()
	}
	if opts.Logger == nil {
		opts.Logger = defaultLogger()
	}
	return opts
}

// defaultLogger builds the resolver's fallback diagnostic logger. A
// construction failure (e.g. an unwritable DSN) is not fatal to the
// resolver: logging is diagnostic-only, so a nil Logger simply means every
// log call site below is skipped.
func defaultLogger() *log.Logger {
	l, err := log.New("")
	if err != nil {
		return nil
	}
	l.SetLevelByName("info")
	return l
}

func (o Options) enforceExtension() bool {
	switch o.EnforceExtension {
	case EnforceExtensionEnabled:
		return true
	case EnforceExtensionDisabled:
		return false
	default:
		for _, e := range o.Extensions {
			if e == "" {
				return true
			}
		}
		return false
	}
}

func (o Options) symlinksEnabled() bool {
	return o.Symlinks == nil || *o.Symlinks
}

// aliasFieldEnabled reports whether field has been opted into via
// Options.AliasFields. Matches oxc-resolver's alias_fields option, which
// defaults to empty: browser-map aliasing is opt-in, not automatic.
func (r *Resolver) aliasFieldEnabled(field string) bool {
	for _, f := range r.opts.AliasFields {
		if f == field {
			return true
		}
	}
	return false
}

// Package cli implements the `resolve` command-line tool: a thin driver
// over the resolver package for interactive use and CI debugging, in the
// style of Node's own `node --print "require.resolve(...)"`.
package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ije/gox/term"

	"github.com/esm-dev/resolve"
	"github.com/esm-dev/resolve/fs"
)

// Run parses argv-style flags and runs one resolve call, printing the
// result to stdout (or the failure to stderr) and returning a process exit
// code.
func Run(args []string) int {
	fset := flag.NewFlagSet("resolve", flag.ContinueOnError)
	dir := fset.String("dir", ".", "directory to resolve from")
	conditions := fset.String("conditions", "node,require", "comma-separated condition names")
	extensions := fset.String("extensions", ".js,.json,.node", "comma-separated resolvable extensions")
	tsconfigPath := fset.String("tsconfig", "", "explicit tsconfig.json path")
	jsonOut := fset.Bool("json", false, "print the full Resolution as JSON")

	if err := fset.Parse(args); err != nil {
		return 2
	}
	if fset.NArg() != 1 {
		fmt.Fprintln(os.Stderr, term.Red("usage: resolve [flags] <specifier>"))
		return 2
	}
	specifier := fset.Arg(0)

	opts := resolve.Options{
		ConditionNames: strings.Split(*conditions, ","),
		Extensions:     strings.Split(*extensions, ","),
	}
	if *tsconfigPath != "" {
		opts.Tsconfig.ConfigFile = *tsconfigPath
	}

	r, err := resolve.New(fs.OS{}, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, term.Red(err.Error()))
		return 1
	}

	res, err := r.Resolve(*dir, specifier)
	if err != nil {
		fmt.Fprintln(os.Stderr, term.Red(err.Error()))
		return 1
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
		return 0
	}

	if res.Ignored {
		fmt.Println(term.Dim("(ignored)"))
		return 0
	}
	fmt.Println(term.Green(res.Path))
	return 0
}

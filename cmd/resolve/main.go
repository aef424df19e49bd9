// Command resolve runs one module resolution and prints the result, for
// interactive debugging of the resolver package's behavior.
package main

import (
	"os"

	"github.com/esm-dev/resolve/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}

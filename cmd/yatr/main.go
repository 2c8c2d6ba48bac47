// Command yatr is a declarative task runner driven by a yatr.toml
// dependency graph.
package main

import (
	"os"

	"github.com/cargopete/yatr/internal/cmd"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(cmd.RunWithArgs(os.Args[1:], version))
}

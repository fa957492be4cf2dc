// Command kiln is the CLI front-end for the incremental static site
// generator: subcommand dispatch and flag parsing around the build
// engine's core packages.
package main

import (
	"fmt"
	"os"

	"github.com/kilnbuild/kiln/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		runBuild(os.Args[1:])
		return
	}

	switch os.Args[1] {
	case "build":
		runBuild(os.Args[2:])
	case "new":
		runNew(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "version":
		fmt.Println(version.String())
	case "help", "--help", "-h":
		printUsage()
	default:
		// No recognized subcommand: treat the whole argument list as
		// flags for the default `build` command, same as running
		// `kiln --clean` with no subcommand at all.
		if len(os.Args[1]) > 0 && os.Args[1][0] == '-' {
			runBuild(os.Args[1:])
			return
		}
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: kiln <command> [options]

Commands:
  build     Build the site once (default)
  new       Scaffold a new site in <dir>
  serve     Build the site, then serve its output over HTTP
  version   Print version information
  help      Show this help message

Options:
  --clean          Wipe the fingerprint store and output tree before building
  --config <path>  Load configuration from an explicit file instead of the default search path`)
}

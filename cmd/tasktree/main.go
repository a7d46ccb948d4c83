// Command tasktree builds the task tree of a project and runs its tasks.
//
// Usage:
//
//	tasktree list [--key=value ...]
//	tasktree settings [--yaml] [--key=value ...]
//	tasktree run [task ...] [--key=value ...]
//
// Arguments after the command are parsed as settings. The engine reads
// its own options (roots, dirs, filter, verbose) from the same settings,
// so they can come from package.json, the local file or the command line.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", statusMark(os.Stderr, false), err)
		os.Exit(1)
	}
}

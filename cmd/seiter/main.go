// Command seiter is the entry point for the iterative agent orchestration
// engine: it drives a declarative strategy of agent-runner iterations,
// accumulating trajectories into a pool and running operators between
// iterations to synthesize per-instance guidance.
package main

import (
	"fmt"
	"os"

	"github.com/nevindra/seiter/cmd/seiter/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

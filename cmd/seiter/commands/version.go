package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the seiter CLI version, overridable at build time via
// -ldflags "-X .../commands.Version=...".
var Version = "dev"

// NewVersionCmd constructs the `seiter version` subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the seiter version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("seiter %s\n", Version)
		},
	}
}

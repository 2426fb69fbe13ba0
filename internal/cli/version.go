// This file implements the version command.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the docket release version.
const Version = "0.3.0"

const modulePath = "github.com/mesh-intelligence/docket"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the docket version",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "docket v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}

package device

import (
	"github.com/spf13/cobra"
)

// Creates new "device" command
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Create, inspect, and manage mapped devices",
		Long:  "Contains commands related to mapped device management.",
	}

	// Add all the subcommands. If they are actual commands doing work, they should be placed in
	// this same package / in the same folder along this file. If they are only containing further
	// subcommands, they should go into their own subpackage (as this package is a subpackage of
	// the root cmd package).

	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newRemoveAllCmd())
	cmd.AddCommand(newRenameCmd())
	cmd.AddCommand(newSetUUIDCmd())
	cmd.AddCommand(newSuspendCmd())
	cmd.AddCommand(newResumeCmd())
	cmd.AddCommand(newInfoCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newWaitCmd())
	cmd.AddCommand(newMessageCmd())
	cmd.AddCommand(newArmPollCmd())

	return cmd
}

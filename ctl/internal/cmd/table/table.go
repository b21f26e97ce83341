package table

import (
	"github.com/spf13/cobra"
)

// Creates new "table" command
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Load and inspect device mapping tables",
		Long:  "Contains commands related to device mapping tables.",
	}

	cmd.AddCommand(newLoadCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newDepsCmd())

	return cmd
}

package targets

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/thinkparq/devicemapper-go/ctl/internal/cmdfmt"
	"github.com/thinkparq/devicemapper-go/ctl/pkg/config"
)

// Creates new "targets" command
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "Query the available target types",
		Long:  "Contains commands related to the target types registered with the kernel.",
	}

	cmd.AddCommand(newListCmd())

	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the registered target types and their versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListCmd(cmd)
		},
	}

	return cmd
}

func runListCmd(cmd *cobra.Command) error {
	client, err := config.Client()
	if err != nil {
		return err
	}
	versions, err := client.ListVersions()
	if err != nil {
		return err
	}

	tbl := cmdfmt.NewPrintomatic(
		[]string{"name", "version"},
		[]string{"name", "version"},
	)
	for _, v := range versions {
		tbl.AddItem(v.Name, fmt.Sprintf("%d.%d.%d", v.Version[0], v.Version[1], v.Version[2]))
	}
	tbl.PrintRemaining()
	return nil
}

package device

import (
	"github.com/spf13/cobra"
	"github.com/thinkparq/devicemapper-go/ctl/internal/cmdfmt"
	"github.com/thinkparq/devicemapper-go/ctl/pkg/config"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all mapped devices",
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
	devices, err := client.ListDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		cmdfmt.Printf("No devices found\n")
		return nil
	}

	tbl := cmdfmt.NewPrintomatic(
		[]string{"name", "device", "event_nr"},
		[]string{"name", "device"},
	)
	for _, d := range devices {
		// Old kernels do not report event numbers in the listing.
		eventNr := any("")
		if d.EventNr != nil {
			eventNr = *d.EventNr
		}
		tbl.AddItem(d.Name, d.Dev, eventNr)
	}
	tbl.PrintRemaining()
	return nil
}

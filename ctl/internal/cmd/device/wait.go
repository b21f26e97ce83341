package device

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/thinkparq/devicemapper-go/ctl/internal/cmdfmt"
	"github.com/thinkparq/devicemapper-go/ctl/internal/util"
	"github.com/thinkparq/devicemapper-go/ctl/pkg/config"
	"github.com/thinkparq/devicemapper-go/dm"
)

func newWaitCmd() *cobra.Command {
	var byUUID bool
	var eventNr uint32
	var follow bool

	cmd := &cobra.Command{
		Use:   "wait <name>",
		Short: "Wait for an event on a mapped device",
		Long: `Block until the device's event counter passes the given value, then print the device's table
status. Table swaps, removals and target generated events bump the counter. Without --event-nr the
current counter is used, so the command returns on the next event.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWaitCmd(cmd, args[0], byUUID, eventNr, follow)
		},
	}

	cmd.Flags().BoolVar(&byUUID, "by-uuid", false, "Address the device by UUID instead of name.")
	cmd.Flags().Uint32Var(&eventNr, "event-nr", 0, "Wait until the event counter passes this value instead of the current one.")
	cmd.Flags().BoolVar(&follow, "follow", false, "Keep waiting and refresh the status after every event (requires a terminal, interrupt with ctrl-c).")

	return cmd
}

func runWaitCmd(cmd *cobra.Command, arg string, byUUID bool, eventNr uint32, follow bool) error {
	id, err := util.ResolveDevID(arg, byUUID)
	if err != nil {
		return err
	}
	client, err := config.Client()
	if err != nil {
		return err
	}

	if !cmd.Flags().Changed("event-nr") {
		info, err := client.DeviceStatus(id)
		if err != nil {
			return err
		}
		eventNr = info.EventNr()
	}

	if !follow {
		info, targets, err := client.DeviceWait(id, dm.WithEventNr(eventNr))
		if err != nil {
			return err
		}
		printWaitStatus(info, targets)
		return nil
	}

	refresher := util.TermRefresher{}
	for {
		info, targets, err := client.DeviceWait(id, dm.WithEventNr(eventNr))
		if err != nil {
			return err
		}
		if err := refresher.StartRefresh(); err != nil {
			return err
		}
		printWaitStatus(info, targets)
		footer := fmt.Sprintf("Waiting for events on %s (event %d)... Press ctrl-c to stop.", info.Name(), info.EventNr())
		if err := refresher.FinishRefresh(util.WithTermFooter(footer)); err != nil {
			return err
		}
		eventNr = info.EventNr()
	}
}

func printWaitStatus(info *dm.DeviceInfo, targets []dm.Target) {
	tbl := cmdfmt.NewPrintomatic(
		[]string{"name", "start", "length", "size", "type", "status"},
		[]string{"name", "start", "length", "type", "status"},
	)
	for _, t := range targets {
		size := util.SectorsToHuman(t.Length)
		if viper.GetBool(config.RawKey) {
			size = fmt.Sprint(t.Length * 512)
		}
		tbl.AddItem(info.Name(), t.Start, t.Length, size, t.Type, t.Params)
	}
	tbl.PrintRemaining()
}

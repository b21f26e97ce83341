package device

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/thinkparq/devicemapper-go/ctl/internal/cmdfmt"
	"github.com/thinkparq/devicemapper-go/ctl/internal/util"
	"github.com/thinkparq/devicemapper-go/ctl/pkg/config"
	"github.com/thinkparq/devicemapper-go/dm"
)

func newInfoCmd() *cobra.Command {
	var byUUID bool

	cmd := &cobra.Command{
		Use:   "info <name>",
		Short: "Show the state of a mapped device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfoCmd(cmd, args[0], byUUID)
		},
	}

	cmd.Flags().BoolVar(&byUUID, "by-uuid", false, "Address the device by UUID instead of name.")

	return cmd
}

func runInfoCmd(cmd *cobra.Command, arg string, byUUID bool) error {
	id, err := util.ResolveDevID(arg, byUUID)
	if err != nil {
		return err
	}
	client, err := config.Client()
	if err != nil {
		return err
	}
	info, err := client.DeviceStatus(id)
	if err != nil {
		return err
	}

	tbl := cmdfmt.NewPrintomatic(
		[]string{"name", "uuid", "device", "state", "tables", "open", "targets", "event_nr"},
		[]string{"name", "uuid", "device", "state", "tables", "open", "targets"},
	)
	tbl.AddItem(
		info.Name(),
		info.UUID(),
		info.Dev(),
		deviceState(info.Flags()),
		deviceTables(info.Flags()),
		info.OpenCount(),
		info.TargetCount(),
		info.EventNr(),
	)
	tbl.PrintRemaining()
	return nil
}

// deviceState renders the lifecycle related flags the way users think about them.
func deviceState(flags dm.Flags) string {
	state := "active"
	if flags&dm.FlagSuspend != 0 {
		state = "suspended"
	}
	if flags&dm.FlagReadonly != 0 {
		state += " (read-only)"
	}
	if flags&dm.FlagDeferredRemove != 0 {
		state += " (deferred remove)"
	}
	return state
}

// deviceTables reports which of the two table slots are populated.
func deviceTables(flags dm.Flags) string {
	var tables []string
	if flags&dm.FlagActivePresent != 0 {
		tables = append(tables, "active")
	}
	if flags&dm.FlagInactivePresent != 0 {
		tables = append(tables, "inactive")
	}
	if len(tables) == 0 {
		return "none"
	}
	return strings.Join(tables, "+")
}

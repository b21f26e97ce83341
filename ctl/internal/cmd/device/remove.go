package device

import (
	"github.com/spf13/cobra"
	"github.com/thinkparq/devicemapper-go/ctl/internal/util"
	"github.com/thinkparq/devicemapper-go/ctl/pkg/config"
	"github.com/thinkparq/devicemapper-go/dm"
)

func newRemoveCmd() *cobra.Command {
	var byUUID bool
	var deferred bool

	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a mapped device",
		Long: `Remove a mapped device. The kernel refuses to remove a device that is still open; removal is
retried for a few seconds before giving up. With --deferred the kernel instead removes the device
itself once the last opener closes it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemoveCmd(args[0], byUUID, deferred)
		},
	}

	cmd.Flags().BoolVar(&byUUID, "by-uuid", false, "Address the device by UUID instead of name.")
	cmd.Flags().BoolVar(&deferred, "deferred", false, "Defer removal until the device is no longer open.")

	return cmd
}

func runRemoveCmd(arg string, byUUID bool, deferred bool) error {
	id, err := util.ResolveDevID(arg, byUUID)
	if err != nil {
		return err
	}
	client, err := config.Client()
	if err != nil {
		return err
	}
	opts := config.UdevFlags()
	if deferred {
		opts = append(opts, dm.WithFlags(dm.FlagDeferredRemove))
	}
	_, err = client.DeviceRemove(id, opts...)
	return err
}

func newRemoveAllCmd() *cobra.Command {
	var deferred bool

	cmd := &cobra.Command{
		Use:   "remove-all",
		Short: "Remove all mapped devices",
		Long: `Remove all mapped devices and destroy the control node hash tables. Intended for cleanup after
tests or before unloading the dm module, not for routine use. No uevents are synchronized, so udev
state may need a manual trigger afterwards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemoveAllCmd(deferred)
		},
	}

	cmd.Flags().BoolVar(&deferred, "deferred", false, "Defer removal of devices that are still open.")

	return cmd
}

func runRemoveAllCmd(deferred bool) error {
	client, err := config.Client()
	if err != nil {
		return err
	}
	opts := []dm.Option{}
	if deferred {
		opts = append(opts, dm.WithFlags(dm.FlagDeferredRemove))
	}
	return client.RemoveAll(opts...)
}

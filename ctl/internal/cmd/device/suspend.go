package device

import (
	"github.com/spf13/cobra"
	"github.com/thinkparq/devicemapper-go/ctl/internal/util"
	"github.com/thinkparq/devicemapper-go/ctl/pkg/config"
	"github.com/thinkparq/devicemapper-go/dm"
)

func newSuspendCmd() *cobra.Command {
	var byUUID bool
	var noFlush bool
	var skipLockFS bool

	cmd := &cobra.Command{
		Use:   "suspend <name>",
		Short: "Suspend a mapped device",
		Long: `Suspend a mapped device. I/O submitted while suspended is queued until the device is resumed.
Suspend a device before replacing its table to get a consistent switchover.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuspendCmd(args[0], byUUID, noFlush, skipLockFS)
		},
	}

	cmd.Flags().BoolVar(&byUUID, "by-uuid", false, "Address the device by UUID instead of name.")
	cmd.Flags().BoolVar(&noFlush, "noflush", false, "Do not flush outstanding I/O before suspending.")
	cmd.Flags().BoolVar(&skipLockFS, "skip-lockfs", false, "Do not freeze a filesystem mounted on the device.")

	return cmd
}

func runSuspendCmd(arg string, byUUID bool, noFlush bool, skipLockFS bool) error {
	id, err := util.ResolveDevID(arg, byUUID)
	if err != nil {
		return err
	}
	client, err := config.Client()
	if err != nil {
		return err
	}
	var flags dm.Flags
	if noFlush {
		flags |= dm.FlagNoFlush
	}
	if skipLockFS {
		flags |= dm.FlagSkipLockFS
	}
	opts := []dm.Option{}
	if flags != 0 {
		opts = append(opts, dm.WithFlags(flags))
	}
	_, err = client.DeviceSuspend(id, opts...)
	return err
}

func newResumeCmd() *cobra.Command {
	var byUUID bool

	cmd := &cobra.Command{
		Use:   "resume <name>",
		Short: "Resume a suspended device",
		Long: `Resume a suspended device, releasing any queued I/O. If a new table was loaded while the device
was suspended it becomes the active table.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResumeCmd(args[0], byUUID)
		},
	}

	cmd.Flags().BoolVar(&byUUID, "by-uuid", false, "Address the device by UUID instead of name.")

	return cmd
}

func runResumeCmd(arg string, byUUID bool) error {
	id, err := util.ResolveDevID(arg, byUUID)
	if err != nil {
		return err
	}
	client, err := config.Client()
	if err != nil {
		return err
	}
	_, err = client.DeviceResume(id, config.UdevFlags()...)
	return err
}

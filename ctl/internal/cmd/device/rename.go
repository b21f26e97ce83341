package device

import (
	"github.com/spf13/cobra"
	"github.com/thinkparq/devicemapper-go/ctl/internal/util"
	"github.com/thinkparq/devicemapper-go/ctl/pkg/config"
	"github.com/thinkparq/devicemapper-go/dm"
)

func newRenameCmd() *cobra.Command {
	var byUUID bool

	cmd := &cobra.Command{
		Use:   "rename <name> <new-name>",
		Short: "Rename a mapped device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRenameCmd(args[0], args[1], byUUID)
		},
	}

	cmd.Flags().BoolVar(&byUUID, "by-uuid", false, "Address the device by UUID instead of name.")

	return cmd
}

func runRenameCmd(arg string, newNameArg string, byUUID bool) error {
	id, err := util.ResolveDevID(arg, byUUID)
	if err != nil {
		return err
	}
	newName, err := dm.NameFromString(newNameArg)
	if err != nil {
		return err
	}
	client, err := config.Client()
	if err != nil {
		return err
	}
	_, err = client.DeviceRename(id, newName, config.UdevFlags()...)
	return err
}

func newSetUUIDCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-uuid <name> <uuid>",
		Short: "Set the UUID of a mapped device",
		Long:  "Set the UUID of a mapped device. This only works when the device does not have a UUID yet; the UUID is immutable once assigned.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetUUIDCmd(args[0], args[1])
		},
	}

	return cmd
}

func runSetUUIDCmd(nameArg string, uuidArg string) error {
	name, err := dm.NameFromString(nameArg)
	if err != nil {
		return err
	}
	devUUID, err := dm.UUIDFromString(uuidArg)
	if err != nil {
		return err
	}
	client, err := config.Client()
	if err != nil {
		return err
	}
	_, err = client.SetUUID(name, devUUID, config.UdevFlags()...)
	return err
}

package device

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/thinkparq/devicemapper-go/ctl/internal/util"
	"github.com/thinkparq/devicemapper-go/ctl/pkg/config"
)

func newMessageCmd() *cobra.Command {
	var byUUID bool
	var sector uint64

	cmd := &cobra.Command{
		Use:   "message <name> <message>...",
		Short: "Send a message to a target",
		Long: `Send a message to the target in the device's active table that maps the given sector. The
message words are target specific, see the kernel documentation of the target. Some targets answer
and the response is printed.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessageCmd(args[0], byUUID, sector, strings.Join(args[1:], " "))
		},
	}

	cmd.Flags().BoolVar(&byUUID, "by-uuid", false, "Address the device by UUID instead of name.")
	cmd.Flags().Uint64Var(&sector, "sector", 0, "The sector selecting the target the message is routed to.")

	return cmd
}

func runMessageCmd(arg string, byUUID bool, sector uint64, msg string) error {
	id, err := util.ResolveDevID(arg, byUUID)
	if err != nil {
		return err
	}
	client, err := config.Client()
	if err != nil {
		return err
	}
	response, err := client.TargetMsg(id, sector, msg)
	if err != nil {
		return err
	}
	if response != "" {
		fmt.Println(response)
	}
	return nil
}

func newArmPollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arm-poll",
		Short: "Re-arm event polling on the control device",
		Long: `Re-arm event polling on the control device. Only useful for applications that watch
/dev/mapper/control with poll or epoll instead of blocking in "device wait".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := config.Client()
			if err != nil {
				return err
			}
			return client.ArmPoll()
		},
	}

	return cmd
}

package table

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/thinkparq/devicemapper-go/ctl/internal/util"
	"github.com/thinkparq/devicemapper-go/ctl/pkg/config"
	"github.com/thinkparq/devicemapper-go/dm"
)

func newLoadCmd() *cobra.Command {
	var byUUID bool
	var readonly bool
	var resume bool

	cmd := &cobra.Command{
		Use:   "load <name> [<file>]",
		Short: "Load a new mapping table into a device",
		Long: `Load a mapping table into a device's inactive slot. The table is read from the given file, or
from stdin when no file (or '-') is given, one target per line:

    <start-sector> <num-sectors> <target-type> [<params>...]

The loaded table does not take effect until the device is resumed. Use --resume to swap it in
immediately.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := "-"
			if len(args) == 2 {
				file = args[1]
			}
			return runLoadCmd(args[0], file, byUUID, readonly, resume)
		},
	}

	cmd.Flags().BoolVar(&byUUID, "by-uuid", false, "Address the device by UUID instead of name.")
	cmd.Flags().BoolVar(&readonly, "readonly", false, "Load the table read-only.")
	cmd.Flags().BoolVar(&resume, "resume", false, "Resume the device after loading so the table takes effect immediately.")

	return cmd
}

func runLoadCmd(arg string, file string, byUUID bool, readonly bool, resume bool) error {
	id, err := util.ResolveDevID(arg, byUUID)
	if err != nil {
		return err
	}

	var r io.Reader = os.Stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	targets, err := util.ReadTargets(r)
	if err != nil {
		return err
	}

	client, err := config.Client()
	if err != nil {
		return err
	}
	opts := []dm.Option{}
	if readonly {
		opts = append(opts, dm.WithFlags(dm.FlagReadonly))
	}
	if _, err := client.TableLoad(id, targets, opts...); err != nil {
		return err
	}
	if resume {
		_, err = client.DeviceResume(id, config.UdevFlags()...)
	}
	return err
}

func newClearCmd() *cobra.Command {
	var byUUID bool

	cmd := &cobra.Command{
		Use:   "clear <name>",
		Short: "Discard a device's inactive table",
		Long:  "Discard a loaded but not yet activated table, e.g. to abort a table swap.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := util.ResolveDevID(args[0], byUUID)
			if err != nil {
				return err
			}
			client, err := config.Client()
			if err != nil {
				return err
			}
			_, err = client.TableClear(id)
			return err
		},
	}

	cmd.Flags().BoolVar(&byUUID, "by-uuid", false, "Address the device by UUID instead of name.")

	return cmd
}

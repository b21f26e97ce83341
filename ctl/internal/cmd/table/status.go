package table

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/thinkparq/devicemapper-go/ctl/internal/cmdfmt"
	"github.com/thinkparq/devicemapper-go/ctl/internal/util"
	"github.com/thinkparq/devicemapper-go/ctl/pkg/config"
	"github.com/thinkparq/devicemapper-go/dm"
)

type statusCmdConfig struct {
	byUUID    bool
	showTable bool
	inactive  bool
	noFlush   bool
}

func newStatusCmd() *cobra.Command {
	cfg := statusCmdConfig{}

	cmd := &cobra.Command{
		Use:   "status <name>",
		Short: "Show the status of a device's table",
		Long: `Show the status of every target in a device's active table. By default each target reports its
runtime status; with --table the table parameters as loaded are shown instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatusCmd(cmd, args[0], cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.byUUID, "by-uuid", false, "Address the device by UUID instead of name.")
	cmd.Flags().BoolVar(&cfg.showTable, "table", false, "Show the table parameters as loaded instead of the runtime status.")
	cmd.Flags().BoolVar(&cfg.inactive, "inactive", false, "Query the inactive table slot instead of the active one.")
	cmd.Flags().BoolVar(&cfg.noFlush, "noflush", false, "Do not flush outstanding I/O before retrieving the status.")

	return cmd
}

func runStatusCmd(cmd *cobra.Command, arg string, cfg statusCmdConfig) error {
	id, err := util.ResolveDevID(arg, cfg.byUUID)
	if err != nil {
		return err
	}
	client, err := config.Client()
	if err != nil {
		return err
	}

	var flags dm.Flags
	if cfg.showTable {
		flags |= dm.FlagStatusTable
	}
	if cfg.inactive {
		flags |= dm.FlagQueryInactive
	}
	if cfg.noFlush {
		flags |= dm.FlagNoFlush
	}
	opts := []dm.Option{}
	if flags != 0 {
		opts = append(opts, dm.WithFlags(flags))
	}

	info, targets, err := client.TableStatus(id, opts...)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		cmdfmt.Printf("Device %s has no table loaded\n", info.Name())
		return nil
	}

	paramsCol := "status"
	if cfg.showTable {
		paramsCol = "params"
	}
	tbl := cmdfmt.NewPrintomatic(
		[]string{"start", "length", "size", "type", paramsCol},
		[]string{"start", "length", "type", paramsCol},
	)
	for _, t := range targets {
		size := util.SectorsToHuman(t.Length)
		if viper.GetBool(config.RawKey) {
			size = fmt.Sprint(t.Length * 512)
		}
		tbl.AddItem(t.Start, t.Length, size, t.Type, t.Params)
	}
	tbl.PrintRemaining()
	return nil
}

func newDepsCmd() *cobra.Command {
	var byUUID bool
	var inactive bool

	cmd := &cobra.Command{
		Use:   "deps <name>",
		Short: "List the block devices a table maps onto",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDepsCmd(args[0], byUUID, inactive)
		},
	}

	cmd.Flags().BoolVar(&byUUID, "by-uuid", false, "Address the device by UUID instead of name.")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Query the inactive table slot instead of the active one.")

	return cmd
}

func runDepsCmd(arg string, byUUID bool, inactive bool) error {
	id, err := util.ResolveDevID(arg, byUUID)
	if err != nil {
		return err
	}
	client, err := config.Client()
	if err != nil {
		return err
	}
	opts := []dm.Option{}
	if inactive {
		opts = append(opts, dm.WithFlags(dm.FlagQueryInactive))
	}
	deps, err := client.TableDeps(id, opts...)
	if err != nil {
		return err
	}

	tbl := cmdfmt.NewPrintomatic(
		[]string{"device"},
		[]string{"device"},
	)
	for _, d := range deps {
		tbl.AddItem(d)
	}
	tbl.PrintRemaining()
	return nil
}

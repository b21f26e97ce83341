package device

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/thinkparq/devicemapper-go/ctl/internal/util"
	"github.com/thinkparq/devicemapper-go/ctl/pkg/config"
	"github.com/thinkparq/devicemapper-go/dm"
)

type createCmdConfig struct {
	uuid      string
	readonly  bool
	tableFile string
}

func newCreateCmd() *cobra.Command {
	cfg := createCmdConfig{}

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new mapped device",
		Long: `Create a new mapped device. The device has no mapping table and cannot do I/O until a table is
loaded with "table load" and the device is resumed. Alternatively provide the table directly using
--table to create, load, and activate in one step.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateCmd(args[0], cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.uuid, "uuid", "", "The immutable UUID to assign to the device. Specify 'auto' to generate one.")
	cmd.Flags().BoolVar(&cfg.readonly, "readonly", false, "Create the device read-only.")
	cmd.Flags().StringVar(&cfg.tableFile, "table", "", "Load the mapping table from this file ('-' for stdin) and activate the device.")

	return cmd
}

func runCreateCmd(nameArg string, cfg createCmdConfig) error {
	name, err := dm.NameFromString(nameArg)
	if err != nil {
		return err
	}

	var devUUID dm.UUID
	switch cfg.uuid {
	case "":
	case "auto":
		devUUID, err = dm.UUIDFromString(uuid.New().String())
		if err != nil {
			return err
		}
	default:
		devUUID, err = dm.UUIDFromString(cfg.uuid)
		if err != nil {
			return err
		}
	}

	client, err := config.Client()
	if err != nil {
		return err
	}

	opts := []dm.Option{}
	if cfg.readonly {
		opts = append(opts, dm.WithFlags(dm.FlagReadonly))
	}
	if _, err := client.DeviceCreate(name, devUUID, opts...); err != nil {
		return err
	}

	if cfg.tableFile == "" {
		return nil
	}

	// Best effort cleanup so a failed activation doesn't leave an unusable empty device around.
	targets, err := readTableFile(cfg.tableFile)
	if err == nil {
		loadOpts := []dm.Option{}
		if cfg.readonly {
			loadOpts = append(loadOpts, dm.WithFlags(dm.FlagReadonly))
		}
		_, err = client.TableLoad(name, targets, loadOpts...)
	}
	if err == nil {
		_, err = client.DeviceResume(name, config.UdevFlags()...)
	}
	if err != nil {
		if _, rmErr := client.DeviceRemove(name, config.UdevFlags()...); rmErr != nil {
			return fmt.Errorf("%w (removing the unusable device also failed: %s)", err, rmErr)
		}
		// The device was created but could not be activated. It was removed again, so the
		// system is clean, which a plain failure exit would hide from scripts.
		return util.NewCtlError(fmt.Errorf("activating %s failed (the empty device was removed again): %w", name, err), util.PartialSuccess)
	}
	return nil
}

func readTableFile(path string) ([]dm.Target, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return util.ReadTargets(r)
}

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thinkparq/devicemapper-go/ctl/internal/cmd/device"
	"github.com/thinkparq/devicemapper-go/ctl/internal/cmd/table"
	"github.com/thinkparq/devicemapper-go/ctl/internal/cmd/targets"
	cmdConfig "github.com/thinkparq/devicemapper-go/ctl/internal/config"
	util "github.com/thinkparq/devicemapper-go/ctl/internal/util"
)

// Main entry point of the tool
func Execute() int {
	// This is the first line of the root help message. This is generated/stored here to allow the
	// number of characters separating the header with the rest of the help text to be determined
	// dynamically since the version width may vary.
	longHelpHeader := fmt.Sprintf("Device Mapper Command Line Tool: %s", Version)
	// The root command.
	cmd := &cobra.Command{
		Use:   BinaryName,
		Short: "The device-mapper command line control tool.",
		Long: fmt.Sprintf(`%s
%s
This tool manages logical devices through the kernel device-mapper control interface.

* View help for specific commands with "<command> help".
* Most commands talk to /dev/mapper/control and require CAP_SYS_ADMIN.
* Mapping tables use the kernel format: <start-sector> <num-sectors> <target-type> [<params>...].
		`, longHelpHeader, strings.Repeat("=", len(longHelpHeader))),
		SilenceUsage: true,
	}

	// Normalize flags to lowercase - makes the program accept case insensitive flags
	cmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		lowercaseFlagName := strings.ToLower(name)
		return pflag.NormalizedName(lowercaseFlagName)
	})

	// Initialize global config
	cmdConfig.InitGlobalFlags(cmd)
	defer cmdConfig.Cleanup()

	// Add subcommands
	cmd.AddCommand(versionCmd)
	cmd.AddCommand(device.NewCmd())
	cmd.AddCommand(table.NewCmd())
	cmd.AddCommand(targets.NewCmd())

	// Parse the given parameters and execute the selected command
	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		// If the command returned a util.CtlError with an included exit code, use this to exit the
		// program
		ctlError, ok := err.(util.CtlError)
		if ok {
			return ctlError.GetExitCode()
		}

		return 1
	}

	return 0
}

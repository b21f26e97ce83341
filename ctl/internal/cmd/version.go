package cmd

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/thinkparq/devicemapper-go/ctl/pkg/config"
)

var (
	BinaryName = "dmctl"
	Version    = "local-build"
	Commit     = "unknown"
	BuildTime  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the command line tool and driver versions.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Version: %s | Commit %s | Built: %s\n", Version, Commit, BuildTime)

		// The driver version needs the control device, which may not be accessible. Still print
		// the tool version in that case so `version` always works.
		if client, err := config.Client(); err != nil {
			fmt.Printf("Driver: unavailable (%s)\n", err)
		} else if v, err := client.Version(); err != nil {
			fmt.Printf("Driver: unavailable (%s)\n", err)
		} else {
			fmt.Printf("Driver: %d.%d.%d\n", v[0], v[1], v[2])
		}

		if viper.GetBool(config.DebugKey) {
			fmt.Println("\nDebug Info:")
			euid := syscall.Geteuid()
			uid := syscall.Getuid()
			egid := syscall.Getegid()
			gid := syscall.Getgid()
			fmt.Printf("* The binary was invoked with the following permissions: euid %d | uid %d | egid %d | gid %d\n", euid, uid, egid, gid)
		}
	},
}

package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/edgelink/edgenode/edge"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		major, minor, micro := edge.Version()
		fmt.Printf("edgenodectl %d.%d.%d\n", major, minor, micro)
		if IsVerbose() {
			fmt.Printf("  go: %s\n", runtime.Version())
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

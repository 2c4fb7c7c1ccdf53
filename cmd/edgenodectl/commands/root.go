package commands

import (
	"github.com/spf13/cobra"

	"github.com/edgelink/edgenode/pkg/cli"
)

var (
	verbose bool
	store   *cli.Store
)

var rootCmd = &cobra.Command{
	Use:   "edgenodectl",
	Short: "Manual test driver for the edge messaging library",
	Long: `edgenodectl drives the edge library's Node API from the command line
for manual testing: run a server-role node, connect a client-role node to
it, save and reuse named connection profiles.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initStore)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initStore() {
	s, err := cli.Open()
	if err != nil {
		return
	}
	store = s
}

// IsVerbose reports whether -v was passed.
func IsVerbose() bool {
	return verbose
}

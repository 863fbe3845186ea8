package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var flags GlobalFlags

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "iosrun",
		Short:         "iosrun builds a React Native iOS app and runs it on a simulator or device",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&flags.JSON, "json", false, "Emit NDJSON event stream to stdout")
	rootCmd.PersistentFlags().StringVar(&flags.Config, "config", "", "Path to config file (default: ./.iosrun.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flags.Verbose, "verbose", false, "Show raw xcodebuild output and debug logs")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDevicesCmd())
	return rootCmd
}

func Execute() {
	rootCmd := newRootCmd()
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		PrintFatal(err)
	}
}

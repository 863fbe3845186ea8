package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xcbolt/iosrun/internal/core"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the app and run it on a simulator or a connected device",
		Long: `Builds the Xcode project in --project-path and launches it.

Without --device or --udid the app runs on a simulator (--simulator, which
accepts "booted" or a "Name (OS version)" form). A bare --device picks the
only connected device.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ac := NewAppContext(flags, cmd.OutOrStdout())
			defer func() { _ = ac.Logger.Sync() }()

			cfg, err := core.LoadConfig(flags.Config, cmd.Flags())
			if err != nil {
				return ac.fail("run", err)
			}

			// The build runs in its own process group, so Ctrl-C is forwarded
			// through cancellation.
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := ac.Pipeline(cfg).Run(ctx, cfg.RunOptions())
			if err != nil {
				return ac.fail("run", err)
			}
			ac.Emitter.Emit(core.Result("run", !res.Degraded(), res))
			return nil
		},
	}

	f := cmd.Flags()
	f.String("simulator", core.DefaultSimulator, `Simulator to run on, optionally with an OS version: "iPhone 15 (17.2)"`)
	f.String("configuration", core.DefaultConfiguration, "Build configuration")
	f.String("scheme", "", "Scheme to build (default: the project name)")
	f.String("project-path", core.DefaultProjectPath, "Folder containing the .xcodeproj or .xcworkspace")
	f.String("device", "", "Run on a connected device by name; without a value, use the only connected device")
	f.Lookup("device").NoOptDefVal = core.AnyDeviceValue
	f.String("udid", "", "Run on the connected device with this UDID")
	f.String("derived-data-path", "", "xcodebuild derived data folder (default: <project-path>/build/<scheme>)")
	f.Bool("no-packager", false, "Do not launch the JS bundler while building")
	f.Int("port", core.DefaultBundlerPort, "JS bundler port (env RCT_METRO_PORT)")
	f.String("terminal", "", "Terminal app for the bundler (env REACT_TERMINAL or TERM_PROGRAM)")
	f.String("log-format", string(core.LogFormatAuto), "Build log format: auto, raw, xcpretty or xcbeautify")
	cmd.MarkFlagsMutuallyExclusive("device", "udid")

	return cmd
}

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/xcbolt/iosrun/internal/core"
)

func newDevicesCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List connected devices and available simulators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ac := NewAppContext(flags, cmd.OutOrStdout())
			defer func() { _ = ac.Logger.Sync() }()
			cfg, err := core.LoadConfig(flags.Config, cmd.Flags())
			if err != nil {
				return ac.fail("devices", err)
			}
			p := ac.Pipeline(cfg)
			ctx := context.Background()

			physical, err := p.ListPhysicalDevices(ctx)
			if err != nil {
				ac.Emitter.Emit(core.Warn("devices", fmt.Sprintf("Could not list physical devices: %v", err)))
			}
			sims, err := p.ListSimulators(ctx)
			if err != nil {
				return ac.fail("devices", err)
			}
			if !all {
				sims = lo.Filter(sims, func(d core.Device, _ int) bool { return d.Available })
			}
			devices := append(physical, sims...)

			if ac.Flags.JSON {
				ac.Emitter.Emit(core.Event{Cmd: "devices", Type: "device_list", Data: devices})
				return nil
			}
			return renderDeviceTable(cmd.OutOrStdout(), devices)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include unavailable simulators")
	return cmd
}

func renderDeviceTable(w io.Writer, devices []core.Device) error {
	table := tablewriter.NewWriter(w)
	table.Header("Kind", "Name", "OS", "UDID", "State")
	for _, d := range devices {
		state := string(d.State)
		if d.Physical() {
			state = lo.Ternary(d.Available, "connected", "offline")
		}
		if err := table.Append([]string{string(d.Kind), d.Name, d.OSVersion, d.UDID, state}); err != nil {
			return err
		}
	}
	return table.Render()
}

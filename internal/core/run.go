package core

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	DefaultSimulator     = "iPhone X"
	DefaultConfiguration = "Debug"
	DefaultProjectPath   = "ios"
	DefaultBundlerPort   = 8081

	// AnyDeviceValue is what a bare --device flag parses to.
	AnyDeviceValue = "(any)"
)

// RunOptions are the user's choices for one run.
type RunOptions struct {
	ProjectPath     string
	Scheme          string
	Configuration   string
	DerivedDataPath string

	Simulator string
	// DeviceSet distinguishes a bare --device (any device) from no --device at all.
	DeviceSet bool
	Device    string
	UDID      string

	Packager bool
	Port     int
	Terminal string
}

// Selector returns the physical-device selector, or false when the run
// should go through the default simulator flow.
func (o RunOptions) Selector() (Selector, bool) {
	switch {
	case o.UDID != "":
		return ByUDID(o.UDID), true
	case o.DeviceSet && (o.Device == "" || o.Device == AnyDeviceValue):
		return AnyDevice(), true
	case o.DeviceSet:
		return ByName(o.Device), true
	default:
		return Selector{}, false
	}
}

func (o RunOptions) withDefaults() RunOptions {
	if o.ProjectPath == "" {
		o.ProjectPath = DefaultProjectPath
	}
	if o.Configuration == "" {
		o.Configuration = DefaultConfiguration
	}
	if o.Simulator == "" {
		o.Simulator = DefaultSimulator
	}
	if o.Port == 0 {
		o.Port = DefaultBundlerPort
	}
	return o
}

// Run discovers the project, selects exactly one target and deploys to it.
// Nothing is built unless a target was found.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (DeployResult, error) {
	opts = opts.withDefaults()

	proj, err := FindProject(opts.ProjectPath)
	if err != nil {
		return DeployResult{}, err
	}
	kind := "project"
	if proj.IsWorkspace {
		kind = "workspace"
	}
	emitMaybe(p.Emit, Status("run", fmt.Sprintf("Found Xcode %s %q", kind, proj.Name), proj))

	scheme := opts.Scheme
	if scheme == "" {
		scheme = proj.InferredScheme
	}
	if !proj.HasScheme(scheme) {
		emitMaybe(p.Emit, Warn("run", fmt.Sprintf("Scheme %q is not shared in %s; available: %v", scheme, proj.Name, proj.SharedSchemes)))
	}
	req := BuildRequest{
		Project:         proj,
		Scheme:          scheme,
		Configuration:   opts.Configuration,
		DerivedDataPath: opts.DerivedDataPath,
		Env:             BundlerEnv(opts.Terminal, opts.Port, opts.Packager),
	}
	p.log().Debug("run options",
		zap.String("project", proj.Path),
		zap.String("scheme", scheme),
		zap.String("configuration", opts.Configuration),
		zap.Bool("packager", opts.Packager))

	if sel, ok := opts.Selector(); ok {
		devices, err := p.ListPhysicalDevices(ctx)
		if err != nil {
			return DeployResult{}, fmt.Errorf("list devices: %w", err)
		}
		online := lo.Filter(devices, func(d Device, _ int) bool { return d.Available })
		m, err := MatchTarget(online, sel)
		if err != nil {
			return DeployResult{}, err
		}
		if m.Implicit {
			emitMaybe(p.Emit, Status("run", fmt.Sprintf("Using first available device named %q due to lack of name supplied.", m.Device.Name), m.Device))
		}
		return p.DeployToDevice(ctx, m.Device, req)
	}

	sims, err := p.ListSimulators(ctx)
	if err != nil {
		return DeployResult{}, err
	}
	sim, ok := FindMatchingSimulator(sims, opts.Simulator)
	if !ok {
		return DeployResult{}, &TargetNotFoundError{
			Selector:   Selector{Kind: SelectSimulator, Value: opts.Simulator},
			Candidates: sims,
		}
	}
	return p.DeployToSimulator(ctx, sim, req)
}

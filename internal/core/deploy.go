package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// DeployResult summarises a run that got past target selection.
type DeployResult struct {
	Target   Device                `json:"target"`
	State    DeployState           `json:"state"`
	AppPath  string                `json:"appPath,omitempty"`
	BundleID string                `json:"bundleId,omitempty"`
	Build    BuildResult           `json:"build"`
	Issues   []*PostBuildToolError `json:"-"`
}

// Degraded reports whether the app was built but not fully deployed.
func (r DeployResult) Degraded() bool { return r.State == StateDegraded }

const iosDeployHint = `Run "npm install -g ios-deploy" and try again.`

// DeployToSimulator boots sim when needed, builds for it, then installs and
// launches the app. Only build failures are returned as errors. Install and
// launch failures are recorded in Issues and leave the result Degraded.
func (p *Pipeline) DeployToSimulator(ctx context.Context, sim Device, req BuildRequest) (DeployResult, error) {
	tr := newDeployTracker(p, "run")
	res := DeployResult{Target: sim, State: StateIdle}
	if err := tr.advance(StateTargetSelected); err != nil {
		return res, err
	}

	if err := p.openSimulatorApp(ctx, sim.UDID); err != nil {
		emitMaybe(p.Emit, Warn("run", fmt.Sprintf("Could not open Simulator.app: %v", err)))
	}
	if !sim.Booted() {
		emitMaybe(p.Emit, Status("run", fmt.Sprintf("Launching %s", sim.DisplayName()), nil))
		if err := p.bootSimulator(ctx, sim.UDID); err != nil {
			res.State = tr.state
			return res, fmt.Errorf("boot simulator %s: %w", sim.UDID, err)
		}
	}

	req.TargetUDID = sim.UDID
	req.Physical = false
	build, err := p.buildTracked(ctx, tr, req)
	res.State = tr.state
	if err != nil {
		return res, err
	}
	res.Build = build
	res.AppPath = build.AppPath

	emitMaybe(p.Emit, Status("run", fmt.Sprintf("Installing %s", build.AppPath), nil))
	if err := tr.advance(StateInstalling); err != nil {
		return res, err
	}
	if err := p.simctlInstall(ctx, sim.UDID, build.AppPath); err != nil {
		p.recordIssue(&res, tr, &PostBuildToolError{
			Step:       "install",
			Err:        err,
			Suggestion: "Make sure the simulator is booted and the build produced " + build.AppPath,
		})
	} else if err := tr.advance(StateInstalled); err != nil {
		return res, err
	}

	bundleID, err := ReadBundleID(build.AppPath)
	if err := tr.advance(StateLaunching); err != nil {
		return res, err
	}
	if err != nil {
		p.recordIssue(&res, tr, &PostBuildToolError{
			Step:       "read bundle id",
			Err:        err,
			Suggestion: "Check that the scheme builds an application target.",
		})
		res.State = tr.state
		return res, nil
	}
	res.BundleID = bundleID

	emitMaybe(p.Emit, Status("run", fmt.Sprintf("Launching %q", bundleID), nil))
	if err := p.simctlLaunch(ctx, sim.UDID, bundleID); err != nil {
		p.recordIssue(&res, tr, &PostBuildToolError{
			Step:       "launch",
			Err:        err,
			Suggestion: "Open the app from the simulator home screen to see why it failed to start.",
		})
	} else if err := tr.advance(StateLaunched); err != nil {
		return res, err
	}
	res.State = tr.state
	if res.State == StateLaunched {
		emitMaybe(p.Emit, Success("run", fmt.Sprintf("Successfully launched the app on %s", sim.DisplayName())))
	}
	return res, nil
}

// DeployToDevice builds for a physical device and hands the bundle to
// ios-deploy. A missing or failing ios-deploy leaves the result Degraded
// with an actionable hint; it is not an error.
func (p *Pipeline) DeployToDevice(ctx context.Context, dev Device, req BuildRequest) (DeployResult, error) {
	tr := newDeployTracker(p, "run")
	res := DeployResult{Target: dev, State: StateIdle}
	if err := tr.advance(StateTargetSelected); err != nil {
		return res, err
	}

	req.TargetUDID = dev.UDID
	req.Physical = true
	build, err := p.buildTracked(ctx, tr, req)
	res.State = tr.state
	if err != nil {
		return res, err
	}
	res.Build = build
	res.AppPath = build.AppPath

	if err := tr.advance(StateInstalling); err != nil {
		return res, err
	}
	iosDeploy, err := p.lookPath("ios-deploy")
	if err != nil {
		p.recordIssue(&res, tr, &PostBuildToolError{
			Step:       "install",
			Err:        errors.New("ios-deploy is not installed"),
			Suggestion: iosDeployHint,
		})
		res.State = tr.state
		return res, nil
	}

	emitMaybe(p.Emit, Status("run", fmt.Sprintf("Installing and launching your app on %s", dev.Name), nil))
	err = p.runLogged(ctx, "ios-deploy", CmdSpec{
		Path: iosDeploy,
		Args: []string{"--bundle", build.AppPath, "--id", dev.UDID, "--justlaunch"},
	})
	if err != nil {
		p.recordIssue(&res, tr, &PostBuildToolError{
			Step:       "install",
			Err:        err,
			Suggestion: "Failed to install the app on the device. " + iosDeployHint,
		})
		res.State = tr.state
		return res, nil
	}
	// ios-deploy installs and launches in one invocation.
	for _, s := range []DeployState{StateInstalled, StateLaunching, StateLaunched} {
		if err := tr.advance(s); err != nil {
			return res, err
		}
	}
	res.State = tr.state
	emitMaybe(p.Emit, Success("run", "Installed the app on the device."))
	return res, nil
}

func (p *Pipeline) buildTracked(ctx context.Context, tr *deployTracker, req BuildRequest) (BuildResult, error) {
	if err := tr.advance(StateBuilding); err != nil {
		return BuildResult{}, err
	}
	build, err := p.Build(ctx, req)
	if err != nil {
		if terr := tr.advance(StateFailed); terr != nil {
			p.log().Error("state transition", zap.Error(terr))
		}
		return BuildResult{}, err
	}
	if err := tr.advance(StateBuilt); err != nil {
		return BuildResult{}, err
	}
	return build, nil
}

// recordIssue reports a post-build failure and moves the run to Degraded.
func (p *Pipeline) recordIssue(res *DeployResult, tr *deployTracker, issue *PostBuildToolError) {
	res.Issues = append(res.Issues, issue)
	emitMaybe(p.Emit, Err("run", ErrorObject{
		Code:       "post_build_failed",
		Message:    issue.Error(),
		Suggestion: issue.Suggestion,
	}))
	if tr.state == StateDegraded {
		return
	}
	if err := tr.advance(StateDegraded); err != nil {
		p.log().Error("state transition", zap.Error(err))
	}
}

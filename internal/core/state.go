package core

import (
	"fmt"

	"go.uber.org/zap"
)

// DeployState is the position of a single run in the deploy lifecycle.
type DeployState string

const (
	StateIdle           DeployState = "idle"
	StateTargetSelected DeployState = "target_selected"
	StateBuilding       DeployState = "building"
	StateBuilt          DeployState = "built"
	StateInstalling     DeployState = "installing"
	StateInstalled      DeployState = "installed"
	StateLaunching      DeployState = "launching"
	StateLaunched       DeployState = "launched"
	StateFailed         DeployState = "failed"
	// StateDegraded means the app was built but a later step could not
	// complete. It is not terminal.
	StateDegraded DeployState = "degraded"
)

// IsTerminal reports whether no further transition is possible.
func IsTerminal(s DeployState) bool {
	return s == StateLaunched || s == StateFailed
}

// Transition moves *cur from `from` to `to`. It fails without mutating when
// *cur is not `from` or the edge is not allowed.
func Transition(cur *DeployState, from, to DeployState) error {
	if *cur != from {
		return fmt.Errorf("invalid transition: expected %s, got %s", from, *cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition: %s -> %s", from, to)
	}
	*cur = to
	return nil
}

func isAllowedTransition(from, to DeployState) bool {
	switch from {
	case StateIdle:
		return to == StateTargetSelected
	case StateTargetSelected:
		return to == StateBuilding
	case StateBuilding:
		return to == StateBuilt || to == StateFailed
	case StateBuilt:
		return to == StateInstalling
	case StateInstalling:
		return to == StateInstalled || to == StateDegraded
	case StateInstalled:
		return to == StateLaunching
	case StateLaunching:
		return to == StateLaunched || to == StateDegraded
	case StateDegraded:
		return to == StateLaunching
	default:
		return false
	}
}

// deployTracker owns the state of one run and reports every move.
type deployTracker struct {
	p     *Pipeline
	cmd   string
	state DeployState
}

func newDeployTracker(p *Pipeline, cmd string) *deployTracker {
	return &deployTracker{p: p, cmd: cmd, state: StateIdle}
}

func (t *deployTracker) advance(to DeployState) error {
	from := t.state
	if err := Transition(&t.state, from, to); err != nil {
		return err
	}
	t.p.log().Debug("deploy state", zap.String("from", string(from)), zap.String("to", string(to)))
	emitMaybe(t.p.Emit, Status(t.cmd, "", map[string]any{"state": string(to), "from": string(from)}))
	return nil
}

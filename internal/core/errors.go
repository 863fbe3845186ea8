package core

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a missing or unusable project directory or
// config source. Suggestion tells the user what to change.
type ConfigurationError struct {
	Msg        string
	Err        error
	Suggestion string
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// InventoryParseError reports a simulator inventory that could not be read.
type InventoryParseError struct {
	Err error
}

func (e *InventoryParseError) Error() string {
	return "Could not get the simulator list from Xcode. Please open Xcode and try running the project directly from there to resolve the remaining issues."
}

func (e *InventoryParseError) Unwrap() error { return e.Err }

// TargetNotFoundError carries every candidate so callers can list them.
type TargetNotFoundError struct {
	Selector   Selector
	Candidates []Device
}

func (e *TargetNotFoundError) NoDevices() bool { return len(e.Candidates) == 0 }

func (e *TargetNotFoundError) Error() string {
	if e.Selector.Kind == SelectSimulator {
		return fmt.Sprintf("No simulator available with name %q", e.Selector.Value)
	}
	if e.NoDevices() {
		return "No iOS devices connected."
	}
	var b strings.Builder
	switch e.Selector.Kind {
	case SelectUDID:
		fmt.Fprintf(&b, "Could not find device with the udid: %q.", e.Selector.Value)
	case SelectName:
		fmt.Fprintf(&b, "Could not find device with the name: %q.", e.Selector.Value)
	default:
		b.WriteString("More than one device is connected; pick one explicitly.")
	}
	b.WriteString("\nChoose one of the following:")
	for _, d := range e.Candidates {
		fmt.Fprintf(&b, "\n%s Udid: %s", d.DisplayName(), d.UDID)
	}
	return b.String()
}

// BuildToolError is returned when xcodebuild exits non-zero.
type BuildToolError struct {
	ExitCode    int
	Stderr      string
	Output      string
	ProjectName string
}

func (e *BuildToolError) Error() string {
	return fmt.Sprintf("Failed to build iOS project. We ran \"xcodebuild\" command but it exited with error code %d. To debug build logs further, consider building your app with Xcode.app, by opening %s.", e.ExitCode, e.ProjectName)
}

// PostBuildToolError records a failed install or launch step. It is collected,
// never returned from a run.
type PostBuildToolError struct {
	Step       string
	Err        error
	Suggestion string
}

func (e *PostBuildToolError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *PostBuildToolError) Unwrap() error { return e.Err }

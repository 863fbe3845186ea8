package core

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

type SelectorKind int

const (
	SelectUnspecified SelectorKind = iota
	SelectName
	SelectAny
	SelectUDID
	// SelectSimulator only appears in errors from the default simulator flow.
	SelectSimulator
)

// Selector says how the user asked for a target.
type Selector struct {
	Kind  SelectorKind
	Value string
}

func ByName(name string) Selector { return Selector{Kind: SelectName, Value: name} }
func ByUDID(udid string) Selector { return Selector{Kind: SelectUDID, Value: udid} }
func AnyDevice() Selector         { return Selector{Kind: SelectAny} }

func (s Selector) String() string {
	switch s.Kind {
	case SelectName:
		return "name " + s.Value
	case SelectUDID:
		return "udid " + s.Value
	case SelectAny:
		return "any"
	case SelectSimulator:
		return "simulator " + s.Value
	default:
		return "unspecified"
	}
}

// Match is the selected target. Implicit is set when the device was picked
// without the user naming it.
type Match struct {
	Device   Device
	Implicit bool
}

// MatchTarget picks exactly one device. Name and UDID lookups scan from the
// end of the list, so the last listed entry wins on duplicates.
func MatchTarget(devices []Device, sel Selector) (Match, error) {
	notFound := &TargetNotFoundError{Selector: sel, Candidates: devices}
	switch sel.Kind {
	case SelectUDID:
		if d, _, ok := lo.FindLastIndexOf(devices, func(d Device) bool { return d.UDID == sel.Value }); ok {
			return Match{Device: d}, nil
		}
	case SelectName:
		if d, _, ok := lo.FindLastIndexOf(devices, func(d Device) bool {
			return d.Name == sel.Value || d.DisplayName() == sel.Value
		}); ok {
			return Match{Device: d}, nil
		}
	case SelectAny:
		if len(devices) == 1 {
			return Match{Device: devices[0], Implicit: true}, nil
		}
	}
	return Match{}, notFound
}

const bootedSentinel = "booted"

var simNameVersionRE = regexp.MustCompile(`^(.+?) \(([^()]+)\)$`)

// ParseSimulatorName splits "iPhone 15 (17.2)" into name and version.
func ParseSimulatorName(s string) (name, version string) {
	s = strings.TrimSpace(s)
	if m := simNameVersionRE.FindStringSubmatch(s); m != nil {
		return m[1], m[2]
	}
	return s, ""
}

var phoneOrTVRuntimeRE = regexp.MustCompile(`(?i)\b(ios|tvos)\b`)

func isPhoneOrTVRuntime(d Device) bool {
	return phoneOrTVRuntimeRE.MatchString(d.Runtime + " " + d.OSVersion)
}

// FindMatchingSimulator implements the default simulator flow. An empty name
// or "booted" prefers a booted simulator and otherwise takes the first
// available one. A named lookup returns the first exact name match.
func FindMatchingSimulator(sims []Device, name string) (Device, bool) {
	wanted, version := ParseSimulatorName(name)
	anyName := wanted == "" || strings.EqualFold(wanted, bootedSentinel)

	var (
		match Device
		found bool
	)
	for _, d := range sims {
		if !d.Available || !isPhoneOrTVRuntime(d) {
			continue
		}
		if version != "" && !strings.HasSuffix(d.OSVersion, version) {
			continue
		}
		if anyName {
			if d.Booted() {
				return d, true
			}
			if !found {
				match, found = d, true
			}
			continue
		}
		if d.Name == wanted {
			return d, true
		}
	}
	return match, found
}

package core

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

type TargetType string

const (
	TargetSimulator TargetType = "simulator"
	TargetDevice    TargetType = "device"
)

type BootState string

const (
	BootBooted   BootState = "Booted"
	BootShutdown BootState = "Shutdown"
)

// Device is a snapshot of one physical device or simulator taken at enumeration time.
type Device struct {
	Name      string     `json:"name"`
	UDID      string     `json:"udid"`
	OSVersion string     `json:"osVersion,omitempty"`
	Runtime   string     `json:"runtime,omitempty"`
	Available bool       `json:"available"`
	State     BootState  `json:"state,omitempty"`
	Kind      TargetType `json:"kind"`
}

// DisplayName is "<name> (<osVersion>)", or the bare name when no version is known.
func (d Device) DisplayName() string {
	if d.OSVersion == "" {
		return d.Name
	}
	return d.Name + " (" + d.OSVersion + ")"
}

func (d Device) Booted() bool   { return d.State == BootBooted }
func (d Device) Physical() bool { return d.Kind == TargetDevice }

// knownDevicesHeader opens the device list printed by `instruments -s`.
const knownDevicesHeader = "Known Devices:"

var deviceLineRE = regexp.MustCompile(`^(.+?)(?: \(([^()]*)\))? [\[(]([0-9A-Fa-f-]{8,})[\])]$`)

// ParseDeviceList parses `xcrun xctrace list devices` (or the older
// `instruments -s`) output into physical devices. Simulator entries and
// malformed lines are skipped. Both tools list the host Mac as the first
// entry under their "Devices" header; that entry is not a deploy target and
// is dropped.
func ParseDeviceList(text string) []Device {
	devices := []Device{}
	section := "devices"
	hostPending := false
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "==") && strings.HasSuffix(line, "==") {
			section = strings.ToLower(strings.TrimSpace(strings.Trim(line, "=")))
			hostPending = section == "devices"
			continue
		}
		if strings.EqualFold(line, knownDevicesHeader) {
			section, hostPending = "devices", true
			continue
		}
		if strings.Contains(section, "simulator") {
			continue
		}
		if strings.HasSuffix(line, "(Simulator)") {
			continue
		}
		m := deviceLineRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if hostPending {
			hostPending = false
			continue
		}
		devices = append(devices, Device{
			Name:      strings.TrimSpace(m[1]),
			OSVersion: strings.TrimSpace(m[2]),
			UDID:      m[3],
			Available: !strings.Contains(section, "offline"),
			Kind:      TargetDevice,
		})
	}
	return devices
}

// ListPhysicalDevices runs the device enumerator and parses its output.
func (p *Pipeline) ListPhysicalDevices(ctx context.Context) ([]Device, error) {
	out, _, _, err := RunCapture(ctx, p.cmd(), CmdSpec{
		Path: "xcrun",
		Args: []string{"xctrace", "list", "devices"},
	})
	if err != nil {
		return nil, err
	}
	devs := ParseDeviceList(normalizeLines(out))
	p.log().Debug("physical devices enumerated", zap.Int("count", len(devs)))
	return devs, nil
}

// Some xcrun outputs can include carriage returns.
func normalizeLines(s string) string { return strings.ReplaceAll(s, "\r", "") }

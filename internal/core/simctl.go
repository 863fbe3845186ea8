package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

type simDevice struct {
	State string   `json:"state"`
	Name  string   `json:"name"`
	UDID  string   `json:"udid"`
	Avail flexBool `json:"isAvailable"`
	// Older Xcode versions use an availability string instead.
	Availability string `json:"availability"`
}

// flexBool accepts true/false as well as the legacy "YES"/"NO" strings.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(string(data), `"`)) {
	case "true", "yes":
		*b = true
	default:
		*b = false
	}
	return nil
}

var runtimeKeyRE = regexp.MustCompile(`^com\.apple\.CoreSimulator\.SimRuntime\.([^-]+)-(.+)$`)

// RuntimeVersion turns a simctl runtime key into "iOS 17.2". Legacy keys are returned unchanged.
func RuntimeVersion(key string) string {
	m := runtimeKeyRE.FindStringSubmatch(key)
	if m == nil {
		return key
	}
	return m[1] + " " + strings.ReplaceAll(m[2], "-", ".")
}

// ParseSimulatorInventory flattens `simctl list --json devices` output. The
// result keeps the document order of runtimes and devices.
func ParseSimulatorInventory(data []byte) ([]Device, error) {
	devices, err := parseSimulatorInventory(data)
	if err != nil {
		return nil, &InventoryParseError{Err: err}
	}
	return devices, nil
}

func parseSimulatorInventory(data []byte) ([]Device, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	devices := []Device{}
	found := false
	for dec.More() {
		key, err := stringToken(dec)
		if err != nil {
			return nil, err
		}
		if key != "devices" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			continue
		}
		found = true
		if err := expectDelim(dec, '{'); err != nil {
			return nil, fmt.Errorf("devices: %w", err)
		}
		for dec.More() {
			runtime, err := stringToken(dec)
			if err != nil {
				return nil, err
			}
			var sims []simDevice
			if err := dec.Decode(&sims); err != nil {
				return nil, fmt.Errorf("runtime %q: %w", runtime, err)
			}
			version := RuntimeVersion(runtime)
			for _, s := range sims {
				devices = append(devices, Device{
					Name:      s.Name,
					UDID:      s.UDID,
					OSVersion: version,
					Runtime:   runtime,
					Available: bool(s.Avail) || s.Availability == "(available)",
					State:     BootState(s.State),
					Kind:      TargetSimulator,
				})
			}
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New(`missing "devices" object`)
	}
	return devices, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return s, nil
}

// ListSimulators queries the simulator inventory. Both a failing query and an
// unparseable answer are reported as InventoryParseError.
func (p *Pipeline) ListSimulators(ctx context.Context) ([]Device, error) {
	out, _, _, err := RunCapture(ctx, p.cmd(), CmdSpec{
		Path: "xcrun",
		Args: []string{"simctl", "list", "--json", "devices"},
	})
	if err != nil {
		return nil, &InventoryParseError{Err: err}
	}
	sims, err := ParseSimulatorInventory([]byte(out))
	if err != nil {
		return nil, err
	}
	p.log().Debug("simulators enumerated", zap.Int("count", len(sims)))
	return sims, nil
}

// bootSimulator triggers a boot. simctl exits non-zero once the boot request
// has been issued for a device that is already booting or booted; only that
// exit status is swallowed.
func (p *Pipeline) bootSimulator(ctx context.Context, udid string) error {
	_, stderr, res, err := RunCapture(ctx, p.cmd(), CmdSpec{
		Path: "xcrun",
		Args: []string{"simctl", "boot", udid},
	})
	if err != nil && IsExitStatus(err) {
		p.log().Debug("ignoring simctl boot exit status",
			zap.String("udid", udid),
			zap.Int("exitCode", res.ExitCode),
			zap.String("stderr", strings.TrimSpace(stderr)))
		return nil
	}
	return err
}

// openSimulatorApp launches (or focuses) Simulator.app on udid. Safe to call
// when it is already running.
func (p *Pipeline) openSimulatorApp(ctx context.Context, udid string) error {
	devDir, _, _, err := RunCapture(ctx, p.cmd(), CmdSpec{Path: "xcode-select", Args: []string{"-p"}})
	if err != nil {
		return fmt.Errorf("xcode-select -p: %w", err)
	}
	app := filepath.Join(strings.TrimSpace(devDir), "Applications", "Simulator.app")
	_, err = p.cmd().Run(ctx, CmdSpec{
		Path: "open",
		Args: []string{app, "--args", "-CurrentDeviceUDID", udid},
	})
	return err
}

func (p *Pipeline) simctlInstall(ctx context.Context, udid, appPath string) error {
	return p.runLogged(ctx, "install", CmdSpec{
		Path: "xcrun",
		Args: []string{"simctl", "install", udid, appPath},
	})
}

func (p *Pipeline) simctlLaunch(ctx context.Context, udid, bundleID string) error {
	return p.runLogged(ctx, "launch", CmdSpec{
		Path: "xcrun",
		Args: []string{"simctl", "launch", udid, bundleID},
	})
}

// runLogged forwards the tool's output as log events.
func (p *Pipeline) runLogged(ctx context.Context, step string, spec CmdSpec) error {
	spec.StdoutLine = func(s string) { emitMaybe(p.Emit, Log("run", s)) }
	spec.StderrLine = func(s string) { emitMaybe(p.Emit, Log("run", s)) }
	p.log().Debug("running", zap.String("step", step), zap.String("cmd", formatCmd(spec.Path, spec.Args)))
	_, err := p.cmd().Run(ctx, spec)
	return err
}

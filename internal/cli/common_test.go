package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcbolt/iosrun/internal/core"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"config", &core.ConfigurationError{Msg: "iOS project folder not found"}, ExitConfig, "config_error"},
		{"inventory", &core.InventoryParseError{Err: errors.New("bad json")}, ExitInventory, "inventory_error"},
		{"simulator", &core.TargetNotFoundError{Selector: core.Selector{Kind: core.SelectSimulator, Value: "iPhone X"}}, ExitTarget, "target_not_found"},
		{"device", &core.TargetNotFoundError{Selector: core.ByName("Pixel")}, ExitTarget, "target_not_found"},
		{"build", &core.BuildToolError{ExitCode: 65, ProjectName: "App.xcworkspace"}, ExitBuild, "build_failed"},
		{"wrapped build", fmt.Errorf("run: %w", &core.BuildToolError{ExitCode: 65}), ExitBuild, "build_failed"},
		{"other", errors.New("boom"), ExitGeneric, "error"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			code, eo := classifyError(c.err)
			assert.Equal(t, c.code, code)
			assert.Equal(t, c.kind, eo.Code)
			assert.NotEmpty(t, eo.Message)
		})
	}
}

func TestClassifyConfigurationErrorUsesItsOwnHint(t *testing.T) {
	_, eo := classifyError(&core.ConfigurationError{Msg: "invalid bundler port 0", Suggestion: "Use a valid port."})
	assert.Equal(t, "Use a valid port.", eo.Suggestion)

	_, eo = classifyError(&core.ConfigurationError{Msg: "read config file"})
	assert.Empty(t, eo.Suggestion)
}

func TestClassifyErrorSuggestions(t *testing.T) {
	_, eo := classifyError(&core.TargetNotFoundError{Selector: core.AnyDevice()})
	assert.Contains(t, eo.Suggestion, "Connect a device")

	_, eo = classifyError(&core.InventoryParseError{Err: errors.New("unexpected EOF")})
	assert.Equal(t, "unexpected EOF", eo.Detail)
}

func TestClassifyBuildErrorKeepsStderrTail(t *testing.T) {
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	_, eo := classifyError(&core.BuildToolError{ExitCode: 65, Stderr: strings.Join(lines, "\n") + "\n"})
	detail := strings.Split(eo.Detail, "\n")
	require.Len(t, detail, 20)
	assert.Equal(t, "line 10", detail[0])
	assert.Equal(t, "line 29", detail[19])
}

func TestLastLines(t *testing.T) {
	assert.Equal(t, "a\nb", lastLines("a\nb\n", 5))
	assert.Equal(t, "c", lastLines("a\nb\nc", 1))
	assert.Equal(t, "", lastLines("", 3))
}

func TestExitErrorUnwraps(t *testing.T) {
	inner := &core.ConfigurationError{Msg: "bad"}
	err := error(ExitError{Code: ExitConfig, Err: inner})
	var ce *core.ConfigurationError
	assert.ErrorAs(t, err, &ce)
	assert.Equal(t, "bad", err.Error())
	assert.Equal(t, "command failed", ExitError{}.Error())
}

func TestRunCommandReportsMissingProjectAsJSON(t *testing.T) {
	for _, k := range []string{"RCT_METRO_PORT", "IOSRUN_PORT", "IOSRUN_PROJECT_PATH"} {
		t.Setenv(k, "")
	}
	chdir(t, t.TempDir())

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--json", "run", "--project-path", filepath.Join(t.TempDir(), "ios")})

	err := root.Execute()
	var ee ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ExitConfig, ee.Code)
	assert.True(t, ee.Reported)

	var ev core.Event
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &ev))
	assert.Equal(t, "error", ev.Type)
	assert.Equal(t, "run", ev.Cmd)
	require.NotNil(t, ev.Err)
	assert.Equal(t, "config_error", ev.Err.Code)
	assert.Contains(t, ev.Err.Message, "iOS project folder not found")
	assert.Contains(t, ev.Err.Suggestion, "--project-path")
}

func TestRunCommandReportsBadPortWithPortHint(t *testing.T) {
	t.Setenv("RCT_METRO_PORT", "")
	t.Setenv("IOSRUN_PORT", "")
	chdir(t, t.TempDir())

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--json", "run", "--port", "70000"})

	err := root.Execute()
	var ee ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ExitConfig, ee.Code)

	var ev core.Event
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &ev))
	require.NotNil(t, ev.Err)
	assert.Contains(t, ev.Err.Message, "invalid bundler port 70000")
	assert.NotContains(t, ev.Err.Suggestion, "--project-path")
	assert.Contains(t, ev.Err.Suggestion, "65535")
}

func TestRunCommandRejectsDeviceWithUDID(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "--device", "Jane", "--udid", "abc"})
	require.Error(t, root.Execute())
}

package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"RCT_METRO_PORT", "IOSRUN_PORT", "REACT_TERMINAL", "TERM_PROGRAM",
		"IOSRUN_TERMINAL", "IOSRUN_SIMULATOR", "IOSRUN_SCHEME", "IOSRUN_DEVICE",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "iosrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func runFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.String("simulator", "", "")
	fs.String("scheme", "", "")
	fs.String("device", "", "")
	fs.Lookup("device").NoOptDefVal = AnyDeviceValue
	fs.Int("port", 0, "")
	fs.Bool("no-packager", false, "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	chdir(t, t.TempDir())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	opts := cfg.RunOptions()
	assert.False(t, opts.DeviceSet)
	assert.True(t, opts.Packager)
	assert.Equal(t, 8081, opts.Port)
}

func TestLoadConfigReadsWorkingDirectoryFile(t *testing.T) {
	clearConfigEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".iosrun.yaml"), []byte("scheme: Staging\n"), 0o644))
	chdir(t, dir)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "Staging", cfg.Scheme)
}

func TestLoadConfigFileAndFlags(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfig(t, "project_path: app/ios\nsimulator: iPhone 15\nport: 9090\nno_packager: true\n")

	cfg, err := LoadConfig(path, runFlags(t, "--simulator", "iPad Air"))
	require.NoError(t, err)
	assert.Equal(t, "app/ios", cfg.ProjectPath)
	assert.Equal(t, "iPad Air", cfg.Simulator)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.NoPackager)
	assert.Equal(t, "Debug", cfg.Configuration)
}

func TestLoadConfigUnchangedFlagsDoNotOverrideFile(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfig(t, "scheme: FromFile\n")

	cfg, err := LoadConfig(path, runFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "FromFile", cfg.Scheme)
	assert.Equal(t, 8081, cfg.Port)
}

func TestLoadConfigBundlerEnvironment(t *testing.T) {
	clearConfigEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("RCT_METRO_PORT", "8088")
	t.Setenv("REACT_TERMINAL", "iTerm.app")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, 8088, cfg.Port)
	assert.Equal(t, "iTerm.app", cfg.Terminal)

	cfg, err = LoadConfig("", runFlags(t, "--port", "9000"))
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
}

func TestLoadConfigBareDeviceFlag(t *testing.T) {
	clearConfigEnv(t)
	chdir(t, t.TempDir())

	cfg, err := LoadConfig("", runFlags(t, "--device"))
	require.NoError(t, err)
	assert.Equal(t, AnyDeviceValue, cfg.Device)

	sel, ok := cfg.RunOptions().Selector()
	require.True(t, ok)
	assert.Equal(t, SelectAny, sel.Kind)
}

func TestLoadConfigErrors(t *testing.T) {
	clearConfigEnv(t)
	var ce *ConfigurationError

	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, configFileHint, ce.Suggestion)

	_, err = LoadConfig(writeConfig(t, "port: 70000\n"), nil)
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "invalid bundler port 70000")
	assert.Equal(t, portHint, ce.Suggestion)

	_, err = LoadConfig(writeConfig(t, "port: [1, 2\n"), nil)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, configFileHint, ce.Suggestion)

	_, err = LoadConfig(writeConfig(t, "port: not-a-number\n"), nil)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, configValuesHint, ce.Suggestion)
}

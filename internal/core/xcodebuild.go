package core

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// BuildRequest fully determines one xcodebuild invocation.
type BuildRequest struct {
	Project         Project
	Scheme          string
	Configuration   string
	TargetUDID      string
	Physical        bool
	DerivedDataPath string
	Env             map[string]string
}

// BuildResult only exists for builds that exited 0.
type BuildResult struct {
	ArtifactName string        `json:"artifactName"`
	AppPath      string        `json:"appPath"`
	Output       string        `json:"-"`
	ErrorOutput  string        `json:"-"`
	Duration     time.Duration `json:"duration"`
}

func DefaultDerivedDataPath(projectDir, scheme string) string {
	return filepath.Join(projectDir, "build", scheme)
}

func (r BuildRequest) derivedData() string {
	if r.DerivedDataPath != "" {
		return r.DerivedDataPath
	}
	return DefaultDerivedDataPath(r.Project.Dir, r.Scheme)
}

// XcodebuildArgs returns the arguments passed to `xcrun`.
func XcodebuildArgs(req BuildRequest) []string {
	containerFlag := "-project"
	if req.Project.IsWorkspace {
		containerFlag = "-workspace"
	}
	return []string{
		"xcodebuild",
		containerFlag, req.Project.Path,
		"-configuration", req.Configuration,
		"-scheme", req.Scheme,
		"-destination", "id=" + req.TargetUDID,
		"-derivedDataPath", req.derivedData(),
	}
}

var productNameRE = regexp.MustCompile(`(?m)export FULL_PRODUCT_NAME="?(.+)\.app"?$`)

// ExtractProductName finds the first FULL_PRODUCT_NAME export in build output.
func ExtractProductName(output string) (string, bool) {
	m := productNameRE.FindStringSubmatch(output)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// BuildProductPath is where xcodebuild leaves the .app for a derived data dir.
func BuildProductPath(derivedData, configuration, name string, physical bool) string {
	triplet := "iphonesimulator"
	switch {
	case physical:
		triplet = "iphoneos"
	case strings.Contains(strings.ToLower(name), "tvos"):
		triplet = "appletvsimulator"
	}
	return filepath.Join(derivedData, "Build", "Products", configuration+"-"+triplet, name+".app")
}

// BundlerEnv is the environment handed to the build so the app's scripts can
// find (or skip) the JS bundler.
func BundlerEnv(terminal string, port int, packager bool) map[string]string {
	env := map[string]string{"RCT_TERMINAL": terminal}
	if packager {
		env["RCT_METRO_PORT"] = strconv.Itoa(port)
	} else {
		env["RCT_NO_LAUNCH_PACKAGER"] = "true"
	}
	return env
}

// Build runs xcodebuild to completion. A non-zero exit is a *BuildToolError
// carrying the captured stderr.
func (p *Pipeline) Build(ctx context.Context, req BuildRequest) (BuildResult, error) {
	args := XcodebuildArgs(req)
	emitMaybe(p.Emit, Status("build", fmt.Sprintf("Building (using \"%s\")", formatCmd("xcrun", args)), map[string]any{
		"scheme":        req.Scheme,
		"configuration": req.Configuration,
		"udid":          req.TargetUDID,
	}))
	p.log().Debug("xcodebuild", zap.Strings("args", args), zap.Any("env", req.Env))

	sink := newBuildLogSink(ctx, p, "build")
	var out, errOut strings.Builder
	start := p.clock().Now()
	res, err := p.cmd().Run(ctx, CmdSpec{
		Path: "xcrun",
		Args: args,
		Dir:  req.Project.Dir,
		Env:  req.Env,
		StdoutLine: func(line string) {
			out.WriteString(line)
			out.WriteString("\n")
			sink.HandleLine(line)
		},
		StderrLine: func(line string) {
			errOut.WriteString(line)
			errOut.WriteString("\n")
			if p.Verbose {
				emitMaybe(p.Emit, Log("build", line))
			}
		},
	})
	sink.Finalize(err, res.ExitCode)
	dur := p.clock().Since(start)

	if err != nil {
		if !IsExitStatus(err) {
			return BuildResult{}, fmt.Errorf("run xcodebuild: %w", err)
		}
		return BuildResult{}, &BuildToolError{
			ExitCode:    res.ExitCode,
			Stderr:      errOut.String(),
			Output:      out.String(),
			ProjectName: req.Project.Name,
		}
	}

	name, ok := ExtractProductName(out.String())
	if !ok {
		p.log().Debug("FULL_PRODUCT_NAME not found; using scheme", zap.String("scheme", req.Scheme))
		name = req.Scheme
	}
	result := BuildResult{
		ArtifactName: name,
		AppPath:      BuildProductPath(req.derivedData(), req.Configuration, name, req.Physical),
		Output:       out.String(),
		ErrorOutput:  errOut.String(),
		Duration:     dur,
	}
	emitMaybe(p.Emit, Success("build", fmt.Sprintf("Successfully built the app in %s", dur.Round(time.Millisecond))))
	return result, nil
}

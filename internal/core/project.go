package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xcbolt/iosrun/internal/util"
)

// Project is the Xcode container a run builds. Path points at the
// .xcworkspace when one exists, otherwise at the .xcodeproj.
type Project struct {
	Dir            string   `json:"dir"`
	Name           string   `json:"name"`
	Path           string   `json:"path"`
	IsWorkspace    bool     `json:"isWorkspace"`
	InferredScheme string   `json:"inferredScheme"`
	SharedSchemes  []string `json:"sharedSchemes,omitempty"`
}

const projectPathHint = "Pass --project-path pointing at the folder that contains the .xcodeproj or .xcworkspace."

// FindProject looks for an Xcode container directly inside dir.
func FindProject(dir string) (Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Project{}, &ConfigurationError{Msg: "resolve project path", Err: err, Suggestion: projectPathHint}
	}
	if fi, err := os.Stat(abs); err != nil || !fi.IsDir() {
		return Project{}, &ConfigurationError{Msg: fmt.Sprintf("iOS project folder not found. Are you sure this is a React Native project? (looked in %s)", abs), Suggestion: projectPathHint}
	}

	workspaces, err := util.ListFilesWithSuffix(abs, ".xcworkspace")
	if err != nil {
		return Project{}, &ConfigurationError{Msg: "read project folder", Err: err, Suggestion: projectPathHint}
	}
	projects, err := util.ListFilesWithSuffix(abs, ".xcodeproj")
	if err != nil {
		return Project{}, &ConfigurationError{Msg: "read project folder", Err: err, Suggestion: projectPathHint}
	}

	var p Project
	switch {
	case len(workspaces) > 0:
		p = Project{Path: workspaces[0], IsWorkspace: true}
	case len(projects) > 0:
		p = Project{Path: projects[0]}
	default:
		return Project{}, &ConfigurationError{Msg: fmt.Sprintf("Could not find Xcode project files in %q folder", abs), Suggestion: projectPathHint}
	}
	p.Dir = abs
	p.Name = filepath.Base(p.Path)
	p.InferredScheme = strings.TrimSuffix(p.Name, filepath.Ext(p.Name))
	p.SharedSchemes = sharedSchemes(p.Path)
	return p, nil
}

// HasScheme reports whether scheme is shared in the container. Containers
// that share no schemes accept anything, since Xcode autocreates them.
func (p Project) HasScheme(scheme string) bool {
	if len(p.SharedSchemes) == 0 {
		return true
	}
	for _, s := range p.SharedSchemes {
		if s == scheme {
			return true
		}
	}
	return false
}

func sharedSchemes(containerPath string) []string {
	dir := filepath.Join(containerPath, "xcshareddata", "xcschemes")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".xcscheme") {
			continue
		}
		if name := strings.TrimSuffix(e.Name(), ".xcscheme"); name != "" {
			out = append(out, name)
		}
	}
	return out
}

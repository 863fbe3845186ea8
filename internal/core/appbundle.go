package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"howett.net/plist"

	"github.com/xcbolt/iosrun/internal/util"
)

type AppBundleInfo struct {
	BundleID    string `json:"bundleId"`
	DisplayName string `json:"displayName,omitempty"`
	BundleName  string `json:"bundleName,omitempty"`
	Executable  string `json:"executable,omitempty"`
	Version     string `json:"version,omitempty"`
}

// ReadAppBundleInfo reads <app>/Info.plist. Binary and XML plists both work.
func ReadAppBundleInfo(appPath string) (AppBundleInfo, error) {
	infoPlist := filepath.Join(appPath, "Info.plist")
	if !util.Exists(infoPlist) {
		return AppBundleInfo{}, fmt.Errorf("no Info.plist in %s", appPath)
	}
	b, err := os.ReadFile(infoPlist)
	if err != nil {
		return AppBundleInfo{}, fmt.Errorf("read Info.plist: %w", err)
	}
	var m map[string]any
	if _, err := plist.Unmarshal(b, &m); err != nil {
		return AppBundleInfo{}, fmt.Errorf("parse Info.plist: %w", err)
	}
	get := func(key string) string {
		if s, ok := m[key].(string); ok {
			return s
		}
		return ""
	}
	return AppBundleInfo{
		BundleID:    get("CFBundleIdentifier"),
		DisplayName: get("CFBundleDisplayName"),
		BundleName:  get("CFBundleName"),
		Executable:  get("CFBundleExecutable"),
		Version:     get("CFBundleShortVersionString"),
	}, nil
}

// ReadBundleID returns CFBundleIdentifier, failing when it is absent.
func ReadBundleID(appPath string) (string, error) {
	info, err := ReadAppBundleInfo(appPath)
	if err != nil {
		return "", err
	}
	if info.BundleID == "" {
		return "", errors.New("CFBundleIdentifier missing from Info.plist")
	}
	return info.BundleID, nil
}

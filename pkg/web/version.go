package web

import "sync"

// BuildInfo identifies the running binary
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

var (
	buildMu   sync.RWMutex
	buildInfo = BuildInfo{Version: "dev", Commit: "unknown", BuildTime: "unknown"}
)

// SetVersionInfo sets the build information reported by /api/status.
// Empty values keep their defaults.
func SetVersionInfo(version, commit, buildTime string) {
	buildMu.Lock()
	defer buildMu.Unlock()
	if version != "" {
		buildInfo.Version = version
	}
	if commit != "" {
		buildInfo.Commit = commit
	}
	if buildTime != "" {
		buildInfo.BuildTime = buildTime
	}
}

// GetVersionInfo returns the current build information
func GetVersionInfo() BuildInfo {
	buildMu.RLock()
	defer buildMu.RUnlock()
	return buildInfo
}

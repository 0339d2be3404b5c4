// Package version reports build information. Release builds set the
// variables below with -ldflags; other builds fall back to the VCS stamp
// the Go toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/conneroisu/assetwatch/internal/version.Version=v1.2.0"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string    `json:"version" yaml:"version"`
	GitCommit string    `json:"git_commit" yaml:"git_commit"`
	BuildTime time.Time `json:"build_time" yaml:"build_time"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	Platform  string    `json:"platform" yaml:"platform"`
	Dirty     bool      `json:"dirty" yaml:"dirty"`
}

type vcsStamp struct {
	revision string
	time     time.Time
	modified bool
	module   string
}

var readBuildInfo = debug.ReadBuildInfo

func stamp() vcsStamp {
	var s vcsStamp

	info, ok := readBuildInfo()
	if !ok {
		return s
	}

	if v := info.Main.Version; v != "" && v != "(devel)" {
		s.module = v
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			s.revision = setting.Value
		case "vcs.time":
			s.time, _ = time.Parse(time.RFC3339, setting.Value)
		case "vcs.modified":
			s.modified = setting.Value == "true"
		}
	}

	return s
}

// GetBuildInfo returns comprehensive build information
func GetBuildInfo() *BuildInfo {
	s := stamp()

	info := &BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Dirty:     s.modified,
	}

	if info.Version == "" || info.Version == "dev" {
		switch {
		case s.module != "":
			info.Version = s.module
		case len(s.revision) >= 7:
			info.Version = "dev-" + s.revision[:7]
		default:
			info.Version = "dev"
		}
	}

	if info.GitCommit == "" || info.GitCommit == "unknown" {
		info.GitCommit = "unknown"
		if s.revision != "" {
			info.GitCommit = s.revision
		}
	}

	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		info.BuildTime = t
	} else {
		info.BuildTime = s.time
	}

	return info
}

// GetShortVersion returns a short version string suitable for display
func GetShortVersion() string {
	info := GetBuildInfo()

	if IsRelease() && len(info.GitCommit) >= 7 {
		return fmt.Sprintf("%s (%s)", info.Version, info.GitCommit[:7])
	}

	return info.Version
}

// GetDetailedVersion returns one "Key: value" line per build attribute.
func GetDetailedVersion() string {
	info := GetBuildInfo()

	lines := []string{"Version: " + info.Version}
	if info.GitCommit != "unknown" {
		commit := info.GitCommit
		if info.Dirty {
			commit += " (dirty)"
		}
		lines = append(lines, "Commit: "+commit)
	}
	if !info.BuildTime.IsZero() {
		lines = append(lines, "Built: "+info.BuildTime.Format(time.RFC3339))
	}
	lines = append(lines, "Go: "+info.GoVersion, "Platform: "+info.Platform)

	return strings.Join(lines, "\n")
}

// IsRelease reports whether this is a tagged build.
func IsRelease() bool {
	v := GetBuildInfo().Version
	return v != "dev" && !strings.HasPrefix(v, "dev-")
}

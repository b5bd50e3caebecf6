// Package version carries build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Name is the application name used in banners and the user agent.
const Name = "dropzone"

var (
	// Version is the application version, set via ldflags during build.
	Version = "dev"
	// GitCommit is the git commit hash, set via ldflags during build.
	GitCommit = "unknown"
	// BuildDate is the build timestamp, set via ldflags during build.
	BuildDate = "unknown"
	// BuildID is the build identifier, set via ldflags during build.
	BuildID = "unknown"
)

// Info contains version and build metadata.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	BuildID   string `json:"build_id"`
	GoVersion string `json:"go_version"`
	Compiler  string `json:"compiler"`
	Platform  string `json:"platform"`
}

// Get returns version and build information. Binaries built without
// ldflags (go install) fall back to the VCS stamp of the Go build info.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		BuildID:   BuildID,
		GoVersion: runtime.Version(),
		Compiler:  runtime.Compiler,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		applyBuildInfo(&info, bi)
	}
	return info
}

func applyBuildInfo(info *Info, bi *debug.BuildInfo) {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "unknown" {
				info.BuildDate = s.Value
			}
		}
	}
}

// Banner returns a one-line description such as "dropzone dev (abc1234, linux/amd64)".
func Banner() string {
	info := Get()
	commit := info.GitCommit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s %s (%s, %s)", Name, info.Version, commit, info.Platform)
}

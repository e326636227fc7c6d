// Package version exposes the build identity stamped into the weft binary.
// Release builds set the variables through -ldflags; development builds fall
// back to what the Go toolchain recorded about the checkout.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/weft-dev/weft/internal/version.Version=v1.2.3"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info is the build identity in one marshalable piece.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build info, preferring ldflags values and falling back to
// the module's own debug build info.
func Get() Info {
	return Info{
		Version:   currentVersion(),
		GitCommit: commit(),
		BuildTime: buildTime(),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Short returns the one-line form used in logs and page footers:
// "v1.2.3 (abc1234)" for stamped builds, "dev-abc1234" or "dev" otherwise.
func Short() string {
	v := currentVersion()
	c := commit()

	if len(c) >= 7 && c != "unknown" {
		if v == "dev" {
			return "dev-" + c[:7]
		}
		return fmt.Sprintf("%s (%s)", v, c[:7])
	}

	return v
}

// Detailed returns the multi-line form printed by `weft version`.
func Detailed() string {
	info := Get()

	lines := []string{
		"version: " + info.Version,
		"commit:  " + info.GitCommit,
	}
	if info.BuildTime != "" {
		lines = append(lines, "built:   "+info.BuildTime)
	}
	lines = append(lines,
		"go:      "+info.GoVersion,
		"target:  "+info.Platform,
	)

	return strings.Join(lines, "\n")
}

func currentVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		if bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			return bi.Main.Version
		}
	}

	return "dev"
}

func commit() string {
	if GitCommit != "" && GitCommit != "unknown" {
		return GitCommit
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}

	return "unknown"
}

func buildTime() string {
	if BuildTime != "" && BuildTime != "unknown" {
		return BuildTime
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.time" {
				return s.Value
			}
		}
	}

	return ""
}

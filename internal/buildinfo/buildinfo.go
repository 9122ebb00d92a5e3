// Package buildinfo exposes version metadata stamped at link time.
package buildinfo

import (
	"fmt"
	"runtime"
	"time"
)

// Stamped via -ldflags "-X .../buildinfo.Version=..." in release builds;
// a plain `go build` leaves the dev defaults.
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitBranch = "unknown"
	BuildTime = "unknown"
)

var started = time.Now()

// Uptime reports how long this process has been running, to the second.
func Uptime() time.Duration {
	return time.Since(started).Truncate(time.Second)
}

// Info collects build and runtime metadata for the version endpoint and
// the version subcommand.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"git_branch": GitBranch,
		"build_time": BuildTime,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"uptime":     Uptime().String(),
	}
}

// String is the one-line form used in startup logs.
func String() string {
	return fmt.Sprintf("AIAgent %s (%s@%s) built %s", Version, GitCommit, GitBranch, BuildTime)
}

// UserAgent identifies outbound HTTP requests to the model endpoint.
func UserAgent() string {
	return fmt.Sprintf("AIAgent/%s (%s; %s)", Version, runtime.GOOS, runtime.GOARCH)
}

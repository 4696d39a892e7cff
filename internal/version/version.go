// Package version holds build metadata injected via ldflags:
//
//	-X github.com/kailas-cloud/docvault/internal/version.Version=v1.2.0
package version

import (
	"fmt"
	"runtime"
)

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info is a snapshot of the build metadata.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
}

// Get returns the current build metadata.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
	}
}

// Short returns the version with an abbreviated commit, e.g. "v1.2.0+3f9a1c2".
func (i Info) Short() string {
	if i.Commit == "" || i.Commit == "unknown" {
		return i.Version
	}
	commit := i.Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return i.Version + "+" + commit
}

func (i Info) String() string {
	return fmt.Sprintf("docvault %s (commit %s, built %s, %s)", i.Version, i.Commit, i.Date, i.GoVersion)
}

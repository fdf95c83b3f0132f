// Package buildinfo carries version information stamped at link time:
//
//	go build -ldflags "-X github.com/jwulff/stmtimport/internal/buildinfo.Version=v0.3.0"
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// String returns the version line printed by --version.
func String() string {
	commit := Commit
	if commit == "" {
		commit = vcsRevision()
	}
	s := Version
	if commit != "" {
		if len(commit) > 12 {
			commit = commit[:12]
		}
		s += " (" + commit + ")"
	}
	if Date != "" {
		s += fmt.Sprintf(" built %s", Date)
	}
	return s
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

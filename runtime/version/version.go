// Package version reports the BlueStar build. The variables can be set at
// build time:
//
//	go build -ldflags "-X github.com/domini04/bluestar/runtime/version.version=0.3.0 \
//	  -X github.com/domini04/bluestar/runtime/version.gitCommit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

const (
	devVersion     = "dev"
	shortCommitLen = 7
	vcsRevisionKey = "vcs.revision"
	vcsModifiedKey = "vcs.modified"
)

// Build-time variables.
var (
	version   = devVersion
	gitCommit = ""
	buildDate = ""
)

// Info describes the running binary.
type Info struct {
	Version   string
	Commit    string
	Dirty     bool
	BuildDate string
}

// Get returns the build information, falling back to the module build info
// when the ldflags were not set.
func Get() Info {
	info := Info{Version: version, Commit: gitCommit, BuildDate: buildDate}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == devVersion && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case vcsRevisionKey:
			if info.Commit == "" && s.Value != "" {
				info.Commit = s.Value[:min(shortCommitLen, len(s.Value))]
			}
		case vcsModifiedKey:
			// Only meaningful when the commit also came from build info.
			info.Dirty = gitCommit == "" && s.Value == "true"
		}
	}
	return info
}

// String formats the info for `bluestar version`.
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "bluestar %s", i.Version)
	if i.Commit != "" {
		fmt.Fprintf(&b, "\ncommit: %s", i.Commit)
		if i.Dirty {
			b.WriteString(" (dirty)")
		}
	}
	if i.BuildDate != "" {
		fmt.Fprintf(&b, "\nbuilt: %s", i.BuildDate)
	}
	return b.String()
}

// LogAttrs returns the info as slog key/value pairs.
func (i Info) LogAttrs() []any {
	attrs := []any{"version", i.Version}
	if i.Commit != "" {
		attrs = append(attrs, "commit", i.Commit)
	}
	if i.Dirty {
		attrs = append(attrs, "dirty", true)
	}
	if i.BuildDate != "" {
		attrs = append(attrs, "built", i.BuildDate)
	}
	return attrs
}

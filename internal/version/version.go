// Package version carries the build identity of tvfilter.
//
// The variables below are set at link time:
//
//	go build -ldflags "-X github.com/jmylchreest/tvfilter/internal/version.Version=x.y.z \
//	                   -X github.com/jmylchreest/tvfilter/internal/version.Commit=$(git rev-parse HEAD) \
//	                   -X github.com/jmylchreest/tvfilter/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
)

// ApplicationName is the canonical name of this application.
const ApplicationName = "tvfilter"

const (
	devVersion    = "dev"
	unknownValue  = "unknown"
	shortSHALen   = 8
	snapshotLabel = "-SNAPSHOT"
)

// Link-time values. Prereleases look like "1.2.4-SNAPSHOT.abc1234".
var (
	Version = devVersion
	Commit  = unknownValue
	Date    = unknownValue
)

// Channel classifies a build.
type Channel string

const (
	ChannelDev      Channel = "dev"
	ChannelSnapshot Channel = "snapshot"
	ChannelRelease  Channel = "release"
)

// Info is the build identity as reported by `tvfilter version --json`.
type Info struct {
	Version   string  `json:"version"`
	Commit    string  `json:"commit"`
	Date      string  `json:"date"`
	Channel   Channel `json:"channel"`
	GoVersion string  `json:"go_version"`
	Platform  string  `json:"platform"`
}

// GetInfo snapshots the current build identity.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		Channel:   BuildChannel(),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// ShortCommit returns the abbreviated commit, or "" when it is not known.
func (i Info) ShortCommit() string {
	if i.Commit == unknownValue || len(i.Commit) < shortSHALen {
		return ""
	}
	return i.Commit[:shortSHALen]
}

// BuildChannel reports whether this is a dev, snapshot or release build.
func BuildChannel() Channel {
	switch {
	case Version == devVersion:
		return ChannelDev
	case strings.Contains(Version, snapshotLabel):
		return ChannelSnapshot
	default:
		return ChannelRelease
	}
}

// String is the long form printed by the version command.
func String() string {
	info := GetInfo()
	var b strings.Builder
	fmt.Fprintf(&b, "%s version %s (", ApplicationName, info.Version)
	if sha := info.ShortCommit(); sha != "" {
		fmt.Fprintf(&b, "commit: %s, built: %s, ", sha, info.Date)
	}
	fmt.Fprintf(&b, "%s, %s)", info.GoVersion, info.Platform)
	return b.String()
}

// Short is used for the root command's --version flag.
func Short() string {
	if sha := GetInfo().ShortCommit(); sha != "" {
		return fmt.Sprintf("%s %s (%s)", ApplicationName, Version, sha)
	}
	return ApplicationName + " " + Version
}

// UserAgent identifies outbound HTTP requests.
func UserAgent() string {
	return ApplicationName + "/" + Version
}

// JSON renders GetInfo as an indented JSON document.
func JSON() string {
	data, err := json.MarshalIndent(GetInfo(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

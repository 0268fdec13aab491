package version

import (
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"time"
)

const (
	revisionKey        = "vcs.revision"
	commitTimestampKey = "vcs.time"
	modifiedKey        = "vcs.modified"
)

// Info describes the build the running binary came from.
type Info struct {
	GitCommit       string    `json:"git_commit"`
	CommitTimestamp time.Time `json:"commit_timestamp"`
	Modified        bool      `json:"modified"`
	GoVersion       string    `json:"go_version"`
	Platform        string    `json:"platform"`
}

var (
	buildSettings = sync.OnceValue(func() map[string]string {
		settings := make(map[string]string)
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				settings[setting.Key] = setting.Value
			}
		}
		return settings
	})

	// GitCommit returns the VCS revision embedded by the Go toolchain, or an
	// empty string when the binary was built outside a repository.
	GitCommit = sync.OnceValue(func() string {
		return buildSettings()[revisionKey]
	})

	// CommitTimestamp returns the time of the embedded revision. The zero time
	// is returned when the value is missing or malformed.
	CommitTimestamp = sync.OnceValue(func() time.Time {
		t, err := time.Parse(time.RFC3339, buildSettings()[commitTimestampKey])
		if err != nil {
			return time.Time{}
		}
		return t
	})

	// IsModified reports whether the working tree had uncommitted changes at build time.
	IsModified = sync.OnceValue(func() bool {
		modified, err := strconv.ParseBool(buildSettings()[modifiedKey])
		return err == nil && modified
	})
)

// Runtime returns the Go version and platform, e.g. "go1.24.1 linux/amd64".
func Runtime() string {
	return runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH
}

// Current collects the build information of the running binary.
func Current() Info {
	return Info{
		GitCommit:       GitCommit(),
		CommitTimestamp: CommitTimestamp(),
		Modified:        IsModified(),
		GoVersion:       runtime.Version(),
		Platform:        runtime.GOOS + "/" + runtime.GOARCH,
	}
}

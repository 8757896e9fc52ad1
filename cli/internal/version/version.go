package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/kzar79/massive-go/schema"
)

// Set with -ldflags "-X github.com/kzar79/massive-go/cli/internal/version.Version=...".
var (
	Version   = "0.1.0"
	BuildDate = ""
	GitCommit = ""
)

// Info describes the running binary.
type Info struct {
	Version     string `json:"version" yaml:"version"`
	BuildDate   string `json:"build_date" yaml:"build_date"`
	GitCommit   string `json:"git_commit" yaml:"git_commit"`
	Modified    bool   `json:"modified,omitempty" yaml:"modified,omitempty"`
	GoVersion   string `json:"go_version" yaml:"go_version"`
	Platform    string `json:"platform" yaml:"platform"`
	MinPostgres string `json:"min_postgres" yaml:"min_postgres"`
}

// Get returns version information. Commit and date fall back to the VCS
// stamp the go tool embeds when the linker flags were not set.
func Get() Info {
	info := Info{
		Version:     Version,
		BuildDate:   BuildDate,
		GitCommit:   GitCommit,
		GoVersion:   runtime.Version(),
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
		MinPostgres: schema.MinimumVersion.String(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = s.Value
				}
			case "vcs.time":
				if info.BuildDate == "" {
					info.BuildDate = s.Value
				}
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}
	if info.GitCommit == "" {
		info.GitCommit = "unknown"
	}
	if info.BuildDate == "" {
		info.BuildDate = "unknown"
	}
	return info
}

// String is the one-line form used by --version.
func (i Info) String() string {
	return fmt.Sprintf("massive %s (%s, %s)", i.Version, short(i.GitCommit), i.Platform)
}

// FullString lists every field, one per line.
func (i Info) FullString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "massive %s\n", i.Version)
	commit := i.GitCommit
	if i.Modified {
		commit += " (modified)"
	}
	fmt.Fprintf(&b, "  commit:       %s\n", commit)
	fmt.Fprintf(&b, "  built:        %s\n", i.BuildDate)
	fmt.Fprintf(&b, "  go:           %s %s\n", i.GoVersion, i.Platform)
	fmt.Fprintf(&b, "  postgres:     %s or later", i.MinPostgres)
	return b.String()
}

func short(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}

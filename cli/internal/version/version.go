// Package version reports the build of the aql binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/satishbabariya/aql-go/catalog"
)

// Set with -ldflags "-X". Unset values are read from the embedded build info.
var (
	Version   = ""
	BuildDate = ""
	GitCommit = ""
)

// Info holds version information
type Info struct {
	Version        string
	BuildDate      string
	GitCommit      string
	Modified       bool
	GoVersion      string
	Platform       string
	CatalogFormats string
}

// Get returns version information
func Get() Info {
	info := Info{
		Version:        Version,
		BuildDate:      BuildDate,
		GitCommit:      GitCommit,
		GoVersion:      runtime.Version(),
		Platform:       runtime.GOOS + "/" + runtime.GOARCH,
		CatalogFormats: catalog.SupportedFormats,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fromBuildInfo(&info, bi)
	}
	if info.Version == "" {
		info.Version = "devel"
	}
	return info
}

func fromBuildInfo(info *Info, bi *debug.BuildInfo) {
	if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = strings.TrimPrefix(bi.Main.Version, "v")
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = s.Value[:min(len(s.Value), 12)]
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

// String returns the one-line form used by --version.
func (i Info) String() string {
	return fmt.Sprintf("aql version %s (%s %s)", i.Version, i.Platform, i.GoVersion)
}

// FullString returns a detailed version string
func (i Info) FullString() string {
	commit := orUnknown(i.GitCommit)
	if i.Modified {
		commit += " (modified)"
	}
	return fmt.Sprintf(`aql version %s
Build Date: %s
Git Commit: %s
Platform: %s
Go Version: %s
Catalog Formats: %s`, i.Version, orUnknown(i.BuildDate), commit, i.Platform, i.GoVersion, i.CatalogFormats)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

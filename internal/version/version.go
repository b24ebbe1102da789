package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Set via ldflags at build time
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// BuildInfo describes the running uitest binary
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	Platform  string
}

// Info returns version information. Binaries built with `go install` carry no
// ldflags, so the module version recorded by the toolchain is used instead.
func Info() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if info.Version == "dev" {
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
	}
	return info
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("uitest %s (%s, built %s, %s %s)", b.Version, b.Commit, b.BuildDate, b.GoVersion, b.Platform)
}

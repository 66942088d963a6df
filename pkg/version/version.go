// Package version exposes build metadata stamped at link time.
package version

import "runtime/debug"

// Populated via -ldflags at release build time.
var (
	// Version is the semantic release version.
	Version = "dev"
	// Commit is the VCS revision the binary was built from.
	Commit = "unknown"
	// Date is the build timestamp.
	Date = "unknown"
)

// Init fills missing fields from the embedded build info when the
// binary was built without ldflags.
func Init() {
	if Commit != "unknown" {
		return
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			Commit = setting.Value
		}
	}
}

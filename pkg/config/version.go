// Package config carries the build identity stamped into the binary.
package config

import (
	"fmt"
	"runtime"
)

// Populated at build time via -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns the full version line, as printed by the version
// subcommand and the startup log.
func String() string {
	return fmt.Sprintf("argus-server %s (%s) built %s with %s",
		Version, Commit, BuildTime, runtime.Version())
}

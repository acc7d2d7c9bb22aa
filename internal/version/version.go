package version

import "fmt"

// These variables are set at build time via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// String returns the version banner used by the CLI and telemetry.
func String() string {
	return fmt.Sprintf("%s (commit: %s)", Version, shortCommit())
}

func shortCommit() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}
	return Commit
}

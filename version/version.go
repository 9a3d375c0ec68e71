// Package version holds build metadata stamped in via -ldflags.
package version

import "runtime"

var (
	// GitRelease is the release tag or version string.
	GitRelease = "dev"

	// GitCommit is the git commit hash the binary was built from.
	GitCommit = "unknown"

	// GitCommitDate is the commit date.
	GitCommitDate = "unknown"

	// GoInfo is the Go toolchain version used for the build.
	GoInfo = runtime.Version()
)

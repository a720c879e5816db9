// SPDX-License-Identifier: MIT

// Package version carries build metadata injected through -ldflags.
package version

var (
	// Version is the current application version.
	Version = "v0.3.0"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String renders the version line printed by `asentry version`.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}

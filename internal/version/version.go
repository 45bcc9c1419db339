// Package version exposes build-time version information.
package version

import "fmt"

// Set via -ldflags at build time; defaults are for local development.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Info returns a human-readable one-line version description.
func Info() string {
	return fmt.Sprintf("fleetpulse %s (commit %s, built %s)", Version, Commit, Date)
}

// Map returns version fields for JSON responses.
func Map() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
	}
}

// Package buildinfo carries identifiers stamped at link time via -ldflags.
package buildinfo

var (
	// Version is the release version of the binary.
	Version = "dev"
	// Build is the VCS revision the binary was built from.
	Build = "unknown"
)

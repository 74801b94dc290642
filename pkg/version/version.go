// Package version exposes the build version of the dcmmove binary.
package version

// version is the semantic version of the current build. It is overridden at
// build time via -ldflags "-X github.com/pacsops/dcmmove/pkg/version.version=...".
var version = "0.1.0-dev" //nolint:gochecknoglobals // Set by the linker at build time

// GetVersion returns the version string for the current build.
func GetVersion() string {
	return version
}

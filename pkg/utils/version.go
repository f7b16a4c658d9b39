// Package utils holds small helpers shared by the docchat commands that do
// not warrant a package of their own.
package utils

// Build metadata reported by "docchat version". Release builds stamp these
// with -ldflags "-X" from the dagger BuildRelease pipeline; local builds keep
// the defaults.
var (
	// Version is the release tag, e.g. "v0.4.1".
	Version = "dev"

	// Sha is the git commit the binary was built from.
	Sha = "HEAD"

	// Buildtime is the RFC 3339 build timestamp.
	Buildtime = "dev"
)

// IsRelease reports whether the binary was stamped by a release build.
func IsRelease() bool {
	return Version != "dev"
}

// Package version carries build identifiers set with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/banshee-data/lidarsim/internal/version.Version=v0.3.0"
package version

import "fmt"

var (
	// Version is the release tag.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String formats the build identifiers for logs and -version output.
func String() string {
	return fmt.Sprintf("%s (%s, built %s)", Version, GitSHA, BuildTime)
}

// Package build holds the version information stamped in at link time.
package build

const ProjectName = "scientist"

// These are overridden with -ldflags "-X github.com/openfga/scientist/internal/build.Version=..."
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

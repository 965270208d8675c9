package version

var (
	// Version is the conversion routine version, stamped into the CIF header
	Version = "0.1"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

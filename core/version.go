package core

// Build information, injected with:
//
//	go build -ldflags "-X github.com/sinvec/gimp-kandinsky/core.Version=$(git describe --tags --always) \
//	    -X github.com/sinvec/gimp-kandinsky/core.GitCommit=$(git rev-parse --short HEAD) \
//	    -X github.com/sinvec/gimp-kandinsky/core.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the application version string.
func GetVersion() string {
	return Version
}

// GetVersionInfo formats version, build time and commit, e.g.
// "v1.0.0 (built 2024-01-15T10:30:00Z, commit abc1234)".
func GetVersionInfo() string {
	return Version + " (built " + BuildTime + ", commit " + GitCommit + ")"
}

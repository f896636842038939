// Package version exposes build information injected at link time.
package version

// Set via -ldflags at build time, e.g.
//
//	go build -ldflags "-X github.com/information-sharing-networks/shl-demo/internal/version.Version=v0.3.0"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info describes the running build.
type Info struct {
	Version   string
	GitCommit string
	BuildDate string
}

// Get returns the build information for the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
	}
}

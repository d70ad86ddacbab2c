// Package version carries build metadata, set at link time with
// -ldflags "-X github.com/veesix-networks/tpc/pkg/version.Version=...".
package version

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func Full() string {
	return "tpc " + Version + " (" + Commit + ") built on " + Date
}

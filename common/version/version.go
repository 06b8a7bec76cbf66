package version

// VERSION is the software version reported to endpoints and printed by the CLI.
// It is overridden at build time via -ldflags "-X .../common/version.VERSION=...".
var VERSION = "dev"

func VersionToString() string {
	return VERSION
}

package version

import "runtime/debug"

// Set with -ldflags "-X blocklist/internal/app/version.buildVersion=..." at release time.
var (
	buildVersion = ""
	builtAt      = ""
)

type Info struct {
	Version string `json:"version"`
	BuiltAt string `json:"built_at,omitempty"`
}

// Get reports the linked-in version, falling back to the module version recorded by
// the Go toolchain and finally to "dev".
func Get() Info {
	v := buildVersion
	if v == "" {
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			v = bi.Main.Version
		}
	}
	if v == "" {
		v = "dev"
	}
	return Info{Version: v, BuiltAt: builtAt}
}

package version

import "runtime/debug"

// Release version injected by the linker.
var version = ""

// Version returns the injected release version, falling back to the module version recorded in the binary.
func Version() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "development"
}
